package services

import (
	"context"
	"math/big"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/infrastructure/coingecko"
	"github.com/bimakw/defi-copilot/internal/infrastructure/ethereum"
	"github.com/bimakw/defi-copilot/internal/infrastructure/oneinch"
)

// PriceFeed fetches USD quotes keyed by CoinGecko ID
type PriceFeed interface {
	FetchPrices(ctx context.Context, ids []string) (map[string]coingecko.Quote, error)
}

// BalanceReader reads raw base-unit balances keyed by token symbol
type BalanceReader interface {
	GetBalances(ctx context.Context, walletAddress string, tokens []entities.Token) (map[string]*big.Int, error)
}

// SwapQuoter asks a DEX aggregator for a quote in base units
type SwapQuoter interface {
	Quote(ctx context.Context, src, dst string, amount *big.Int) (*oneinch.Quote, error)
}

// ChatProvider completes a conversation with a language model
type ChatProvider interface {
	Complete(ctx context.Context, system string, history []entities.ChatMessage) (string, error)
}

// TransferSource fetches a wallet's token transfers from the chain
type TransferSource interface {
	GetSafeBlockNumber(ctx context.Context) (int64, error)
	FetchWalletTransfers(ctx context.Context, wallet string, tokenAddresses []string, fromBlock, toBlock int64) (*ethereum.FetchResult, error)
}

// PriceSource returns current USD prices for token symbols
type PriceSource interface {
	GetPrices(ctx context.Context, symbols []string) map[string]entities.TokenPrice
}

// HoldingsSource returns the valued holdings of a wallet
type HoldingsSource interface {
	GetHoldings(ctx context.Context, walletAddress string) *entities.Holdings
}
