package testutil

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/infrastructure/ethereum"
)

// Common test addresses
const (
	USDTAddress  = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	USDCAddress  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	UNIAddress   = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"
	AliceAddress = "0x1111111111111111111111111111111111111111"
	BobAddress   = "0x2222222222222222222222222222222222222222"
	CharlieAddr  = "0x3333333333333333333333333333333333333333"
)

// TestUserID is the user owning sessions and conversations in tests
const TestUserID = "user-1"

// TestTokens returns the tracked tokens used across tests: native ETH,
// USDC with 6 decimals and UNI with 18 decimals
func TestTokens() []entities.Token {
	return []entities.Token{
		{Symbol: "ETH", Decimals: 18, CoinGeckoID: "ethereum"},
		{Symbol: "USDC", Address: USDCAddress, Decimals: 6, CoinGeckoID: "usd-coin"},
		{Symbol: "UNI", Address: UNIAddress, Decimals: 18, CoinGeckoID: "uniswap"},
	}
}

// NewTestTokenRegistry creates a registry of TestTokens
func NewTestTokenRegistry() *entities.TokenRegistry {
	return entities.NewTokenRegistry(TestTokens())
}

// TestPrices returns fresh prices for TestTokens
func TestPrices() map[string]entities.TokenPrice {
	updated := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return map[string]entities.TokenPrice{
		"ETH":  {Symbol: "ETH", PriceUSD: decimal.NewFromInt(3000), Change24hPct: decimal.NewFromFloat(1.5), UpdatedAt: updated},
		"USDC": {Symbol: "USDC", PriceUSD: decimal.NewFromInt(1), UpdatedAt: updated},
		"UNI":  {Symbol: "UNI", PriceUSD: decimal.NewFromInt(10), Change24hPct: decimal.NewFromFloat(-2.25), UpdatedAt: updated},
	}
}

// CreateTestTransaction creates a test ledger entry with default values
func CreateTestTransaction(opts ...TransactionOption) entities.Transaction {
	tx := entities.Transaction{
		WalletAddress: AliceAddress,
		Symbol:        "ETH",
		Type:          entities.TransactionBuy,
		Quantity:      decimal.NewFromInt(1),
		PriceUSD:      decimal.NewFromInt(2000),
		Timestamp:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Source:        entities.SourceManual,
		CreatedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(&tx)
	}

	return tx
}

type TransactionOption func(*entities.Transaction)

func WithID(id int64) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.ID = id
	}
}

func WithWallet(addr string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.WalletAddress = addr
	}
}

func WithSymbol(symbol string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Symbol = symbol
	}
}

func WithType(typ entities.TransactionType) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Type = typ
	}
}

func WithQuantity(qty string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Quantity = decimal.RequireFromString(qty)
	}
}

func WithPrice(price string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.PriceUSD = decimal.RequireFromString(price)
	}
}

func WithTimestamp(ts time.Time) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Timestamp = ts
	}
}

func WithChainRef(txHash string, logIndex int) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Source = entities.SourceChain
		tx.TxHash = &txHash
		tx.LogIndex = &logIndex
	}
}

// CreateTestTransfer creates a decoded Transfer log with default values
func CreateTestTransfer(opts ...TransferOption) ethereum.TokenTransfer {
	t := ethereum.TokenTransfer{
		TxHash:         "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		LogIndex:       0,
		BlockNumber:    12345678,
		BlockTimestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		TokenAddress:   USDCAddress,
		FromAddress:    BobAddress,
		ToAddress:      AliceAddress,
		Value:          big.NewInt(1000000), // 1 USDC
	}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

type TransferOption func(*ethereum.TokenTransfer)

func TransferWithTxHash(hash string) TransferOption {
	return func(t *ethereum.TokenTransfer) {
		t.TxHash = hash
	}
}

func TransferWithLogIndex(idx int) TransferOption {
	return func(t *ethereum.TokenTransfer) {
		t.LogIndex = idx
	}
}

func TransferWithBlockNumber(num int64) TransferOption {
	return func(t *ethereum.TokenTransfer) {
		t.BlockNumber = num
	}
}

func TransferWithToken(addr string) TransferOption {
	return func(t *ethereum.TokenTransfer) {
		t.TokenAddress = addr
	}
}

func TransferWithParties(from, to string) TransferOption {
	return func(t *ethereum.TokenTransfer) {
		t.FromAddress = from
		t.ToAddress = to
	}
}

func TransferWithValue(val *big.Int) TransferOption {
	return func(t *ethereum.TokenTransfer) {
		t.Value = val
	}
}

// CreateMultipleTransactions creates daily buys for testing pagination and series
func CreateMultipleTransactions(count int, opts ...TransactionOption) []entities.Transaction {
	txs := make([]entities.Transaction, count)
	for i := 0; i < count; i++ {
		tx := CreateTestTransaction(opts...)
		tx.ID = int64(i + 1)
		tx.Timestamp = tx.Timestamp.AddDate(0, 0, i)
		txs[i] = tx
	}
	return txs
}

// GenerateTxHash returns a unique tx hash for index
func GenerateTxHash(index int) string {
	hash := "0x"
	for i := 0; i < 64; i++ {
		hash += string(rune('a' + (index+i)%6))
	}
	return hash
}

// PointerTo returns a pointer to the given value
func PointerTo[T any](v T) *T {
	return &v
}
