package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/domain/repositories"
	"github.com/bimakw/defi-copilot/internal/infrastructure/ethereum"
)

// HistoryService imports a wallet's ERC-20 transfers into the ledger
type HistoryService struct {
	source    TransferSource
	txRepo    repositories.TransactionRepository
	stateRepo repositories.SyncStateRepository
	prices    PriceSource
	registry  *entities.TokenRegistry
	config    config.RefresherConfig
	metrics   *Metrics
	logger    *zap.Logger
	onImport  func(ctx context.Context, walletAddress string)
}

// NewHistoryService creates a new history import service
func NewHistoryService(
	source TransferSource,
	txRepo repositories.TransactionRepository,
	stateRepo repositories.SyncStateRepository,
	prices PriceSource,
	registry *entities.TokenRegistry,
	cfg config.RefresherConfig,
	metrics *Metrics,
	logger *zap.Logger,
) *HistoryService {
	return &HistoryService{
		source:    source,
		txRepo:    txRepo,
		stateRepo: stateRepo,
		prices:    prices,
		registry:  registry,
		config:    cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// OnImport registers a callback run after new entries were written for a wallet
func (s *HistoryService) OnImport(fn func(ctx context.Context, walletAddress string)) {
	s.onImport = fn
}

// ImportWallet imports transfers since the wallet's checkpoint up to the
// latest confirmed block. A wallet without a checkpoint starts
// LookbackBlocks behind. Returns the number of new ledger entries.
func (s *HistoryService) ImportWallet(ctx context.Context, walletAddress string) (int64, error) {
	walletAddress = strings.ToLower(walletAddress)

	tokens := s.registry.ERC20()
	addresses := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Decimals >= 0 {
			addresses = append(addresses, t.Address)
		}
	}
	if len(addresses) == 0 {
		return 0, nil
	}

	safeBlock, err := s.source.GetSafeBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get safe block number: %w", err)
	}

	state, err := s.stateRepo.Get(ctx, walletAddress)
	if err != nil {
		return 0, fmt.Errorf("failed to get sync state: %w", err)
	}

	fromBlock := safeBlock - s.config.LookbackBlocks
	if state != nil {
		fromBlock = state.LastIndexedBlock + 1
	}
	if fromBlock < 0 {
		fromBlock = 0
	}
	if fromBlock > safeBlock {
		return 0, nil
	}

	var imported int64
	for _, r := range ethereum.SplitBlockRange(fromBlock, safeBlock, s.config.BatchSize) {
		select {
		case <-ctx.Done():
			return imported, ctx.Err()
		default:
		}

		result, err := s.source.FetchWalletTransfers(ctx, walletAddress, addresses, r.From, r.To)
		if err != nil {
			return imported, fmt.Errorf("failed to fetch transfers for blocks %d-%d: %w", r.From, r.To, err)
		}

		if txs := s.toTransactions(ctx, walletAddress, result.Transfers); len(txs) > 0 {
			n, err := s.txRepo.AppendBatch(ctx, txs)
			if err != nil {
				return imported, fmt.Errorf("failed to append transactions: %w", err)
			}
			imported += n
			s.metrics.TransfersImported.Add(float64(n))
		}

		if err := s.stateRepo.UpdateLastBlock(ctx, walletAddress, r.To); err != nil {
			return imported, fmt.Errorf("failed to update checkpoint: %w", err)
		}
		s.metrics.LastImportedBlock.WithLabelValues(walletAddress).Set(float64(r.To))

		s.logger.Debug("Imported block range",
			zap.String("wallet", walletAddress),
			zap.Int64("from", r.From),
			zap.Int64("to", r.To),
			zap.Int("transfers", len(result.Transfers)),
		)
	}

	if imported > 0 && s.onImport != nil {
		s.onImport(ctx, walletAddress)
	}

	return imported, nil
}

// toTransactions prices transfers at the current oracle price; incoming
// transfers become buys and outgoing transfers become sells
func (s *HistoryService) toTransactions(ctx context.Context, walletAddress string, transfers []ethereum.TokenTransfer) []entities.Transaction {
	if len(transfers) == 0 {
		return nil
	}

	prices := s.prices.GetPrices(ctx, nil)
	txs := make([]entities.Transaction, 0, len(transfers))

	for _, tr := range transfers {
		token, ok := s.registry.ByAddress(tr.TokenAddress)
		if !ok || token.Decimals < 0 {
			continue
		}

		incoming, outgoing := tr.Direction(walletAddress)
		var txType entities.TransactionType
		switch {
		case incoming:
			txType = entities.TransactionBuy
		case outgoing:
			txType = entities.TransactionSell
		default:
			continue
		}

		quantity := token.ToUnits(tr.Value)
		if !quantity.IsPositive() {
			continue
		}

		txHash, logIndex := tr.TxHash, tr.LogIndex
		txs = append(txs, entities.Transaction{
			WalletAddress: walletAddress,
			Symbol:        token.Symbol,
			Type:          txType,
			Quantity:      quantity,
			PriceUSD:      prices[token.Symbol].PriceUSD,
			Timestamp:     tr.BlockTimestamp,
			Source:        entities.SourceChain,
			TxHash:        &txHash,
			LogIndex:      &logIndex,
		})
	}

	return txs
}
