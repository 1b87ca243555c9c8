package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/domain/repositories"
	"github.com/bimakw/defi-copilot/internal/domain/valuation"
	"github.com/bimakw/defi-copilot/internal/infrastructure/cache"
)

// mockHistoryDays is how far back demo history reaches
const mockHistoryDays = 90

// PortfolioService provides allocation, performance and ledger operations for wallets
type PortfolioService struct {
	holdings HoldingsSource
	txRepo   repositories.TransactionRepository
	registry *entities.TokenRegistry
	cache    *cache.RedisCache
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
	newRand  func() *rand.Rand
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(
	holdings HoldingsSource,
	txRepo repositories.TransactionRepository,
	registry *entities.TokenRegistry,
	cache *cache.RedisCache,
	ttl time.Duration,
	logger *zap.Logger,
) *PortfolioService {
	return &PortfolioService{
		holdings: holdings,
		txRepo:   txRepo,
		registry: registry,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// AllocationDTO is the API representation of a wallet allocation
type AllocationDTO struct {
	WalletAddress string                      `json:"wallet_address"`
	TotalValueUSD decimal.Decimal             `json:"total_value_usd"`
	Buckets       []entities.AllocationBucket `json:"buckets"`
	Stale         bool                        `json:"stale"`
}

// AllocationResponse wraps allocation data for API response
type AllocationResponse struct {
	Data AllocationDTO `json:"data"`
}

// PerformanceDTO is the API representation of wallet performance
type PerformanceDTO struct {
	WalletAddress string                 `json:"wallet_address"`
	PnL           entities.PnLResult     `json:"pnl"`
	Series        []entities.SeriesPoint `json:"series"`
	Demo          bool                   `json:"demo"`
	Stale         bool                   `json:"stale"`
}

// PerformanceResponse wraps performance data for API response
type PerformanceResponse struct {
	Data PerformanceDTO `json:"data"`
}

// TransactionInput is a manual ledger entry submitted by a client
type TransactionInput struct {
	Symbol    string          `json:"symbol"`
	Type      string          `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	PriceUSD  decimal.Decimal `json:"price_usd"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// TransactionListResponse wraps ledger entries for API response
type TransactionListResponse struct {
	Data []entities.Transaction `json:"data"`
	Meta PaginationMeta         `json:"meta"`
}

// TransactionResponse wraps a single ledger entry for API response
type TransactionResponse struct {
	Data entities.Transaction `json:"data"`
}

// PaginationMeta describes a page of results
type PaginationMeta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// GetAllocation buckets the wallet's current holdings by share of value
func (s *PortfolioService) GetAllocation(ctx context.Context, walletAddress string) *AllocationResponse {
	walletAddress = strings.ToLower(walletAddress)
	holdings := s.holdings.GetHoldings(ctx, walletAddress)

	return &AllocationResponse{
		Data: AllocationDTO{
			WalletAddress: walletAddress,
			TotalValueUSD: holdings.TotalValueUSD,
			Buckets:       valuation.Bucketize(holdings.Holdings),
			Stale:         holdings.Stale,
		},
	}
}

// GetPerformance computes pooled PnL and a historical value series for a
// wallet. With demo set, a wallet without recorded transactions gets a
// generated history based on its current holdings.
func (s *PortfolioService) GetPerformance(ctx context.Context, walletAddress string, points int, demo bool) (*PerformanceResponse, error) {
	walletAddress = strings.ToLower(walletAddress)

	cacheKey := fmt.Sprintf("performance:%s:%d:%t", walletAddress, points, demo)

	var cached PerformanceResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	txs, err := s.txRepo.List(ctx, entities.DefaultTransactionFilter(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	holdings := s.holdings.GetHoldings(ctx, walletAddress)
	now := s.now().UTC()

	generated := false
	if len(txs) == 0 && demo {
		txs = valuation.MockTransactions(walletAddress, holdings.Holdings, mockHistoryDays, now, s.newRand())
		generated = len(txs) > 0
	}

	current := holdings.TotalValueUSD
	pnl := valuation.ComputePnL(txs, current)
	series := valuation.Synthesize(txs, current, valuation.SumByType(txs, entities.TransactionBuy), points, now)

	response := &PerformanceResponse{
		Data: PerformanceDTO{
			WalletAddress: walletAddress,
			PnL:           pnl,
			Series:        series,
			Demo:          generated,
			Stale:         holdings.Stale,
		},
	}

	if s.cache != nil && !holdings.Stale {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, s.ttl); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// AppendTransaction validates and records a manual ledger entry
func (s *PortfolioService) AppendTransaction(ctx context.Context, walletAddress string, input TransactionInput) (*TransactionResponse, error) {
	walletAddress = strings.ToLower(walletAddress)

	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
	if _, ok := s.registry.BySymbol(symbol); !ok {
		return nil, fmt.Errorf("%w: unknown token %q", entities.ErrValidation, input.Symbol)
	}

	tx := entities.Transaction{
		WalletAddress: walletAddress,
		Symbol:        symbol,
		Type:          entities.TransactionType(strings.ToLower(strings.TrimSpace(input.Type))),
		Quantity:      input.Quantity,
		PriceUSD:      input.PriceUSD,
		Timestamp:     s.now().UTC(),
		Source:        entities.SourceManual,
	}
	if input.Timestamp != nil {
		tx.Timestamp = input.Timestamp.UTC()
	}
	if tx.Timestamp.After(s.now().Add(time.Minute)) {
		return nil, fmt.Errorf("%w: timestamp is in the future", entities.ErrValidation)
	}

	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if err := s.txRepo.Append(ctx, &tx); err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	s.invalidatePerformance(ctx, walletAddress)

	return &TransactionResponse{Data: tx}, nil
}

// ListTransactions returns a page of ledger entries in chronological order
func (s *PortfolioService) ListTransactions(ctx context.Context, filter entities.TransactionFilter) (*TransactionListResponse, error) {
	filter.WalletAddress = strings.ToLower(filter.WalletAddress)

	txs, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	total, err := s.txRepo.Count(ctx, filter.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	return &TransactionListResponse{
		Data: txs,
		Meta: PaginationMeta{
			Total:  total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		},
	}, nil
}

// InvalidateWallet drops cached performance after the ledger changed
func (s *PortfolioService) InvalidateWallet(ctx context.Context, walletAddress string) {
	s.invalidatePerformance(ctx, strings.ToLower(walletAddress))
}

func (s *PortfolioService) invalidatePerformance(ctx context.Context, walletAddress string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, fmt.Sprintf("performance:%s:*", walletAddress)); err != nil {
		s.logger.Warn("Failed to invalidate cache", zap.String("wallet", walletAddress), zap.Error(err))
	}
}
