package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/domain/valuation"
	"github.com/bimakw/defi-copilot/internal/infrastructure/cache"
)

// BalanceService aggregates on-chain balances into valued holdings
type BalanceService struct {
	reader   BalanceReader
	prices   PriceSource
	registry *entities.TokenRegistry
	cache    *cache.RedisCache
	ttl      time.Duration
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewBalanceService creates a new balance service. A nil reader means the
// chain is unreachable and every wallet reads as empty.
func NewBalanceService(
	reader BalanceReader,
	prices PriceSource,
	registry *entities.TokenRegistry,
	cache *cache.RedisCache,
	cfg config.BalancesConfig,
	metrics *Metrics,
	logger *zap.Logger,
) *BalanceService {
	return &BalanceService{
		reader:   reader,
		prices:   prices,
		registry: registry,
		cache:    cache,
		ttl:      cfg.CacheTTL,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func holdingsCacheKey(walletAddress string) string {
	return fmt.Sprintf("holdings:%s", walletAddress)
}

// GetHoldings returns the valued holdings of a wallet. Chain failures are
// absorbed: the result is then empty with Stale set.
func (s *BalanceService) GetHoldings(ctx context.Context, walletAddress string) *entities.Holdings {
	walletAddress = strings.ToLower(walletAddress)
	cacheKey := holdingsCacheKey(walletAddress)

	if s.cache != nil {
		var cached entities.Holdings
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached
		}
	}

	return s.RefreshHoldings(ctx, walletAddress)
}

// RefreshHoldings reads balances from the chain and updates the cache.
// Stale results are never cached.
func (s *BalanceService) RefreshHoldings(ctx context.Context, walletAddress string) *entities.Holdings {
	walletAddress = strings.ToLower(walletAddress)
	holdings := s.aggregate(ctx, walletAddress)

	if s.cache != nil && !holdings.Stale {
		if err := s.cache.SetWithTTL(ctx, holdingsCacheKey(walletAddress), holdings, s.ttl); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return holdings
}

func (s *BalanceService) aggregate(ctx context.Context, walletAddress string) *entities.Holdings {
	holdings := &entities.Holdings{
		WalletAddress: walletAddress,
		Quantities:    []entities.TokenQuantity{},
		Holdings:      []entities.ValuedHolding{},
		TotalValueUSD: decimal.Zero,
		UpdatedAt:     s.now().UTC(),
	}

	tokens := lo.Filter(s.registry.All(), func(t entities.Token, _ int) bool { return t.Decimals >= 0 })

	raw, err := s.readBalances(ctx, walletAddress, tokens)
	if err != nil {
		s.logger.Warn("Balance read failed, serving empty holdings",
			zap.String("wallet", walletAddress),
			zap.Error(err),
		)
		s.metrics.UpstreamFallbacks.WithLabelValues("balances").Inc()
		holdings.Stale = true
		return holdings
	}

	symbols := lo.Map(tokens, func(t entities.Token, _ int) string { return t.Symbol })
	prices := s.prices.GetPrices(ctx, symbols)

	for _, token := range tokens {
		balance, ok := raw[token.Symbol]
		if !ok {
			holdings.Stale = true
			continue
		}

		quantity := token.ToUnits(balance)
		holdings.Quantities = append(holdings.Quantities, entities.TokenQuantity{
			Symbol:   token.Symbol,
			Quantity: quantity.Round(4),
		})
		if !quantity.IsPositive() {
			continue
		}

		price := prices[token.Symbol]
		if price.Stale {
			holdings.Stale = true
		}

		holdings.Holdings = append(holdings.Holdings, entities.ValuedHolding{
			Symbol:   token.Symbol,
			Quantity: quantity.Round(4),
			PriceUSD: price.PriceUSD,
			ValueUSD: quantity.Mul(price.PriceUSD).Round(2),
		})
	}

	holdings.TotalValueUSD = valuation.TotalValue(holdings.Holdings)
	return holdings
}

func (s *BalanceService) readBalances(ctx context.Context, walletAddress string, tokens []entities.Token) (map[string]*big.Int, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("%w: no chain client configured", entities.ErrUpstreamUnavailable)
	}
	raw, err := s.reader.GetBalances(ctx, walletAddress, tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	return raw, nil
}
