package services

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/infrastructure/cache"
)

const pricesCacheKey = "prices:usd"

// fallbackPrices are served when the price feed is unreachable
var fallbackPrices = map[string]decimal.Decimal{
	"ethereum": decimal.NewFromInt(2800),
	"bitcoin":  decimal.NewFromInt(45000),
	"usd-coin": decimal.NewFromInt(1),
	"tether":   decimal.NewFromInt(1),
	"uniswap":  decimal.NewFromInt(6),
	"aave":     decimal.NewFromInt(90),
}

// PriceService is the price oracle adapter for tracked tokens
type PriceService struct {
	feed     PriceFeed
	registry *entities.TokenRegistry
	local    *gocache.Cache
	cache    *cache.RedisCache
	ttl      time.Duration
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewPriceService creates a new price service
func NewPriceService(
	feed PriceFeed,
	registry *entities.TokenRegistry,
	cache *cache.RedisCache,
	cfg config.PricesConfig,
	metrics *Metrics,
	logger *zap.Logger,
) *PriceService {
	return &PriceService{
		feed:     feed,
		registry: registry,
		local:    gocache.New(cfg.CacheTTL, 10*time.Minute),
		cache:    cache,
		ttl:      cfg.CacheTTL,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// GetPrices returns USD prices for the given symbols, or for every tracked
// token when symbols is empty. Unknown symbols are omitted. When the feed is
// down the static fallback table is served with Stale set.
func (s *PriceService) GetPrices(ctx context.Context, symbols []string) map[string]entities.TokenPrice {
	all := s.current(ctx)
	if len(symbols) == 0 {
		return lo.Assign(all)
	}

	result := make(map[string]entities.TokenPrice, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if price, ok := all[symbol]; ok {
			result[symbol] = price
		}
	}
	return result
}

// Refresh bypasses both caches, fetches the feed and stores fresh prices.
// A fallback table is returned with ErrUpstreamUnavailable and not stored.
func (s *PriceService) Refresh(ctx context.Context) (map[string]entities.TokenPrice, error) {
	prices, err := s.fetch(ctx)
	if err != nil {
		// Fallback tables are never cached so the next call retries the feed
		return prices, err
	}
	s.store(ctx, prices)
	return prices, nil
}

func (s *PriceService) current(ctx context.Context) map[string]entities.TokenPrice {
	if cached, ok := s.local.Get(pricesCacheKey); ok {
		return cached.(map[string]entities.TokenPrice)
	}

	if s.cache != nil {
		var shared map[string]entities.TokenPrice
		if err := s.cache.Get(ctx, pricesCacheKey, &shared); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", pricesCacheKey))
			s.local.Set(pricesCacheKey, shared, gocache.DefaultExpiration)
			return shared
		}
	}

	prices, _ := s.Refresh(ctx)
	return prices
}

// fetch always returns a complete table; err reports that fallback data was used
func (s *PriceService) fetch(ctx context.Context) (map[string]entities.TokenPrice, error) {
	now := s.now().UTC()
	tokens := s.registry.All()

	quotes, err := s.feed.FetchPrices(ctx, s.registry.CoinGeckoIDs())
	if err != nil {
		s.logger.Warn("Price feed unavailable, serving fallback prices", zap.Error(err))
		s.metrics.UpstreamFallbacks.WithLabelValues("prices").Inc()
		quotes = nil
	}

	prices := make(map[string]entities.TokenPrice, len(tokens))
	for _, token := range tokens {
		if quote, ok := quotes[token.CoinGeckoID]; ok {
			prices[token.Symbol] = entities.TokenPrice{
				Symbol:       token.Symbol,
				PriceUSD:     quote.PriceUSD,
				Change24hPct: quote.Change24hPct,
				UpdatedAt:    now,
			}
			continue
		}
		prices[token.Symbol] = entities.TokenPrice{
			Symbol:    token.Symbol,
			PriceUSD:  fallbackPrices[token.CoinGeckoID],
			UpdatedAt: now,
			Stale:     true,
		}
	}

	if err != nil {
		return prices, entities.ErrUpstreamUnavailable
	}
	return prices, nil
}

func (s *PriceService) store(ctx context.Context, prices map[string]entities.TokenPrice) {
	s.local.Set(pricesCacheKey, prices, gocache.DefaultExpiration)

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, pricesCacheKey, prices, s.ttl); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}
}
