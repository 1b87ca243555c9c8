package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// SwapQuoteResponse wraps a swap quote for API response
type SwapQuoteResponse struct {
	Data entities.SwapQuote `json:"data"`
}

// SwapService quotes swaps between tracked tokens
type SwapService struct {
	quoter   SwapQuoter
	prices   PriceSource
	registry *entities.TokenRegistry
	metrics  *Metrics
	logger   *zap.Logger
}

// NewSwapService creates a new swap service
func NewSwapService(
	quoter SwapQuoter,
	prices PriceSource,
	registry *entities.TokenRegistry,
	metrics *Metrics,
	logger *zap.Logger,
) *SwapService {
	return &SwapService{
		quoter:   quoter,
		prices:   prices,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Quote prices swapping amount of src into dst. When the aggregator is down
// the quote is estimated from oracle prices and marked Estimated.
func (s *SwapService) Quote(ctx context.Context, srcSymbol, dstSymbol string, amount decimal.Decimal) (*SwapQuoteResponse, error) {
	src, ok := s.registry.BySymbol(srcSymbol)
	if !ok {
		return nil, fmt.Errorf("%w: unknown token %q", entities.ErrValidation, srcSymbol)
	}
	dst, ok := s.registry.BySymbol(dstSymbol)
	if !ok {
		return nil, fmt.Errorf("%w: unknown token %q", entities.ErrValidation, dstSymbol)
	}
	if src.Symbol == dst.Symbol {
		return nil, fmt.Errorf("%w: src and dst must differ", entities.ErrValidation)
	}
	if src.Decimals < 0 || dst.Decimals < 0 {
		return nil, fmt.Errorf("%w: token decimals not resolved yet", entities.ErrUpstreamUnavailable)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", entities.ErrValidation)
	}

	baseUnits := src.FromUnits(amount)
	if baseUnits.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount is below the smallest unit of %s", entities.ErrValidation, src.Symbol)
	}

	if s.quoter != nil {
		quote, err := s.quoter.Quote(ctx, src.QuoteAddress(), dst.QuoteAddress(), baseUnits)
		if err == nil {
			return &SwapQuoteResponse{
				Data: entities.SwapQuote{
					Src:             src.Symbol,
					Dst:             dst.Symbol,
					FromTokenAmount: src.ToUnits(quote.FromAmount),
					ToTokenAmount:   dst.ToUnits(quote.ToAmount),
					EstimatedGas:    quote.EstimatedGas,
					Protocols:       quote.Protocols,
				},
			}, nil
		}
		s.logger.Warn("Swap aggregator unavailable, estimating from oracle prices",
			zap.String("src", src.Symbol),
			zap.String("dst", dst.Symbol),
			zap.Error(err),
		)
	}
	s.metrics.UpstreamFallbacks.WithLabelValues("swap").Inc()

	return s.estimate(ctx, src, dst, amount)
}

func (s *SwapService) estimate(ctx context.Context, src, dst entities.Token, amount decimal.Decimal) (*SwapQuoteResponse, error) {
	prices := s.prices.GetPrices(ctx, []string{src.Symbol, dst.Symbol})
	srcPrice, dstPrice := prices[src.Symbol].PriceUSD, prices[dst.Symbol].PriceUSD
	if !dstPrice.IsPositive() {
		return nil, fmt.Errorf("%w: no price for %s", entities.ErrUpstreamUnavailable, strings.ToUpper(dst.Symbol))
	}

	// truncate to what dst can represent
	out := amount.Mul(srcPrice).Div(dstPrice).Truncate(int32(dst.Decimals))

	return &SwapQuoteResponse{
		Data: entities.SwapQuote{
			Src:             src.Symbol,
			Dst:             dst.Symbol,
			FromTokenAmount: amount,
			ToTokenAmount:   out,
			Protocols:       []string{},
			Estimated:       true,
		},
	}, nil
}
