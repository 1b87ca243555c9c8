package services

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/domain/valuation"
)

const maxProjectionPeriods = 600

var (
	minAPYPct = decimal.NewFromInt(-100)
	maxAPYPct = decimal.NewFromInt(1000)
)

// ProjectionInput describes a compound-interest simulation request
type ProjectionInput struct {
	InitialAmount decimal.Decimal `json:"initial_amount"`
	APYPct        decimal.Decimal `json:"apy_pct"`
	Periods       int             `json:"periods"`
	// Seed makes the display noise reproducible
	Seed *int64 `json:"seed,omitempty"`
}

// ProjectionResponse wraps a projection for API response
type ProjectionResponse struct {
	Data entities.Projection `json:"data"`
}

// SimulationService runs staking and yield projections
type SimulationService struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSimulationService creates a new simulation service
func NewSimulationService(logger *zap.Logger) *SimulationService {
	return &SimulationService{
		logger: logger,
		now:    time.Now,
	}
}

// Project validates the input and projects monthly compounding from today
func (s *SimulationService) Project(input ProjectionInput) (*ProjectionResponse, error) {
	if !input.InitialAmount.IsPositive() {
		return nil, fmt.Errorf("%w: initial_amount must be positive", entities.ErrValidation)
	}
	if input.APYPct.LessThan(minAPYPct) || input.APYPct.GreaterThan(maxAPYPct) {
		return nil, fmt.Errorf("%w: apy_pct must be between %s and %s", entities.ErrValidation, minAPYPct, maxAPYPct)
	}
	if input.Periods < 1 || input.Periods > maxProjectionPeriods {
		return nil, fmt.Errorf("%w: periods must be between 1 and %d", entities.ErrValidation, maxProjectionPeriods)
	}

	now := s.now().UTC()
	seed := now.UnixNano()
	if input.Seed != nil {
		seed = *input.Seed
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	projection := valuation.Project(input.InitialAmount, input.APYPct, input.Periods, start, rand.New(rand.NewSource(seed)))

	s.logger.Debug("Projected yield",
		zap.String("initial", input.InitialAmount.String()),
		zap.String("apy_pct", input.APYPct.String()),
		zap.Int("periods", input.Periods),
	)

	return &ProjectionResponse{Data: projection}, nil
}
