package valuation

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// MaxVolatility bounds the display noise added to projected points (±5%)
const MaxVolatility = 0.05

var (
	one          = decimal.NewFromInt(1)
	monthsInYear = decimal.NewFromInt(12)
)

// Project simulates monthly compounding of initialAmount at apyPct for the
// given number of months, starting at start.
//
// Each displayed point carries up to ±5% noise drawn from rng. The noise is
// applied to a copy; the next month always compounds the clean amount, so
// FinalAmount is independent of rng. A nil rng disables the noise.
func Project(initialAmount, apyPct decimal.Decimal, periods int, start time.Time, rng *rand.Rand) entities.Projection {
	if periods < 0 {
		periods = 0
	}

	growth := one.Add(apyPct.Div(hundred).Div(monthsInYear))
	amount := initialAmount

	points := make([]entities.SeriesPoint, 0, periods+1)
	points = append(points, point(start, initialAmount.Round(2), initialAmount))

	for m := 1; m <= periods; m++ {
		amount = amount.Mul(growth)

		display := amount
		if rng != nil {
			display = amount.Mul(volatility(rng))
		}

		points = append(points, point(start.AddDate(0, m, 0), display.Round(2), initialAmount))
	}

	return entities.Projection{
		InitialAmount: initialAmount,
		APYPct:        apyPct,
		Periods:       periods,
		FinalAmount:   amount.Round(2),
		TotalInterest: amount.Sub(initialAmount).Round(2),
		Points:        points,
	}
}

// volatility returns a factor uniformly drawn from [1-MaxVolatility, 1+MaxVolatility)
func volatility(rng *rand.Rand) decimal.Decimal {
	return decimal.NewFromFloat(1 + (rng.Float64()*2-1)*MaxVolatility)
}
