package valuation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

var dipFloor = decimal.RequireFromString("0.8")

// Synthesize builds a historical value series of pointCount+1 points running
// from the earliest transaction to now.
//
// The cost basis at each date is the sum of buys made up to that date. The gain
// not yet captured (currentValueUSD - totalCostBasis) is spread linearly over the
// series and the value never dips below 80% of the cost at that date. The last
// point is the live valuation. A pointCount of zero or less uses one point per
// elapsed day.
func Synthesize(
	transactions []entities.Transaction,
	currentValueUSD decimal.Decimal,
	totalCostBasis decimal.Decimal,
	pointCount int,
	now time.Time,
) []entities.SeriesPoint {
	if len(transactions) == 0 {
		return []entities.SeriesPoint{}
	}

	sorted := sortByTime(transactions)
	start := sorted[0].Timestamp
	end := now
	if last := sorted[len(sorted)-1].Timestamp; end.Before(last) {
		end = last
	}

	n := pointCount
	if n <= 0 {
		n = int(end.Sub(start).Hours() / 24)
		if n < 1 {
			n = 1
		}
	}

	span := end.Sub(start)
	gain := currentValueUSD.Sub(totalCostBasis)
	steps := decimal.NewFromInt(int64(n))

	points := make([]entities.SeriesPoint, 0, n+1)
	cost := decimal.Zero
	next := 0

	for i := 0; i <= n; i++ {
		date := end
		if i < n {
			date = start.Add(time.Duration(float64(span) * float64(i) / float64(n)))
		}

		for next < len(sorted) && !sorted[next].Timestamp.After(date) {
			if sorted[next].Type == entities.TransactionBuy {
				cost = cost.Add(sorted[next].Value())
			}
			next++
		}

		var value decimal.Decimal
		if i == n {
			value = currentValueUSD
		} else {
			value = cost.Add(gain.Mul(decimal.NewFromInt(int64(i))).Div(steps))
			if floor := cost.Mul(dipFloor); value.LessThan(floor) {
				value = floor
			}
			value = value.Round(2)
		}

		points = append(points, point(date, value, cost))
	}

	return points
}

// point derives pnl and roi of a value against its basis
func point(date time.Time, value, basis decimal.Decimal) entities.SeriesPoint {
	pnl := value.Sub(basis).Round(2)
	roi := decimal.Zero
	if basis.IsPositive() {
		roi = value.Sub(basis).Div(basis).Mul(hundred).Round(2)
	}
	return entities.SeriesPoint{
		Date:   date,
		Value:  value,
		PnL:    pnl,
		ROIPct: roi,
	}
}

func sortByTime(transactions []entities.Transaction) []entities.Transaction {
	sorted := append([]entities.Transaction(nil), transactions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
