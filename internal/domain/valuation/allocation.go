// Package valuation holds the pure portfolio math: allocation buckets,
// pooled PnL, synthesized value series and compound-interest projections.
// Nothing here performs I/O and nothing returns an error; empty or zero
// input degrades to an empty or zero result.
package valuation

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// OtherLabel names the bucket that collects sub-threshold holdings
const OtherLabel = "Other"

var (
	hundred      = decimal.NewFromInt(100)
	minBucketPct = decimal.NewFromInt(1)
)

// TotalValue sums the USD value of holdings
func TotalValue(holdings []entities.ValuedHolding) decimal.Decimal {
	return lo.Reduce(holdings, func(acc decimal.Decimal, h entities.ValuedHolding, _ int) decimal.Decimal {
		return acc.Add(h.ValueUSD)
	}, decimal.Zero)
}

// Bucketize converts valued holdings into percentage-of-total buckets.
// Holdings under 1% are folded into a trailing "Other" bucket; the rest are
// ordered by descending share, keeping input order on ties.
func Bucketize(holdings []entities.ValuedHolding) []entities.AllocationBucket {
	total := TotalValue(holdings)
	if !total.IsPositive() {
		return []entities.AllocationBucket{}
	}

	buckets := make([]entities.AllocationBucket, 0, len(holdings)+1)
	other := decimal.Zero

	for _, h := range holdings {
		pct := share(h.ValueUSD, total)
		if pct.LessThan(minBucketPct) {
			other = other.Add(h.ValueUSD)
			continue
		}
		buckets = append(buckets, entities.AllocationBucket{
			Label:    h.Symbol,
			Pct:      pct,
			ValueUSD: h.ValueUSD.Round(2),
		})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Pct.GreaterThan(buckets[j].Pct)
	})

	if other.IsPositive() {
		buckets = append(buckets, entities.AllocationBucket{
			Label:    OtherLabel,
			Pct:      share(other, total),
			ValueUSD: other.Round(2),
		})
	}

	return buckets
}

func share(value, total decimal.Decimal) decimal.Decimal {
	return value.Mul(hundred).Div(total).Round(2)
}
