package valuation

import (
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// MockTransactions fabricates a plausible buy history that adds up to the
// given holdings, for demo wallets without a recorded ledger. Each holding is
// bought in one to three lots within the last days days at prices between 70%
// and 110% of its current price.
func MockTransactions(walletAddress string, holdings []entities.ValuedHolding, days int, now time.Time, rng *rand.Rand) []entities.Transaction {
	if days < 1 {
		days = 1
	}

	var txs []entities.Transaction
	for _, h := range holdings {
		if !h.Quantity.IsPositive() || !h.PriceUSD.IsPositive() {
			continue
		}

		lots := 1 + rng.Intn(3)
		lotQty := h.Quantity.Div(decimal.NewFromInt(int64(lots))).Round(4)
		remaining := h.Quantity

		for l := 0; l < lots; l++ {
			qty := lotQty
			if l == lots-1 {
				qty = remaining
			}
			remaining = remaining.Sub(qty)
			if !qty.IsPositive() {
				continue
			}

			factor := decimal.NewFromFloat(0.7 + rng.Float64()*0.4)
			txs = append(txs, entities.Transaction{
				WalletAddress: walletAddress,
				Symbol:        h.Symbol,
				Type:          entities.TransactionBuy,
				Quantity:      qty,
				PriceUSD:      h.PriceUSD.Mul(factor).Round(2),
				Timestamp:     now.AddDate(0, 0, -(1 + rng.Intn(days))).Truncate(time.Hour),
				Source:        entities.SourceMock,
			})
		}
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})

	return txs
}
