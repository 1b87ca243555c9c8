package valuation

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// ComputePnL computes profit and loss treating every buy and sell as one pool.
// Lots are not tracked, so realized PnL is total sold minus total bought; this
// is the reported figure and must not be replaced by FIFO/LIFO accounting
// without changing what users see.
func ComputePnL(transactions []entities.Transaction, currentValueUSD decimal.Decimal) entities.PnLResult {
	if len(transactions) == 0 || currentValueUSD.IsZero() {
		return zeroPnL()
	}

	costBasis := SumByType(transactions, entities.TransactionBuy)
	sold := SumByType(transactions, entities.TransactionSell)

	realized := sold.Sub(costBasis).Round(2)
	unrealized := currentValueUSD.Sub(costBasis.Sub(sold)).Round(2)

	roi := decimal.Zero
	if costBasis.IsPositive() {
		roi = currentValueUSD.Add(sold).Sub(costBasis).Div(costBasis).Mul(hundred).Round(2)
	}

	return entities.PnLResult{
		RealizedPnL:    realized,
		UnrealizedPnL:  unrealized,
		TotalPnL:       realized.Add(unrealized),
		TotalROIPct:    roi,
		TotalCostBasis: costBasis.Round(2),
		TotalSold:      sold.Round(2),
	}
}

// SumByType sums the USD value of transactions of one type
func SumByType(transactions []entities.Transaction, txType entities.TransactionType) decimal.Decimal {
	return lo.Reduce(transactions, func(acc decimal.Decimal, tx entities.Transaction, _ int) decimal.Decimal {
		if tx.Type != txType {
			return acc
		}
		return acc.Add(tx.Value())
	}, decimal.Zero)
}

func zeroPnL() entities.PnLResult {
	return entities.PnLResult{
		RealizedPnL:    decimal.Zero,
		UnrealizedPnL:  decimal.Zero,
		TotalPnL:       decimal.Zero,
		TotalROIPct:    decimal.Zero,
		TotalCostBasis: decimal.Zero,
		TotalSold:      decimal.Zero,
	}
}
