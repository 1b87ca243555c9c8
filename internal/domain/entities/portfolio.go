package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenPrice is a USD quote for a tracked token
type TokenPrice struct {
	Symbol       string          `json:"symbol"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	Change24hPct decimal.Decimal `json:"change_24h_pct"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Stale        bool            `json:"stale"` // served from the fallback table
}

// TokenQuantity is a wallet balance in whole token units
type TokenQuantity struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ValuedHolding is a balance priced in USD
type ValuedHolding struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	PriceUSD decimal.Decimal `json:"price_usd"`
	ValueUSD decimal.Decimal `json:"value_usd"`
}

// Holdings is the valued content of a wallet at a point in time
type Holdings struct {
	WalletAddress string          `json:"wallet_address"`
	Quantities    []TokenQuantity `json:"quantities"`
	Holdings      []ValuedHolding `json:"holdings"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
	Stale         bool            `json:"stale"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AllocationBucket is one slice of an allocation chart
type AllocationBucket struct {
	Label    string          `json:"label"`
	Pct      decimal.Decimal `json:"pct"`
	ValueUSD decimal.Decimal `json:"value_usd"`
}

// PnLResult summarises profit and loss over a pooled cost basis
type PnLResult struct {
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	TotalROIPct    decimal.Decimal `json:"total_roi_pct"`
	TotalCostBasis decimal.Decimal `json:"total_cost_basis"`
	TotalSold      decimal.Decimal `json:"total_sold"`
}

// SeriesPoint is one point of a historical or projected value series
type SeriesPoint struct {
	Date   time.Time       `json:"date"`
	Value  decimal.Decimal `json:"value"`
	PnL    decimal.Decimal `json:"pnl"`
	ROIPct decimal.Decimal `json:"roi_pct"`
}

// Projection is a compound-interest simulation.
// FinalAmount is the last compounded amount before display volatility.
type Projection struct {
	InitialAmount decimal.Decimal `json:"initial_amount"`
	APYPct        decimal.Decimal `json:"apy_pct"`
	Periods       int             `json:"periods"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	Points        []SeriesPoint   `json:"points"`
}
