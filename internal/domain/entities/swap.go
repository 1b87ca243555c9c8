package entities

import "github.com/shopspring/decimal"

// SwapQuote is an aggregator quote for exchanging two tracked tokens
type SwapQuote struct {
	Src             string          `json:"src"`
	Dst             string          `json:"dst"`
	FromTokenAmount decimal.Decimal `json:"from_token_amount"`
	ToTokenAmount   decimal.Decimal `json:"to_token_amount"`
	EstimatedGas    int64           `json:"estimated_gas"`
	Protocols       []string        `json:"protocols"`
	Estimated       bool            `json:"estimated"` // derived from oracle prices, not the aggregator
}
