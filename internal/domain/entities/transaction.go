package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a trade
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// TransactionSource records where a ledger entry came from
type TransactionSource string

const (
	SourceManual TransactionSource = "manual"
	SourceChain  TransactionSource = "chain"
	SourceMock   TransactionSource = "mock"
)

// Transaction is an append-only ledger entry for a wallet
type Transaction struct {
	ID            int64             `db:"id" json:"id"`
	WalletAddress string            `db:"wallet_address" json:"wallet_address"`
	Symbol        string            `db:"symbol" json:"symbol"`
	Type          TransactionType   `db:"type" json:"type"`
	Quantity      decimal.Decimal   `db:"quantity" json:"quantity"`
	PriceUSD      decimal.Decimal   `db:"price_usd" json:"price_usd"`
	Timestamp     time.Time         `db:"timestamp" json:"timestamp"`
	Source        TransactionSource `db:"source" json:"source"`
	TxHash        *string           `db:"tx_hash" json:"tx_hash,omitempty"`
	LogIndex      *int              `db:"log_index" json:"log_index,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// Value returns quantity × price
func (t Transaction) Value() decimal.Decimal {
	return t.Quantity.Mul(t.PriceUSD)
}

// Validate checks a transaction before it is appended to the ledger
func (t Transaction) Validate() error {
	if t.Type != TransactionBuy && t.Type != TransactionSell {
		return fmt.Errorf("%w: type must be buy or sell", ErrValidation)
	}
	if t.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if t.PriceUSD.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return nil
}

// TransactionFilter contains filters for querying the ledger
type TransactionFilter struct {
	WalletAddress string
	Symbol        *string
	FromTime      *time.Time
	ToTime        *time.Time
	Limit         int
	Offset        int
}

// DefaultTransactionFilter returns a filter with sensible defaults
func DefaultTransactionFilter(walletAddress string) TransactionFilter {
	return TransactionFilter{
		WalletAddress: walletAddress,
		Limit:         1000,
		Offset:        0,
	}
}

// SyncState tracks chain history import progress for a wallet
type SyncState struct {
	WalletAddress    string    `db:"wallet_address"`
	LastIndexedBlock int64     `db:"last_indexed_block"`
	UpdatedAt        time.Time `db:"updated_at"`
}
