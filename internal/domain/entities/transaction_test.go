package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransaction_Validate(t *testing.T) {
	valid := Transaction{
		WalletAddress: "0x1111111111111111111111111111111111111111",
		Symbol:        "ETH",
		Type:          TransactionBuy,
		Quantity:      decimal.NewFromInt(1),
		PriceUSD:      decimal.NewFromInt(2000),
		Timestamp:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Source:        SourceManual,
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr bool
	}{
		{"valid buy", func(tx *Transaction) {}, false},
		{"valid sell", func(tx *Transaction) { tx.Type = TransactionSell }, false},
		{"zero price allowed", func(tx *Transaction) { tx.PriceUSD = decimal.Zero }, false},
		{"unknown type", func(tx *Transaction) { tx.Type = "hold" }, true},
		{"missing symbol", func(tx *Transaction) { tx.Symbol = "" }, true},
		{"zero quantity", func(tx *Transaction) { tx.Quantity = decimal.Zero }, true},
		{"negative quantity", func(tx *Transaction) { tx.Quantity = decimal.NewFromInt(-1) }, true},
		{"negative price", func(tx *Transaction) { tx.PriceUSD = decimal.NewFromInt(-5) }, true},
		{"missing timestamp", func(tx *Transaction) { tx.Timestamp = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)

			err := tx.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTransaction_Value(t *testing.T) {
	tx := Transaction{Quantity: decimal.RequireFromString("1.5"), PriceUSD: decimal.NewFromInt(2000)}
	if !tx.Value().Equal(decimal.NewFromInt(3000)) {
		t.Errorf("expected 3000, got %s", tx.Value())
	}
}

func TestIntent_RequiresWeb3(t *testing.T) {
	tests := []struct {
		intent Intent
		want   bool
	}{
		{IntentCheckBalance, false},
		{IntentSwapToken, true},
		{IntentStakeToken, true},
		{IntentCompareProtocols, false},
		{IntentExplainConcept, false},
		{IntentGeneralQuestion, false},
	}

	for _, tt := range tests {
		if got := tt.intent.RequiresWeb3(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.intent, tt.want, got)
		}
	}
}
