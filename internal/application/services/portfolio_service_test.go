package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/testutil"
)

var portfolioNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupPortfolioServiceTest() (*PortfolioService, *testutil.MockHoldingsSource, *testutil.MockTransactionRepository) {
	holdings := testutil.NewMockHoldingsSource()
	txRepo := testutil.NewMockTransactionRepository()
	logger := zap.NewNop()

	service := NewPortfolioService(holdings, txRepo, testutil.NewTestTokenRegistry(), nil, time.Minute, logger)
	service.now = func() time.Time { return portfolioNow }
	service.newRand = func() *rand.Rand { return rand.New(rand.NewSource(7)) }
	return service, holdings, txRepo
}

func aliceHoldings() *entities.Holdings {
	return &entities.Holdings{
		WalletAddress: testutil.AliceAddress,
		Holdings: []entities.ValuedHolding{
			{Symbol: "ETH", Quantity: decimal.NewFromInt(2), PriceUSD: decimal.NewFromInt(3000), ValueUSD: decimal.NewFromInt(6000)},
			{Symbol: "UNI", Quantity: decimal.NewFromInt(3), PriceUSD: decimal.NewFromInt(10), ValueUSD: decimal.NewFromInt(30)},
		},
		TotalValueUSD: decimal.NewFromInt(6030),
	}
}

func TestPortfolioService_GetAllocation(t *testing.T) {
	service, holdings, _ := setupPortfolioServiceTest()
	holdings.SetHoldings(aliceHoldings())

	response := service.GetAllocation(context.Background(), testutil.AliceAddress)

	if !response.Data.TotalValueUSD.Equal(decimal.NewFromInt(6030)) {
		t.Errorf("expected total 6030, got %s", response.Data.TotalValueUSD)
	}
	if len(response.Data.Buckets) != 2 {
		t.Fatalf("expected ETH and Other buckets, got %d", len(response.Data.Buckets))
	}
	if response.Data.Buckets[0].Label != "ETH" {
		t.Errorf("expected ETH first, got %s", response.Data.Buckets[0].Label)
	}
	if response.Data.Buckets[1].Label != "Other" {
		t.Errorf("expected UNI folded into Other, got %s", response.Data.Buckets[1].Label)
	}
}

func TestPortfolioService_GetAllocation_EmptyWallet(t *testing.T) {
	service, _, _ := setupPortfolioServiceTest()

	response := service.GetAllocation(context.Background(), testutil.BobAddress)
	if len(response.Data.Buckets) != 0 {
		t.Errorf("expected no buckets, got %d", len(response.Data.Buckets))
	}
	if !response.Data.TotalValueUSD.IsZero() {
		t.Errorf("expected zero total, got %s", response.Data.TotalValueUSD)
	}
}

func TestPortfolioService_GetPerformance(t *testing.T) {
	service, holdings, txRepo := setupPortfolioServiceTest()
	holdings.SetHoldings(&entities.Holdings{
		WalletAddress: testutil.AliceAddress,
		TotalValueUSD: decimal.NewFromInt(6000),
	})
	txRepo.AddTransactions(
		testutil.CreateTestTransaction(testutil.WithPrice("2000"), testutil.WithTimestamp(portfolioNow.AddDate(0, 0, -30))),
		testutil.CreateTestTransaction(testutil.WithPrice("2500"), testutil.WithTimestamp(portfolioNow.AddDate(0, 0, -10))),
	)

	response, err := service.GetPerformance(context.Background(), testutil.AliceAddress, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pnl := response.Data.PnL
	if !pnl.TotalCostBasis.Equal(decimal.NewFromInt(4500)) {
		t.Errorf("expected cost basis 4500, got %s", pnl.TotalCostBasis)
	}
	if !pnl.UnrealizedPnL.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected unrealized 1500, got %s", pnl.UnrealizedPnL)
	}
	if !pnl.TotalROIPct.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("expected ROI 33.33, got %s", pnl.TotalROIPct)
	}

	series := response.Data.Series
	if len(series) != 11 {
		t.Fatalf("expected 11 points, got %d", len(series))
	}
	if !series[len(series)-1].Value.Equal(decimal.NewFromInt(6000)) {
		t.Errorf("expected last point at live value, got %s", series[len(series)-1].Value)
	}
	if response.Data.Demo {
		t.Error("expected real history not to be flagged as demo")
	}
}

func TestPortfolioService_GetPerformance_EmptyLedger(t *testing.T) {
	service, holdings, _ := setupPortfolioServiceTest()
	holdings.SetHoldings(aliceHoldings())

	response, err := service.GetPerformance(context.Background(), testutil.AliceAddress, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(response.Data.Series) != 0 {
		t.Errorf("expected empty series, got %d points", len(response.Data.Series))
	}
	if !response.Data.PnL.TotalPnL.IsZero() {
		t.Errorf("expected zero PnL, got %s", response.Data.PnL.TotalPnL)
	}
}

func TestPortfolioService_GetPerformance_Demo(t *testing.T) {
	service, holdings, txRepo := setupPortfolioServiceTest()
	holdings.SetHoldings(aliceHoldings())

	response, err := service.GetPerformance(context.Background(), testutil.AliceAddress, 30, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !response.Data.Demo {
		t.Error("expected demo flag")
	}
	if len(response.Data.Series) != 31 {
		t.Errorf("expected 31 points, got %d", len(response.Data.Series))
	}
	if !response.Data.PnL.TotalCostBasis.IsPositive() {
		t.Errorf("expected generated cost basis, got %s", response.Data.PnL.TotalCostBasis)
	}
	if len(txRepo.Transactions()) != 0 {
		t.Error("expected generated history not to be persisted")
	}
}

func TestPortfolioService_GetPerformance_RepoError(t *testing.T) {
	service, _, txRepo := setupPortfolioServiceTest()
	txRepo.ListFunc = func(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error) {
		return nil, errors.New("database error")
	}

	_, err := service.GetPerformance(context.Background(), testutil.AliceAddress, 10, false)
	if err == nil {
		t.Error("expected error")
	}
}

func TestPortfolioService_AppendTransaction(t *testing.T) {
	ts := portfolioNow.Add(-time.Hour)

	tests := []struct {
		name    string
		input   TransactionInput
		wantErr bool
	}{
		{
			name:  "valid buy",
			input: TransactionInput{Symbol: "eth", Type: "BUY", Quantity: decimal.NewFromInt(1), PriceUSD: decimal.NewFromInt(2000), Timestamp: &ts},
		},
		{
			name:  "defaults timestamp to now",
			input: TransactionInput{Symbol: "UNI", Type: "sell", Quantity: decimal.NewFromInt(5), PriceUSD: decimal.NewFromInt(9)},
		},
		{
			name:    "unknown token",
			input:   TransactionInput{Symbol: "DOGE", Type: "buy", Quantity: decimal.NewFromInt(1), PriceUSD: decimal.NewFromInt(1)},
			wantErr: true,
		},
		{
			name:    "bad type",
			input:   TransactionInput{Symbol: "ETH", Type: "hodl", Quantity: decimal.NewFromInt(1), PriceUSD: decimal.NewFromInt(1)},
			wantErr: true,
		},
		{
			name:    "zero quantity",
			input:   TransactionInput{Symbol: "ETH", Type: "buy", Quantity: decimal.Zero, PriceUSD: decimal.NewFromInt(1)},
			wantErr: true,
		},
		{
			name:    "future timestamp",
			input:   TransactionInput{Symbol: "ETH", Type: "buy", Quantity: decimal.NewFromInt(1), PriceUSD: decimal.NewFromInt(1), Timestamp: testutil.PointerTo(portfolioNow.Add(time.Hour))},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _, txRepo := setupPortfolioServiceTest()

			response, err := service.AppendTransaction(context.Background(), "0x1111111111111111111111111111111111111111", tt.input)
			if tt.wantErr {
				if !errors.Is(err, entities.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				if len(txRepo.Transactions()) != 0 {
					t.Error("expected nothing appended")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if response.Data.ID == 0 {
				t.Error("expected ID to be assigned")
			}
			if response.Data.Source != entities.SourceManual {
				t.Errorf("expected manual source, got %s", response.Data.Source)
			}
			if response.Data.Symbol != "ETH" && response.Data.Symbol != "UNI" {
				t.Errorf("expected normalized symbol, got %s", response.Data.Symbol)
			}
		})
	}
}

func TestPortfolioService_ListTransactions(t *testing.T) {
	service, _, txRepo := setupPortfolioServiceTest()
	txRepo.AddTransactions(testutil.CreateMultipleTransactions(5)...)

	filter := entities.DefaultTransactionFilter(testutil.AliceAddress)
	filter.Limit = 2
	filter.Offset = 1

	response, err := service.ListTransactions(context.Background(), filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(response.Data) != 2 {
		t.Errorf("expected 2 transactions, got %d", len(response.Data))
	}
	if response.Meta.Total != 5 {
		t.Errorf("expected total 5, got %d", response.Meta.Total)
	}
	if response.Meta.Limit != 2 || response.Meta.Offset != 1 {
		t.Errorf("expected limit 2 offset 1, got %d %d", response.Meta.Limit, response.Meta.Offset)
	}
}
