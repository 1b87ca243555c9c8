package handlers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/application/services"
	"github.com/bimakw/defi-copilot/internal/infrastructure/oneinch"
	"github.com/bimakw/defi-copilot/internal/testutil"
)

func setupSwapHandlerTest() (*chi.Mux, *testutil.MockSwapQuoter) {
	quoter := testutil.NewMockSwapQuoter()
	logger := zap.NewNop()

	service := services.NewSwapService(
		quoter,
		testutil.NewMockPriceSource(testutil.TestPrices()),
		testutil.NewTestTokenRegistry(),
		services.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	handler := NewSwapHandler(service, logger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, quoter
}

func TestSwapHandler_GetQuote(t *testing.T) {
	r, quoter := setupSwapHandlerTest()
	quoter.QuoteFunc = func(ctx context.Context, src, dst string, amount *big.Int) (*oneinch.Quote, error) {
		return &oneinch.Quote{
			FromAmount:   amount,
			ToAmount:     big.NewInt(5_980_000_000),
			EstimatedGas: 180000,
			Protocols:    []string{"UNISWAP_V3"},
		}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/swap/quote?src=ETH&dst=USDC&amount=2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response services.SwapQuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Data.ToTokenAmount.Equal(decimal.NewFromInt(5980)) {
		t.Errorf("expected 5980 USDC, got %s", response.Data.ToTokenAmount)
	}
	if response.Data.Estimated {
		t.Error("expected aggregator quote")
	}
}

func TestSwapHandler_GetQuote_Estimated(t *testing.T) {
	r, _ := setupSwapHandlerTest()

	// MockSwapQuoter errors when no QuoteFunc is set
	req := httptest.NewRequest(http.MethodGet, "/swap/quote?src=ETH&dst=UNI&amount=0.5", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response services.SwapQuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Data.Estimated {
		t.Error("expected estimated quote")
	}
	if !response.Data.ToTokenAmount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected 150 UNI, got %s", response.Data.ToTokenAmount)
	}
}

func TestSwapHandler_GetQuote_BadInput(t *testing.T) {
	r, _ := setupSwapHandlerTest()

	tests := []struct {
		name  string
		query string
	}{
		{"missing src", "?dst=USDC&amount=1"},
		{"missing dst", "?src=ETH&amount=1"},
		{"missing amount", "?src=ETH&dst=USDC"},
		{"bad amount", "?src=ETH&dst=USDC&amount=lots"},
		{"unknown token", "?src=DOGE&dst=USDC&amount=1"},
		{"same token", "?src=ETH&dst=eth&amount=1"},
		{"zero amount", "?src=ETH&dst=USDC&amount=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/swap/quote"+tt.query, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
		})
	}
}
