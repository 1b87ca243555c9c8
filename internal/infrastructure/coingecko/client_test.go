package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
)

func newTestClient(url string, maxRetries int) *Client {
	return NewClient(config.PricesConfig{
		CoinGeckoURL:   url,
		APIKey:         "demo-key",
		RequestTimeout: 5 * time.Second,
		MaxRetries:     maxRetries,
		RetryDelay:     10 * time.Millisecond,
	}, zap.NewNop())
}

func TestFetchPrices(t *testing.T) {
	var gotIDs, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("ids")
		gotKey = r.Header.Get("x-cg-demo-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ethereum": {"usd": 2801.25, "usd_24h_change": -1.23456},
			"usd-coin": {"usd": 0.9998},
			"broken": {}
		}`))
	}))
	defer server.Close()

	quotes, err := newTestClient(server.URL, 0).FetchPrices(context.Background(), []string{"ethereum", "usd-coin", "broken"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotIDs != "ethereum,usd-coin,broken" {
		t.Errorf("expected ids query ethereum,usd-coin,broken, got %s", gotIDs)
	}
	if gotKey != "demo-key" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
	if !quotes["ethereum"].PriceUSD.Equal(decimal.RequireFromString("2801.25")) {
		t.Errorf("expected ETH 2801.25, got %s", quotes["ethereum"].PriceUSD)
	}
	if !quotes["ethereum"].Change24hPct.Equal(decimal.RequireFromString("-1.23")) {
		t.Errorf("expected change -1.23, got %s", quotes["ethereum"].Change24hPct)
	}
	if !quotes["usd-coin"].Change24hPct.IsZero() {
		t.Errorf("expected zero change when absent, got %s", quotes["usd-coin"].Change24hPct)
	}
	if _, ok := quotes["broken"]; ok {
		t.Error("expected entry without a usd price to be skipped")
	}
}

func TestFetchPrices_RetryOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"bitcoin": {"usd": 45000}}`))
	}))
	defer server.Close()

	quotes, err := newTestClient(server.URL, 2).FetchPrices(context.Background(), []string{"bitcoin"})
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if !quotes["bitcoin"].PriceUSD.Equal(decimal.NewFromInt(45000)) {
		t.Errorf("expected BTC 45000, got %s", quotes["bitcoin"].PriceUSD)
	}
}

func TestFetchPrices_GivesUpAfterRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 1).FetchPrices(context.Background(), []string{"bitcoin"})
	if err == nil {
		t.Fatal("expected error when every attempt fails")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestFetchPrices_ClientErrorIsNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).FetchPrices(context.Background(), []string{"bitcoin"})
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestFetchPrices_NoIDs(t *testing.T) {
	quotes, err := newTestClient("http://127.0.0.1:0", 0).FetchPrices(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 0 {
		t.Errorf("expected no quotes, got %d", len(quotes))
	}
}

func TestFetchPrices_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := newTestClient(server.URL, 0).FetchPrices(ctx, []string{"ethereum"}); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
