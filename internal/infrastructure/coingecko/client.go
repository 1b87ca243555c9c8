package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
)

// Quote is the USD price of one CoinGecko asset
type Quote struct {
	PriceUSD     decimal.Decimal
	Change24hPct decimal.Decimal
}

type simplePrice struct {
	USD          decimal.NullDecimal `json:"usd"`
	USD24hChange decimal.NullDecimal `json:"usd_24h_change"`
}

// Client fetches spot prices from the CoinGecko simple price API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
	logger     *zap.Logger
}

// NewClient creates a new CoinGecko API client
func NewClient(cfg config.PricesConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.CoinGeckoURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		delay:      cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// FetchPrices returns USD quotes keyed by CoinGecko ID.
// IDs the API does not know are absent from the result.
func (c *Client) FetchPrices(ctx context.Context, ids []string) (map[string]Quote, error) {
	if len(ids) == 0 {
		return map[string]Quote{}, nil
	}

	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	body, err := c.fetchWithRetry(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// {"ethereum":{"usd":2800.5,"usd_24h_change":-1.2},...}
	var raw map[string]simplePrice
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse CoinGecko response: %w", err)
	}

	quotes := make(map[string]Quote, len(raw))
	for id, p := range raw {
		if !p.USD.Valid {
			continue
		}
		quote := Quote{PriceUSD: p.USD.Decimal}
		if p.USD24hChange.Valid {
			quote.Change24hPct = p.USD24hChange.Decimal.Round(2)
		}
		quotes[id] = quote
	}

	return quotes, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			baseDelay := c.delay
			if baseDelay == 0 {
				baseDelay = time.Second
			}
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create CoinGecko request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("CoinGecko request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read CoinGecko response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("CoinGecko HTTP %d (attempt %d/%d)", resp.StatusCode, attempt+1, c.maxRetries+1)
			c.logger.Warn("CoinGecko request failed, retrying",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		return nil, fmt.Errorf("CoinGecko HTTP %d: %s", resp.StatusCode, string(body))
	}

	return nil, lastErr
}
