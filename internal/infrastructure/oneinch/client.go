package oneinch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
)

// Quote is an aggregator quote in integer base units
type Quote struct {
	FromAmount   *big.Int
	ToAmount     *big.Int
	EstimatedGas int64
	Protocols    []string
}

type routePart struct {
	Name string `json:"name"`
}

type quoteResponse struct {
	FromTokenAmount string `json:"fromTokenAmount"`
	ToTokenAmount   string `json:"toTokenAmount"`
	ToAmount        string `json:"toAmount"`
	EstimatedGas    int64  `json:"estimatedGas"`
	Gas             int64  `json:"gas"`
	// routes -> hops -> parts
	Protocols [][][]routePart `json:"protocols"`
}

type errorResponse struct {
	Description string `json:"description"`
	Error       string `json:"error"`
}

// Client asks a 1inch-compatible aggregator for swap quotes
type Client struct {
	baseURL    string
	apiKey     string
	chainID    int64
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new aggregator client for the given chain
func NewClient(cfg config.SwapConfig, chainID int64, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		chainID:    chainID,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// Quote requests a quote for swapping amount base units of src into dst.
// src and dst are token contract addresses.
func (c *Client) Quote(ctx context.Context, src, dst string, amount *big.Int) (*Quote, error) {
	params := url.Values{}
	params.Set("src", src)
	params.Set("dst", dst)
	params.Set("amount", amount.String())
	params.Set("includeProtocols", "true")
	params.Set("includeGas", "true")

	endpoint := fmt.Sprintf("%s/%d/quote?%s", c.baseURL, c.chainID, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Description != "" {
			return nil, fmt.Errorf("aggregator HTTP %d: %s", resp.StatusCode, apiErr.Description)
		}
		return nil, fmt.Errorf("aggregator HTTP %d: %s", resp.StatusCode, string(body))
	}

	var raw quoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	return raw.toQuote(amount)
}

func (r quoteResponse) toQuote(requested *big.Int) (*Quote, error) {
	toRaw := lo.Ternary(r.ToTokenAmount != "", r.ToTokenAmount, r.ToAmount)
	toAmount, ok := new(big.Int).SetString(toRaw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid destination amount %q", toRaw)
	}

	fromAmount := new(big.Int).Set(requested)
	if r.FromTokenAmount != "" {
		parsed, ok := new(big.Int).SetString(r.FromTokenAmount, 10)
		if !ok {
			return nil, fmt.Errorf("invalid source amount %q", r.FromTokenAmount)
		}
		fromAmount = parsed
	}

	var names []string
	for _, route := range r.Protocols {
		for _, hop := range route {
			for _, part := range hop {
				names = append(names, part.Name)
			}
		}
	}

	return &Quote{
		FromAmount:   fromAmount,
		ToAmount:     toAmount,
		EstimatedGas: lo.Ternary(r.EstimatedGas != 0, r.EstimatedGas, r.Gas),
		Protocols:    lo.Uniq(lo.Compact(names)),
	}, nil
}
