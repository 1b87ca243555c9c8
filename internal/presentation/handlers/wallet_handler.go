package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/application/services"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// maxSeriesPoints bounds the performance series a client may request
const maxSeriesPoints = 1000

// WalletHandler handles HTTP requests for wallet holdings, performance and ledger
type WalletHandler struct {
	holdings  services.HoldingsSource
	portfolio *services.PortfolioService
	logger    *zap.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(holdings services.HoldingsSource, portfolio *services.PortfolioService, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		holdings:  holdings,
		portfolio: portfolio,
		logger:    logger,
	}
}

// HoldingsResponse wraps holdings for API response
type HoldingsResponse struct {
	Data *entities.Holdings `json:"data"`
}

// RegisterRoutes registers the wallet routes on a chi router
func (h *WalletHandler) RegisterRoutes(r chi.Router) {
	r.Route("/wallets/{address}", func(r chi.Router) {
		r.Get("/holdings", h.GetHoldings)
		r.Get("/allocation", h.GetAllocation)
		r.Get("/performance", h.GetPerformance)
		r.Get("/transactions", h.ListTransactions)
		r.Post("/transactions", h.AppendTransaction)
	})
}

// walletAddress reads and validates the {address} path parameter
func (h *WalletHandler) walletAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := chi.URLParam(r, "address")
	if !isValidAddress(address) {
		respondError(w, http.StatusBadRequest, "Invalid wallet address format")
		return "", false
	}
	return strings.ToLower(address), true
}

// GetHoldings handles GET /api/v1/wallets/{address}/holdings
func (h *WalletHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	address, ok := h.walletAddress(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, HoldingsResponse{Data: h.holdings.GetHoldings(r.Context(), address)})
}

// GetAllocation handles GET /api/v1/wallets/{address}/allocation
func (h *WalletHandler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	address, ok := h.walletAddress(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, h.portfolio.GetAllocation(r.Context(), address))
}

// GetPerformance handles GET /api/v1/wallets/{address}/performance?points=N&demo=bool
func (h *WalletHandler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	address, ok := h.walletAddress(w, r)
	if !ok {
		return
	}

	points := 0
	if v := r.URL.Query().Get("points"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > maxSeriesPoints {
			respondError(w, http.StatusBadRequest, "points must be between 0 and 1000")
			return
		}
		points = p
	}

	demo := false
	if v := r.URL.Query().Get("demo"); v != "" {
		d, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "demo must be a boolean")
			return
		}
		demo = d
	}

	response, err := h.portfolio.GetPerformance(r.Context(), address, points, demo)
	if err != nil {
		respondServiceError(w, h.logger.With(zap.String("address", address)), "Get performance", err)
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// ListTransactions handles GET /api/v1/wallets/{address}/transactions
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	address, ok := h.walletAddress(w, r)
	if !ok {
		return
	}

	filter := entities.DefaultTransactionFilter(address)
	filter.Limit, filter.Offset = parsePagination(r)

	if v := r.URL.Query().Get("symbol"); v != "" {
		symbol := strings.ToUpper(strings.TrimSpace(v))
		filter.Symbol = &symbol
	}
	if v := r.URL.Query().Get("from_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.FromTime = &t
		}
	}
	if v := r.URL.Query().Get("to_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.ToTime = &t
		}
	}

	response, err := h.portfolio.ListTransactions(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, "List transactions", err)
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// AppendTransaction handles POST /api/v1/wallets/{address}/transactions
func (h *WalletHandler) AppendTransaction(w http.ResponseWriter, r *http.Request) {
	address, ok := h.walletAddress(w, r)
	if !ok {
		return
	}

	var input services.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, err := h.portfolio.AppendTransaction(r.Context(), address, input)
	if err != nil {
		respondServiceError(w, h.logger, "Append transaction", err)
		return
	}

	respondJSON(w, http.StatusCreated, response)
}
