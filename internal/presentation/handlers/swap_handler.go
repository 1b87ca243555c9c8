package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/application/services"
)

// SwapHandler handles HTTP requests for swap quotes
type SwapHandler struct {
	service *services.SwapService
	logger  *zap.Logger
}

// NewSwapHandler creates a new swap handler
func NewSwapHandler(service *services.SwapService, logger *zap.Logger) *SwapHandler {
	return &SwapHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the swap routes
func (h *SwapHandler) RegisterRoutes(r chi.Router) {
	r.Get("/swap/quote", h.GetQuote)
}

// GetQuote handles GET /api/v1/swap/quote?src=ETH&dst=USDC&amount=1.5
func (h *SwapHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	src, dst := q.Get("src"), q.Get("dst")
	if src == "" || dst == "" {
		respondError(w, http.StatusBadRequest, "src and dst are required")
		return
	}

	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "amount must be a decimal number")
		return
	}

	response, err := h.service.Quote(r.Context(), src, dst, amount)
	if err != nil {
		respondServiceError(w, h.logger, "Get swap quote", err)
		return
	}

	respondJSON(w, http.StatusOK, response)
}
