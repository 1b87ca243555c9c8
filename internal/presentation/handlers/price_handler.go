package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/application/services"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// PriceHandler handles HTTP requests for token prices
type PriceHandler struct {
	service services.PriceSource
	logger  *zap.Logger
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(service services.PriceSource, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{
		service: service,
		logger:  logger,
	}
}

// PricesResponse wraps prices for API response
type PricesResponse struct {
	Data map[string]entities.TokenPrice `json:"data"`
}

// RegisterRoutes registers the price routes
func (h *PriceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/prices", h.GetPrices)
}

// GetPrices handles GET /prices?symbols=ETH,BTC
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if v := r.URL.Query().Get("symbols"); v != "" {
		symbols = lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
	}

	prices := h.service.GetPrices(r.Context(), symbols)

	respondJSON(w, http.StatusOK, PricesResponse{Data: prices})
}
