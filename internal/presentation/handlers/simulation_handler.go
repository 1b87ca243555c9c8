package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/application/services"
)

// SimulationHandler handles HTTP requests for yield projections
type SimulationHandler struct {
	service *services.SimulationService
	logger  *zap.Logger
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(service *services.SimulationService, logger *zap.Logger) *SimulationHandler {
	return &SimulationHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the simulation routes
func (h *SimulationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/simulations/projection", h.Project)
}

// Project handles POST /api/v1/simulations/projection
func (h *SimulationHandler) Project(w http.ResponseWriter, r *http.Request) {
	var input services.ProjectionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, err := h.service.Project(input)
	if err != nil {
		respondServiceError(w, h.logger, "Project yield", err)
		return
	}

	respondJSON(w, http.StatusOK, response)
}
