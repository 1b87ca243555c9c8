package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

const (
	msgRateLimited   = "Rate limit exceeded, try again in an hour"
	msgUnauthorized  = "Authentication required"
	msgNotFound      = "Not found"
	msgUnexpected    = "Sorry, something went wrong. Please try again later."
	msgUnavailable   = "Upstream service unavailable, please try again later"
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error to its status. Validation messages
// are passed through; everything unexpected is logged and hidden.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, entities.ErrValidation):
		respondError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, entities.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, entities.ErrNotFound):
		respondError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, entities.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, msgRateLimited)
	case errors.Is(err, entities.ErrUpstreamUnavailable):
		logger.Warn(op+" failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, msgUnavailable)
	default:
		logger.Error(op+" failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgUnexpected)
	}
}

// validationMessage strips the sentinel prefix from a wrapped validation error
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), entities.ErrValidation.Error()+": ")
	if msg == "" || msg == entities.ErrValidation.Error() {
		return "Invalid request"
	}
	return msg
}

func isValidAddress(addr string) bool {
	return entities.IsValidAddress(addr)
}

// parsePagination reads limit and offset, falling back to defaults on bad input
func parsePagination(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= maxPageLimit {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}
