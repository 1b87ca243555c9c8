package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/application/services"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/presentation/middleware"
)

// ChatHandler handles HTTP requests for the assistant
type ChatHandler struct {
	service *services.ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service *services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// ChatRequestBody is the JSON body of POST /chat
type ChatRequestBody struct {
	Message        string `json:"message"`
	Intent         string `json:"intent,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	WalletAddress  string `json:"walletAddress,omitempty"`
}

// RegisterRoutes registers the chat routes. They expect the auth middleware
// to have put a user id on the request context.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Get("/chat/conversations/{id}/messages", h.GetMessages)
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var body ChatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.service.Chat(r.Context(), entities.ChatRequest{
		UserID:         userID,
		Message:        body.Message,
		Intent:         body.Intent,
		ConversationID: body.ConversationID,
		WalletAddress:  body.WalletAddress,
	})
	if err != nil {
		respondServiceError(w, h.logger.With(zap.String("user_id", userID)), "Chat", err)
		return
	}

	respondJSON(w, http.StatusOK, reply)
}

// GetMessages handles GET /api/v1/chat/conversations/{id}/messages
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	response, err := h.service.GetMessages(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, "Get messages", err)
		return
	}

	respondJSON(w, http.StatusOK, response)
}
