package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/application/services"
	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/infrastructure/llm"
	"github.com/bimakw/defi-copilot/internal/presentation/middleware"
	"github.com/bimakw/defi-copilot/internal/testutil"
)

type chatHandlerDeps struct {
	conversations *testutil.MockConversationRepository
	provider      *testutil.MockChatProvider
}

func setupChatHandlerTest(limitPerHour int) (*chi.Mux, chatHandlerDeps) {
	deps := chatHandlerDeps{
		conversations: testutil.NewMockConversationRepository(),
		provider:      testutil.NewMockChatProvider("Staking locks your tokens to secure the network."),
	}
	logger := zap.NewNop()

	cfg := config.ChatConfig{
		RateLimitPerHour: limitPerHour,
		HistoryLimit:     20,
		MaxMessageLength: 4000,
	}
	service := services.NewChatService(
		deps.conversations,
		testutil.NewMockRateLimitRepository(),
		testutil.NewMockHoldingsSource(),
		deps.provider,
		cfg,
		services.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	handler := NewChatHandler(service, logger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, deps
}

func newChatRequest(method, path, body, userID string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}

func TestChatHandler_Chat(t *testing.T) {
	r, deps := setupChatHandlerTest(50)

	req := newChatRequest(http.MethodPost, "/chat", `{"message":"How does staking work?"}`, testutil.TestUserID)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var reply entities.ChatReply
	if err := json.NewDecoder(rec.Body).Decode(&reply); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if reply.Response != "Staking locks your tokens to secure the network." {
		t.Errorf("unexpected response %q", reply.Response)
	}
	if reply.Intent != entities.IntentStakeToken {
		t.Errorf("expected stake_token intent, got %s", reply.Intent)
	}
	if !reply.RequiresWeb3 {
		t.Error("expected staking to require web3")
	}
	if _, err := uuid.Parse(reply.ConversationID); err != nil {
		t.Errorf("expected conversation id, got %q", reply.ConversationID)
	}
	if deps.conversations.ConversationCount() != 1 {
		t.Errorf("expected 1 conversation, got %d", deps.conversations.ConversationCount())
	}
}

func TestChatHandler_Chat_Unauthenticated(t *testing.T) {
	r, deps := setupChatHandlerTest(50)

	req := newChatRequest(http.MethodPost, "/chat", `{"message":"hi"}`, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if deps.provider.CallCount() != 0 {
		t.Error("expected provider not to be called")
	}
}

func TestChatHandler_Chat_BadInput(t *testing.T) {
	r, _ := setupChatHandlerTest(50)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"message":`},
		{"empty message", `{"message":"   "}`},
		{"bad conversation id", `{"message":"hi","conversationId":"nope"}`},
		{"bad wallet", `{"message":"hi","walletAddress":"0x123"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newChatRequest(http.MethodPost, "/chat", tt.body, testutil.TestUserID)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestChatHandler_Chat_RateLimited(t *testing.T) {
	r, _ := setupChatHandlerTest(1)
	window := time.Now().UTC().Truncate(time.Hour)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, newChatRequest(http.MethodPost, "/chat", `{"message":"hi"}`, testutil.TestUserID))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, newChatRequest(http.MethodPost, "/chat", `{"message":"hi again"}`, testutil.TestUserID))

	if !time.Now().UTC().Truncate(time.Hour).Equal(window) {
		t.Skip("hour window rolled over between requests")
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["error"] != "Rate limit exceeded, try again in an hour" {
		t.Errorf("unexpected error message %q", body["error"])
	}
}

func TestChatHandler_Chat_ProviderDown(t *testing.T) {
	r, deps := setupChatHandlerTest(50)
	deps.provider.Err = fmt.Errorf("%w: anthropic timeout", entities.ErrUpstreamUnavailable)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, newChatRequest(http.MethodPost, "/chat", `{"message":"hi"}`, testutil.TestUserID))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if deps.conversations.ConversationCount() != 0 {
		t.Error("expected nothing persisted")
	}
}

func TestChatHandler_Chat_AnthropicOverloaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
	}))
	defer server.Close()

	logger := zap.NewNop()
	cfg := config.ChatConfig{
		AnthropicAPIKey:  "test-key",
		Model:            "claude-test",
		MaxTokens:        256,
		RequestTimeout:   5 * time.Second,
		RateLimitPerHour: 50,
		HistoryLimit:     20,
		MaxMessageLength: 4000,
	}
	conversations := testutil.NewMockConversationRepository()
	provider := llm.NewAnthropicProvider(cfg, logger, option.WithBaseURL(server.URL), option.WithMaxRetries(0))
	service := services.NewChatService(
		conversations,
		testutil.NewMockRateLimitRepository(),
		testutil.NewMockHoldingsSource(),
		provider,
		cfg,
		services.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	r := chi.NewRouter()
	NewChatHandler(service, logger).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, newChatRequest(http.MethodPost, "/chat", `{"message":"hi"}`, testutil.TestUserID))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if conversations.ConversationCount() != 0 {
		t.Error("expected nothing persisted")
	}
}

func TestChatHandler_GetMessages(t *testing.T) {
	r, deps := setupChatHandlerTest(50)

	convID := uuid.New()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	deps.conversations.AddConversation(
		&entities.Conversation{ID: convID, UserID: testutil.TestUserID, Title: "hello", CreatedAt: now, UpdatedAt: now},
		entities.ChatMessage{ID: uuid.New(), ConversationID: convID, Role: entities.RoleUser, Content: "hello", CreatedAt: now},
		entities.ChatMessage{ID: uuid.New(), ConversationID: convID, Role: entities.RoleAssistant, Content: "hi there", CreatedAt: now},
	)

	tests := []struct {
		name       string
		userID     string
		id         string
		wantStatus int
	}{
		{"owner", testutil.TestUserID, convID.String(), http.StatusOK},
		{"other user", "user-2", convID.String(), http.StatusNotFound},
		{"unknown conversation", testutil.TestUserID, uuid.NewString(), http.StatusNotFound},
		{"malformed id", testutil.TestUserID, "not-a-uuid", http.StatusBadRequest},
		{"unauthenticated", "", convID.String(), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newChatRequest(http.MethodGet, "/chat/conversations/"+tt.id+"/messages", "", tt.userID)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var response services.MessagesResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(response.Data) != 2 {
				t.Errorf("expected 2 messages, got %d", len(response.Data))
			}
		})
	}
}
