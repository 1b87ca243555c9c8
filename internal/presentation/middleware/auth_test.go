package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/testutil"
)

func TestHashToken(t *testing.T) {
	// sha256("secret")
	want := "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b"
	if got := HashToken("secret"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestAuth(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	sessions.AddSession(&entities.Session{
		TokenHash: HashToken("valid-token"),
		UserID:    testutil.TestUserID,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	sessions.AddSession(&entities.Session{
		TokenHash: HashToken("expired-token"),
		UserID:    testutil.TestUserID,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Auth(sessions, zap.NewNop())(next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"valid token", "Bearer valid-token", http.StatusOK, testutil.TestUserID},
		{"scheme is case insensitive", "bearer valid-token", http.StatusOK, testutil.TestUserID},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"empty token", "Bearer  ", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"expired token", "Bearer expired-token", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest("POST", "/chat", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if gotUserID != tt.wantUser {
				t.Errorf("expected user %q, got %q", tt.wantUser, gotUserID)
			}
		})
	}
}

func TestAuth_RepositoryError(t *testing.T) {
	sessions := testutil.NewMockSessionRepository()
	sessions.GetByTokenHashFunc = func(ctx context.Context, tokenHash string) (*entities.Session, error) {
		return nil, errors.New("database error")
	}

	called := false
	handler := Auth(sessions, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/chat/conversations/x/messages", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if called {
		t.Error("expected next handler not to run")
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("expected no user on empty context")
	}

	userID, ok := UserIDFromContext(WithUserID(context.Background(), "u-1"))
	if !ok || userID != "u-1" {
		t.Errorf("expected u-1, got %q %v", userID, ok)
	}
}
