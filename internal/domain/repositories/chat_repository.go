package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// ConversationRepository defines the interface for chat persistence
type ConversationRepository interface {
	// GetConversation retrieves a conversation by ID, nil when it does not exist
	GetConversation(ctx context.Context, id uuid.UUID) (*entities.Conversation, error)

	// ListMessages returns the most recent messages of a conversation, oldest first
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]entities.ChatMessage, error)

	// SaveExchange stores the conversation (inserting it when isNew) and its
	// new messages atomically
	SaveExchange(ctx context.Context, conv *entities.Conversation, isNew bool, messages []entities.ChatMessage) error
}

// RateLimitRepository defines the interface for per-user request counters
type RateLimitRepository interface {
	// GetCount returns the requests counted for a user in the window starting at windowStart
	GetCount(ctx context.Context, userID string, windowStart time.Time) (int, error)

	// Upsert sets the request count for a user's window
	Upsert(ctx context.Context, userID string, windowStart time.Time, count int) error
}

// SessionRepository defines the interface for bearer-token sessions
type SessionRepository interface {
	// GetByTokenHash retrieves a session by the SHA-256 of its token, nil when unknown
	GetByTokenHash(ctx context.Context, tokenHash string) (*entities.Session, error)
}
