package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/domain/repositories"
)

// Ensure ChatRepo implements the chat repositories
var (
	_ repositories.ConversationRepository = (*ChatRepo)(nil)
	_ repositories.RateLimitRepository    = (*ChatRepo)(nil)
	_ repositories.SessionRepository      = (*ChatRepo)(nil)
)

// ChatRepo implements conversation, rate limit and session storage using PostgreSQL
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo creates a new chat repository
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// GetConversation retrieves a conversation by ID
func (r *ChatRepo) GetConversation(ctx context.Context, id uuid.UUID) (*entities.Conversation, error) {
	var conv entities.Conversation
	query := `SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = $1`

	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conv, nil
}

// ListMessages returns the latest messages of a conversation, oldest first
func (r *ChatRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]entities.ChatMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, intent, created_at
		FROM (
			SELECT id, conversation_id, role, content, intent, created_at, seq
			FROM messages
			WHERE conversation_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC
	`

	var messages []entities.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, conversationID, limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// SaveExchange stores a conversation and its new messages in one transaction
func (r *ChatRepo) SaveExchange(ctx context.Context, conv *entities.Conversation, isNew bool, messages []entities.ChatMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if isNew {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`,
			conv.ID, conv.UserID, conv.Title, conv.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
			conv.ID, conv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
	}

	for _, m := range messages {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, intent, created_at)
			VALUES (:id, :conversation_id, :role, :content, :intent, :created_at)
		`, m)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCount returns the requests counted for a user's window
func (r *ChatRepo) GetCount(ctx context.Context, userID string, windowStart time.Time) (int, error) {
	var count int
	query := `SELECT request_count FROM chat_rate_limits WHERE user_id = $1 AND window_start = $2`

	if err := r.db.GetContext(ctx, &count, query, userID, windowStart); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get rate limit: %w", err)
	}

	return count, nil
}

// Upsert sets the request count for a user's window
func (r *ChatRepo) Upsert(ctx context.Context, userID string, windowStart time.Time, count int) error {
	query := `
		INSERT INTO chat_rate_limits (user_id, window_start, request_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, window_start) DO UPDATE SET
			request_count = EXCLUDED.request_count,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, userID, windowStart, count); err != nil {
		return fmt.Errorf("failed to upsert rate limit: %w", err)
	}

	return nil
}

// GetByTokenHash retrieves a session by hashed token
func (r *ChatRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*entities.Session, error) {
	var session entities.Session
	query := `SELECT token_hash, user_id, expires_at, created_at FROM sessions WHERE token_hash = $1`

	if err := r.db.GetContext(ctx, &session, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}
