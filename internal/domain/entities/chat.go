package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Intent is the classified purpose of a chat message
type Intent string

const (
	IntentCheckBalance     Intent = "check_balance"
	IntentSwapToken        Intent = "swap_token"
	IntentStakeToken       Intent = "stake_token"
	IntentCompareProtocols Intent = "compare_protocols"
	IntentExplainConcept   Intent = "explain_concept"
	IntentGeneralQuestion  Intent = "general_question"
)

// RequiresWeb3 reports whether the answer may lead to a wallet transaction
func (i Intent) RequiresWeb3() bool {
	return i == IntentStakeToken || i == IntentSwapToken
}

// Role is the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation groups the messages of one user thread
type Conversation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ChatMessage is a single persisted turn
type ChatMessage struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	Role           Role      `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	Intent         Intent    `db:"intent" json:"intent"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// WalletContext grounds assistant answers in the user's holdings
type WalletContext struct {
	Address       string          `json:"address"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
	Holdings      []ValuedHolding `json:"holdings"`
}

// ChatRequest is an authenticated chat turn
type ChatRequest struct {
	UserID         string
	Message        string
	Intent         string
	ConversationID string
	WalletAddress  string
}

// ChatReply is the assistant's answer to a chat turn
type ChatReply struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
	Intent         Intent `json:"intent"`
	RequiresWeb3   bool   `json:"requiresWeb3"`
}

// Session maps a hashed bearer token to a user
type Session struct {
	TokenHash string    `db:"token_hash"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
