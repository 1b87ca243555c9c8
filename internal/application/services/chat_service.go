package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/domain/intent"
	"github.com/bimakw/defi-copilot/internal/domain/repositories"
)

const (
	titleMaxRunes      = 60
	messagesPageLimit  = 200
	basePersona        = "You are DeFi Copilot, a careful assistant for decentralized finance. Answer concisely, explain risks plainly and never ask for private keys or seed phrases. You cannot sign or send transactions yourself."
	walletContextIntro = "The user's connected wallet, as of the latest balance read:"
)

var intentInstructions = map[entities.Intent]string{
	entities.IntentCheckBalance:     "The user wants to understand their balances. Use the wallet context below when it is present and say so when it is missing.",
	entities.IntentSwapToken:        "The user wants to swap tokens. Walk through the steps, mention slippage and gas, and remind them the swap must be confirmed in their wallet.",
	entities.IntentStakeToken:       "The user wants to stake. Explain lock-up periods, reward variability and slashing or smart contract risk before any steps, and remind them staking is confirmed in their wallet.",
	entities.IntentCompareProtocols: "The user is comparing protocols. Compare on security track record, audits, liquidity and yield sustainability without endorsing a single option.",
	entities.IntentExplainConcept:   "The user wants a concept explained. Start from first principles and use a short concrete example.",
	entities.IntentGeneralQuestion:  "Answer the user's question about DeFi or their portfolio.",
}

// MessagesResponse wraps conversation messages for API response
type MessagesResponse struct {
	Data []entities.ChatMessage `json:"data"`
}

// ChatService orchestrates assistant conversations
type ChatService struct {
	conversations repositories.ConversationRepository
	rateLimits    repositories.RateLimitRepository
	holdings      HoldingsSource
	provider      ChatProvider
	config        config.ChatConfig
	metrics       *Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// NewChatService creates a new chat service. holdings may be nil, in which
// case answers are never grounded in wallet data.
func NewChatService(
	conversations repositories.ConversationRepository,
	rateLimits repositories.RateLimitRepository,
	holdings HoldingsSource,
	provider ChatProvider,
	cfg config.ChatConfig,
	metrics *Metrics,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		rateLimits:    rateLimits,
		holdings:      holdings,
		provider:      provider,
		config:        cfg,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// Chat answers one user turn and persists it with the reply
func (s *ChatService) Chat(ctx context.Context, req entities.ChatRequest) (*entities.ChatReply, error) {
	reply, err := s.chat(ctx, req)
	s.metrics.ChatRequests.WithLabelValues(chatOutcome(err)).Inc()
	return reply, err
}

func (s *ChatService) chat(ctx context.Context, req entities.ChatRequest) (*entities.ChatReply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", entities.ErrValidation)
	}
	if utf8.RuneCountInString(message) > s.config.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", entities.ErrValidation, s.config.MaxMessageLength)
	}

	wallet := strings.ToLower(strings.TrimSpace(req.WalletAddress))
	if wallet != "" && !entities.IsValidAddress(wallet) {
		return nil, fmt.Errorf("%w: invalid wallet address", entities.ErrValidation)
	}

	var conversationID uuid.UUID
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid conversation id", entities.ErrValidation)
		}
		conversationID = id
	}

	resolved := intent.Resolve(req.Intent, message)
	now := s.now().UTC()

	if err := s.consumeQuota(ctx, req.UserID, now); err != nil {
		return nil, err
	}

	conv, isNew, err := s.loadConversation(ctx, req.UserID, conversationID, message, now)
	if err != nil {
		return nil, err
	}

	var history []entities.ChatMessage
	if !isNew {
		history, err = s.conversations.ListMessages(ctx, conv.ID, s.config.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation history: %w", err)
		}
	}

	userMsg := entities.ChatMessage{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           entities.RoleUser,
		Content:        message,
		Intent:         resolved,
		CreatedAt:      now,
	}

	system := s.systemPrompt(ctx, resolved, wallet)

	start := time.Now()
	answer, err := s.provider.Complete(ctx, system, append(history, userMsg))
	s.metrics.LLMLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to get assistant response: %w", err)
	}

	assistantMsg := entities.ChatMessage{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           entities.RoleAssistant,
		Content:        answer,
		Intent:         resolved,
		CreatedAt:      s.now().UTC(),
	}
	conv.UpdatedAt = assistantMsg.CreatedAt

	if err := s.conversations.SaveExchange(ctx, conv, isNew, []entities.ChatMessage{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	s.metrics.ChatIntents.WithLabelValues(string(resolved)).Inc()
	s.logger.Info("Chat turn answered",
		zap.String("user_id", req.UserID),
		zap.String("conversation_id", conv.ID.String()),
		zap.String("intent", string(resolved)),
	)

	return &entities.ChatReply{
		Response:       answer,
		ConversationID: conv.ID.String(),
		Intent:         resolved,
		RequiresWeb3:   resolved.RequiresWeb3(),
	}, nil
}

// consumeQuota counts the request against the user's current hour window.
// Read and write are separate statements, so concurrent requests may slip
// slightly past the limit.
func (s *ChatService) consumeQuota(ctx context.Context, userID string, now time.Time) error {
	window := now.Truncate(time.Hour)

	count, err := s.rateLimits.GetCount(ctx, userID, window)
	if err != nil {
		return fmt.Errorf("failed to read rate limit: %w", err)
	}
	if count >= s.config.RateLimitPerHour {
		return fmt.Errorf("%w: %d requests per hour", entities.ErrRateLimited, s.config.RateLimitPerHour)
	}

	if err := s.rateLimits.Upsert(ctx, userID, window, count+1); err != nil {
		return fmt.Errorf("failed to update rate limit: %w", err)
	}
	return nil
}

func (s *ChatService) loadConversation(ctx context.Context, userID string, id uuid.UUID, message string, now time.Time) (*entities.Conversation, bool, error) {
	if id == uuid.Nil {
		return &entities.Conversation{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     conversationTitle(message),
			CreatedAt: now,
			UpdatedAt: now,
		}, true, nil
	}

	conv, err := s.conversations.GetConversation(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return nil, false, fmt.Errorf("%w: unknown conversation", entities.ErrValidation)
	}
	return conv, false, nil
}

func (s *ChatService) systemPrompt(ctx context.Context, i entities.Intent, wallet string) string {
	var sb strings.Builder
	sb.WriteString(basePersona)
	sb.WriteString("\n\n")
	sb.WriteString(intentInstructions[i])

	if wallet == "" || s.holdings == nil {
		return sb.String()
	}

	holdings := s.holdings.GetHoldings(ctx, wallet)
	sb.WriteString("\n\n")
	sb.WriteString(walletContextIntro)
	sb.WriteString("\n")
	sb.WriteString(formatWalletContext(entities.WalletContext{
		Address:       holdings.WalletAddress,
		TotalValueUSD: holdings.TotalValueUSD,
		Holdings:      holdings.Holdings,
	}))
	if holdings.Stale {
		sb.WriteString("\nSome of this data may be out of date.")
	}
	return sb.String()
}

// GetMessages returns a conversation's messages if it belongs to userID
func (s *ChatService) GetMessages(ctx context.Context, userID, conversationID string) (*MessagesResponse, error) {
	id, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid conversation id", entities.ErrValidation)
	}

	conv, err := s.conversations.GetConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return nil, entities.ErrNotFound
	}

	messages, err := s.conversations.ListMessages(ctx, id, messagesPageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return &MessagesResponse{Data: messages}, nil
}

func formatWalletContext(wc entities.WalletContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Address: %s\nTotal value: $%s\n", wc.Address, wc.TotalValueUSD.StringFixed(2))
	if len(wc.Holdings) == 0 {
		sb.WriteString("Holdings: none\n")
		return sb.String()
	}
	sb.WriteString("Holdings:\n")
	for _, h := range wc.Holdings {
		fmt.Fprintf(&sb, "- %s %s ($%s)\n", h.Quantity.String(), h.Symbol, h.ValueUSD.StringFixed(2))
	}
	return sb.String()
}

func conversationTitle(message string) string {
	if utf8.RuneCountInString(message) <= titleMaxRunes {
		return message
	}
	return string([]rune(message)[:titleMaxRunes]) + "..."
}

func chatOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, entities.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, entities.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
