package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// AnthropicProvider answers chat turns with the Anthropic Messages API
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// NewAnthropicProvider creates a provider from chat configuration.
// Extra request options are appended after the API key.
func NewAnthropicProvider(cfg config.ChatConfig, logger *zap.Logger, opts ...option.RequestOption) *AnthropicProvider {
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.AnthropicAPIKey),
		option.WithRequestTimeout(cfg.RequestTimeout),
	}, opts...)

	return &AnthropicProvider{
		client:    anthropic.NewClient(reqOpts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Complete sends the system prompt and conversation history and returns the
// assistant's text. The history must end with the user's latest message.
func (p *AnthropicProvider) Complete(ctx context.Context, system string, history []entities.ChatMessage) (string, error) {
	messages := toMessageParams(history)
	if len(messages) == 0 {
		return "", fmt.Errorf("failed to complete chat: empty history")
	}

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  messages,
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			p.logger.Warn("Language model request rejected",
				zap.Int("status", apiErr.StatusCode),
				zap.String("model", p.model),
			)
		}
		return "", fmt.Errorf("%w: failed to complete chat: %v", entities.ErrUpstreamUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: failed to complete chat: empty response (stop reason %s)", entities.ErrUpstreamUnavailable, msg.StopReason)
	}

	p.logger.Debug("Language model responded",
		zap.String("model", p.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	return text, nil
}

// toMessageParams converts stored messages into API turns. Consecutive
// messages from the same role are merged and leading assistant turns are
// dropped, since the API expects alternating turns that open with the user.
func toMessageParams(history []entities.ChatMessage) []anthropic.MessageParam {
	type turn struct {
		role  entities.Role
		parts []string
	}

	var turns []turn
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if len(turns) == 0 && m.Role != entities.RoleUser {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == m.Role {
			turns[n-1].parts = append(turns[n-1].parts, m.Content)
			continue
		}
		turns = append(turns, turn{role: m.Role, parts: []string{m.Content}})
	}

	params := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == entities.RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
	}
	return params
}
