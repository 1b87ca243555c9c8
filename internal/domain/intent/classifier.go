// Package intent maps chat messages to a fixed set of intents.
package intent

import (
	"strings"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

type rule struct {
	intent   entities.Intent
	keywords []string
}

// rules are evaluated in order; the first rule with a matching keyword wins
var rules = []rule{
	{intent: entities.IntentCheckBalance, keywords: []string{"balance", "portfolio"}},
	{intent: entities.IntentSwapToken, keywords: []string{"swap", "exchange"}},
	{intent: entities.IntentStakeToken, keywords: []string{"stake", "staking"}},
	{intent: entities.IntentCompareProtocols, keywords: []string{"safest", "best protocol"}},
	{intent: entities.IntentExplainConcept, keywords: []string{"explain", "what is"}},
}

// Classify returns the intent of a free-text message
func Classify(text string) entities.Intent {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.intent
			}
		}
	}
	return entities.IntentGeneralQuestion
}

// Parse maps a client-supplied intent name to a known intent
func Parse(name string) (entities.Intent, bool) {
	switch i := entities.Intent(strings.ToLower(strings.TrimSpace(name))); i {
	case entities.IntentCheckBalance,
		entities.IntentSwapToken,
		entities.IntentStakeToken,
		entities.IntentCompareProtocols,
		entities.IntentExplainConcept,
		entities.IntentGeneralQuestion:
		return i, true
	}
	return entities.IntentGeneralQuestion, false
}

// Resolve uses the client's intent when it is known and classifies the message otherwise
func Resolve(name, message string) entities.Intent {
	if i, ok := Parse(name); ok {
		return i
	}
	return Classify(message)
}
