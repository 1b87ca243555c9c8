package intent

import (
	"testing"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text     string
		expected entities.Intent
	}{
		{"What's my portfolio balance?", entities.IntentCheckBalance},
		{"How do I stake 100 MATIC?", entities.IntentStakeToken},
		{"hello", entities.IntentGeneralQuestion},
		{"", entities.IntentGeneralQuestion},
		{"Swap 1 ETH to USDC", entities.IntentSwapToken},
		{"where can I EXCHANGE tokens", entities.IntentSwapToken},
		{"is liquid staking worth it", entities.IntentStakeToken},
		{"Which is the safest lending market?", entities.IntentCompareProtocols},
		{"what's the best protocol for yield", entities.IntentCompareProtocols},
		{"Explain impermanent loss", entities.IntentExplainConcept},
		{"What is a liquidity pool?", entities.IntentExplainConcept},
		// earlier rules win when several match
		{"swap my portfolio into stablecoins", entities.IntentCheckBalance},
		{"explain how to stake", entities.IntentStakeToken},
		{"what is the safest way to swap", entities.IntentSwapToken},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("accepts known intents", func(t *testing.T) {
		got, ok := Parse(" Swap_Token ")
		if !ok || got != entities.IntentSwapToken {
			t.Errorf("expected swap_token, got %s (ok=%v)", got, ok)
		}
	})

	t.Run("rejects unknown intents", func(t *testing.T) {
		got, ok := Parse("buy_nft")
		if ok {
			t.Error("expected unknown intent to be rejected")
		}
		if got != entities.IntentGeneralQuestion {
			t.Errorf("expected general_question fallback, got %s", got)
		}
	})
}

func TestResolve(t *testing.T) {
	if got := Resolve("explain_concept", "swap 1 ETH"); got != entities.IntentExplainConcept {
		t.Errorf("expected client intent to win, got %s", got)
	}
	if got := Resolve("", "swap 1 ETH"); got != entities.IntentSwapToken {
		t.Errorf("expected classified intent, got %s", got)
	}
	if got := Resolve("bogus", "check my balance"); got != entities.IntentCheckBalance {
		t.Errorf("expected classified intent for unknown name, got %s", got)
	}
}

func TestRequiresWeb3(t *testing.T) {
	web3 := map[entities.Intent]bool{
		entities.IntentCheckBalance:     false,
		entities.IntentSwapToken:        true,
		entities.IntentStakeToken:       true,
		entities.IntentCompareProtocols: false,
		entities.IntentExplainConcept:   false,
		entities.IntentGeneralQuestion:  false,
	}
	for i, expected := range web3 {
		if got := i.RequiresWeb3(); got != expected {
			t.Errorf("%s: expected %v, got %v", i, expected, got)
		}
	}
}
