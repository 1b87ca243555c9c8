package entities

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// NativeTokenAddress is the placeholder DEX aggregators use for the chain's native asset
const NativeTokenAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// Token is a tracked asset: the native coin or an ERC-20 contract
type Token struct {
	Symbol      string `json:"symbol"`
	Address     string `json:"address,omitempty"` // empty for the native token
	Decimals    int    `json:"decimals"`          // -1 until resolved on-chain
	CoinGeckoID string `json:"coingecko_id"`
}

// IsNative reports whether the token is the chain's native asset
func (t Token) IsNative() bool {
	return t.Address == ""
}

// QuoteAddress returns the address used when asking an aggregator for quotes
func (t Token) QuoteAddress() string {
	if t.IsNative() {
		return NativeTokenAddress
	}
	return t.Address
}

// ToUnits converts an integer base-unit amount to a token quantity
func (t Token) ToUnits(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(t.Decimals))
}

// FromUnits converts a token quantity to integer base units, truncating dust
func (t Token) FromUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(int32(t.Decimals)).Truncate(0).BigInt()
}

// IsValidAddress reports whether s is a 0x-prefixed 20 byte hex address
func IsValidAddress(s string) bool {
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return false
	}
	for _, c := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// ParseTokenSpec parses "SYMBOL:address:decimals:coingecko-id"
func ParseTokenSpec(spec string) (Token, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) != 4 {
		return Token{}, fmt.Errorf("invalid token spec %q: expected SYMBOL:address:decimals:coingecko-id", spec)
	}

	symbol := strings.ToUpper(strings.TrimSpace(parts[0]))
	if symbol == "" {
		return Token{}, fmt.Errorf("invalid token spec %q: empty symbol", spec)
	}

	address := strings.ToLower(strings.TrimSpace(parts[1]))
	if address != "" && !IsValidAddress(address) {
		return Token{}, fmt.Errorf("invalid token spec %q: bad address", spec)
	}

	decimals := -1
	if d := strings.TrimSpace(parts[2]); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 || n > 36 {
			return Token{}, fmt.Errorf("invalid token spec %q: bad decimals", spec)
		}
		decimals = n
	}
	if address == "" && decimals < 0 {
		decimals = 18
	}

	return Token{
		Symbol:      symbol,
		Address:     address,
		Decimals:    decimals,
		CoinGeckoID: strings.TrimSpace(parts[3]),
	}, nil
}

// TokenRegistry is the set of tracked tokens, keyed by symbol and address
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens []Token
}

// NewTokenRegistry creates a registry from already parsed tokens
func NewTokenRegistry(tokens []Token) *TokenRegistry {
	return &TokenRegistry{tokens: append([]Token(nil), tokens...)}
}

// ParseTokenRegistry builds a registry from token specs, rejecting duplicate symbols
func ParseTokenRegistry(specs []string) (*TokenRegistry, error) {
	tokens := make([]Token, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		token, err := ParseTokenSpec(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[token.Symbol]; dup {
			return nil, fmt.Errorf("duplicate token symbol %s", token.Symbol)
		}
		seen[token.Symbol] = struct{}{}
		tokens = append(tokens, token)
	}
	return NewTokenRegistry(tokens), nil
}

// All returns a copy of the tracked tokens in configuration order
func (r *TokenRegistry) All() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Token(nil), r.tokens...)
}

// BySymbol finds a token by symbol, case-insensitively
func (r *TokenRegistry) BySymbol(symbol string) (Token, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return lo.Find(r.All(), func(t Token) bool { return t.Symbol == symbol })
}

// ByAddress finds an ERC-20 token by contract address
func (r *TokenRegistry) ByAddress(address string) (Token, bool) {
	address = strings.ToLower(address)
	return lo.Find(r.All(), func(t Token) bool { return !t.IsNative() && t.Address == address })
}

// ERC20 returns the tracked contract tokens
func (r *TokenRegistry) ERC20() []Token {
	return lo.Filter(r.All(), func(t Token, _ int) bool { return !t.IsNative() })
}

// Unresolved returns contract tokens whose decimals are not known yet
func (r *TokenRegistry) Unresolved() []Token {
	return lo.Filter(r.All(), func(t Token, _ int) bool { return t.Decimals < 0 })
}

// CoinGeckoIDs returns the distinct price feed ids of all tracked tokens
func (r *TokenRegistry) CoinGeckoIDs() []string {
	ids := lo.FilterMap(r.All(), func(t Token, _ int) (string, bool) {
		return t.CoinGeckoID, t.CoinGeckoID != ""
	})
	return lo.Uniq(ids)
}

// Update replaces the token with the same symbol
func (r *TokenRegistry) Update(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tokens {
		if r.tokens[i].Symbol == token.Symbol {
			r.tokens[i] = token
			return
		}
	}
}
