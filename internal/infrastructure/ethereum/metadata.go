/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// defaultDecimals is assumed when a contract does not answer decimals()
const defaultDecimals = 18

// TokenResolver fills in on-chain metadata for tracked tokens whose
// decimals were not configured
type TokenResolver struct {
	client *Client
	logger *zap.Logger
}

// NewTokenResolver creates a new token resolver
func NewTokenResolver(client *Client, logger *zap.Logger) *TokenResolver {
	return &TokenResolver{
		client: client,
		logger: logger,
	}
}

// Resolve looks up decimals for every unresolved token in the registry and
// stores the result. Tokens that cannot be read fall back to 18 decimals.
func (r *TokenResolver) Resolve(ctx context.Context, registry *entities.TokenRegistry) error {
	for _, token := range registry.Unresolved() {
		if err := ctx.Err(); err != nil {
			return err
		}
		addr := common.HexToAddress(token.Address)

		decimals, err := r.fetchDecimals(ctx, addr)
		if err != nil {
			r.logger.Warn("Failed to fetch token decimals, using fallback",
				zap.String("symbol", token.Symbol),
				zap.String("token", token.Address),
				zap.Error(err),
			)
			decimals = defaultDecimals
		}

		if symbol, err := r.fetchSymbol(ctx, addr); err == nil && !strings.EqualFold(symbol, token.Symbol) {
			r.logger.Warn("On-chain symbol differs from configured symbol",
				zap.String("configured", token.Symbol),
				zap.String("onchain", symbol),
				zap.String("token", token.Address),
			)
		}

		token.Decimals = int(decimals)
		registry.Update(token)

		r.logger.Info("Resolved token metadata",
			zap.String("symbol", token.Symbol),
			zap.Int("decimals", token.Decimals),
		)
	}

	return nil
}

func (r *TokenResolver) fetchSymbol(ctx context.Context, addr common.Address) (string, error) {
	parsed, err := erc20()
	if err != nil {
		return "", err
	}
	result, err := r.client.CallContract(ctx, addr, parsed.Methods["symbol"].ID)
	if err != nil {
		return "", err
	}
	return decodeStringOrBytes32(result)
}

func (r *TokenResolver) fetchDecimals(ctx context.Context, addr common.Address) (uint8, error) {
	parsed, err := erc20()
	if err != nil {
		return 0, err
	}
	result, err := r.client.CallContract(ctx, addr, parsed.Methods["decimals"].ID)
	if err != nil {
		return 0, err
	}
	return decodeDecimals(result)
}

// decodeDecimals reads a uint8 padded to a 32 byte word
func decodeDecimals(data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty result for decimals")
	}
	if len(data) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(data))
	}
	if new(big.Int).SetBytes(data[:32]).Cmp(big.NewInt(255)) > 0 {
		return 0, fmt.Errorf("decimals out of range")
	}
	return data[31], nil
}

// decodeStringOrBytes32 decodes a response that could be either:
// 1. ABI-encoded string: offset (32 bytes) + length (32 bytes) + data (padded to 32 bytes)
// 2. bytes32: raw 32 bytes (e.g., MKR token)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty data")
	}

	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	if len(data) >= 64 {
		offset := new(big.Int).SetBytes(data[:32])
		if offset.Uint64() == 32 {
			length := new(big.Int).SetBytes(data[32:64])
			strLen := int(length.Uint64())

			if strLen == 0 {
				return "", nil
			}

			if len(data) >= 64+strLen {
				return strings.TrimRight(string(data[64:64+strLen]), "\x00"), nil
			}
		}
	}

	result := bytes.TrimRight(data[:32], "\x00")
	if isPrintableASCII(result) {
		return string(result), nil
	}

	return "0x" + hex.EncodeToString(data[:32]), nil
}

// isPrintableASCII checks if all bytes are printable ASCII characters
func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}
