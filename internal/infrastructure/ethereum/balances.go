package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var (
	parsedERC20    abi.ABI
	parsedERC20Err error
	parseERC20Once sync.Once
)

func erc20() (abi.ABI, error) {
	parseERC20Once.Do(func() {
		parsedERC20, parsedERC20Err = abi.JSON(strings.NewReader(erc20ABI))
	})
	return parsedERC20, parsedERC20Err
}

// BalanceReader reads native and ERC-20 balances of a wallet in one JSON-RPC batch
type BalanceReader struct {
	client *Client
	logger *zap.Logger
}

// NewBalanceReader creates a new balance reader
func NewBalanceReader(client *Client, logger *zap.Logger) *BalanceReader {
	return &BalanceReader{
		client: client,
		logger: logger,
	}
}

// GetBalances returns raw base-unit balances keyed by token symbol.
// Tokens whose individual call failed are left out of the map.
func (r *BalanceReader) GetBalances(ctx context.Context, walletAddress string, tokens []entities.Token) (map[string]*big.Int, error) {
	parsed, err := erc20()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC-20 ABI: %w", err)
	}

	wallet := common.HexToAddress(walletAddress)
	elems := make([]rpc.BatchElem, 0, len(tokens))
	symbols := make([]string, 0, len(tokens))

	for _, token := range tokens {
		if token.IsNative() {
			elems = append(elems, rpc.BatchElem{
				Method: "eth_getBalance",
				Args:   []interface{}{wallet, "latest"},
				Result: new(hexutil.Big),
			})
			symbols = append(symbols, token.Symbol)
			continue
		}

		data, err := parsed.Pack("balanceOf", wallet)
		if err != nil {
			return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
		}

		elems = append(elems, rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   common.HexToAddress(token.Address),
					"data": hexutil.Bytes(data),
				},
				"latest",
			},
			Result: new(hexutil.Bytes),
		})
		symbols = append(symbols, token.Symbol)
	}

	if len(elems) == 0 {
		return map[string]*big.Int{}, nil
	}

	if err := r.client.BatchCall(ctx, elems); err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}

	balances := make(map[string]*big.Int, len(elems))
	for i, elem := range elems {
		if elem.Error != nil {
			r.logger.Warn("Failed to read token balance",
				zap.String("symbol", symbols[i]),
				zap.String("wallet", walletAddress),
				zap.Error(elem.Error),
			)
			continue
		}

		switch res := elem.Result.(type) {
		case *hexutil.Big:
			balances[symbols[i]] = res.ToInt()
		case *hexutil.Bytes:
			value, err := unpackUint256(parsed, "balanceOf", *res)
			if err != nil {
				r.logger.Warn("Failed to decode token balance",
					zap.String("symbol", symbols[i]),
					zap.Error(err),
				)
				continue
			}
			balances[symbols[i]] = value
		}
	}

	return balances, nil
}

// unpackUint256 decodes a single uint256 return value
func unpackUint256(parsed abi.ABI, method string, data []byte) (*big.Int, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty result for %s", method)
	}

	out, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected output count for %s: %d", method, len(out))
	}

	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected output type for %s: %T", method, out[0])
	}
	return value, nil
}
