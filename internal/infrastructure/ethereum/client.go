package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bimakw/defi-copilot/internal/config"
)

// Client wraps the Ethereum client with throttling, retries and utilities
type Client struct {
	client  *ethclient.Client
	config  config.EthereumConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	chainID *big.Int
}

// NewClient creates a new Ethereum client and verifies the chain ID
func NewClient(cfg config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", cfg.ChainID, chainID.Int64())
	}

	logger.Info("Connected to Ethereum node",
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &Client{
		client:  client,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logger,
		chainID: chainID,
	}, nil
}

// Close closes the Ethereum client connection
func (c *Client) Close() {
	c.client.Close()
}

// withRetry runs fn until it succeeds, waiting on the rate limiter before each attempt
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error

	for i := 0; i <= c.config.MaxRetries; i++ {
		if werr := c.limiter.Wait(ctx); werr != nil {
			return fmt.Errorf("failed to %s: %w", op, werr)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}

		c.logger.Warn("RPC call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return fmt.Errorf("failed to %s after %d retries: %w", op, c.config.MaxRetries, err)
}

// GetLatestBlockNumber returns the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	var blockNumber uint64
	err := c.withRetry(ctx, "get latest block number", func(ctx context.Context) error {
		var err error
		blockNumber, err = c.client.BlockNumber(ctx)
		return err
	})
	return blockNumber, err
}

// HealthCheck verifies the RPC endpoint answers without retrying
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("rpc unreachable: %w", err)
	}
	return nil
}

// GetBlockTimestamp returns the timestamp of a block
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	var header *types.Header
	err := c.withRetry(ctx, fmt.Sprintf("get header %d", blockNumber), func(ctx context.Context) error {
		var err error
		header, err = c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// GetLogs retrieves logs matching the filter query
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.withRetry(ctx, "get logs", func(ctx context.Context) error {
		var err error
		logs, err = c.client.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

// CallContract executes a read-only eth_call against the latest block
func (c *Client) CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	var result []byte
	err := c.withRetry(ctx, "call contract", func(ctx context.Context) error {
		var err error
		result, err = c.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		return err
	})
	return result, err
}

// BatchCall sends several JSON-RPC calls in one round trip.
// Per-call failures are reported in each element's Error field.
func (c *Client) BatchCall(ctx context.Context, elems []rpc.BatchElem) error {
	return c.withRetry(ctx, "batch call", func(ctx context.Context) error {
		return c.client.Client().BatchCallContext(ctx, elems)
	})
}

// BuildTransferQuery builds a filter for ERC-20 Transfer events of the given
// tokens, optionally narrowed to a sender and/or a recipient
func BuildTransferQuery(fromBlock, toBlock *big.Int, tokens []common.Address, from, to *common.Address) ethereum.FilterQuery {
	topics := [][]common.Hash{{TransferEventSignature}, nil, nil}
	if from != nil {
		topics[1] = []common.Hash{common.BytesToHash(from.Bytes())}
	}
	if to != nil {
		topics[2] = []common.Hash{common.BytesToHash(to.Bytes())}
	}

	return ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: tokens,
		Topics:    topics,
	}
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}
