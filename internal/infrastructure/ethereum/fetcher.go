package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/defi-copilot/internal/config"
)

// Fetcher pulls a wallet's token transfers from the chain
type Fetcher struct {
	client *Client
	config config.RefresherConfig
	logger *zap.Logger
}

// NewFetcher creates a new blockchain data fetcher
func NewFetcher(client *Client, cfg config.RefresherConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// FetchResult contains the result of fetching transfers
type FetchResult struct {
	Transfers      []TokenTransfer
	FromBlock      int64
	ToBlock        int64
	FailedLogCount int
}

// FetchWalletTransfers fetches Transfer events of the given tokens sent or
// received by wallet in [fromBlock, toBlock], ordered by block and log index
func (f *Fetcher) FetchWalletTransfers(ctx context.Context, wallet string, tokenAddresses []string, fromBlock, toBlock int64) (*FetchResult, error) {
	result := &FetchResult{
		Transfers: []TokenTransfer{},
		FromBlock: fromBlock,
		ToBlock:   toBlock,
	}
	if len(tokenAddresses) == 0 {
		return result, nil
	}

	addresses := make([]common.Address, len(tokenAddresses))
	for i, addr := range tokenAddresses {
		addresses[i] = common.HexToAddress(addr)
	}
	walletAddr := common.HexToAddress(wallet)

	f.logger.Debug("Fetching wallet logs",
		zap.String("wallet", wallet),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
		zap.Int("token_count", len(tokenAddresses)),
	)

	// topic filters are ANDed, so sent and received need separate queries
	queries := []struct {
		from, to *common.Address
	}{
		{from: &walletAddr},
		{to: &walletAddr},
	}

	var logs []types.Log
	seen := make(map[string]struct{})
	for _, q := range queries {
		query := BuildTransferQuery(big.NewInt(fromBlock), big.NewInt(toBlock), addresses, q.from, q.to)
		batch, err := f.client.GetLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch logs: %w", err)
		}
		for _, log := range batch {
			key := fmt.Sprintf("%s:%d", log.TxHash.Hex(), log.Index)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			logs = append(logs, log)
		}
	}

	if len(logs) == 0 {
		return result, nil
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	blockNumbers := make(map[uint64]struct{})
	for _, log := range logs {
		blockNumbers[log.BlockNumber] = struct{}{}
	}

	blockTimestamps, err := f.fetchBlockTimestamps(ctx, blockNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block timestamps: %w", err)
	}

	transfers, failedIndices := ParseTransferLogs(logs, blockTimestamps)

	if len(failedIndices) > 0 {
		f.logger.Warn("Failed to parse some logs",
			zap.Int("failed_count", len(failedIndices)),
			zap.Int("total_logs", len(logs)),
		)
	}

	f.logger.Info("Fetched wallet transfers",
		zap.String("wallet", wallet),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
		zap.Int("transfer_count", len(transfers)),
	)

	result.Transfers = transfers
	result.FailedLogCount = len(failedIndices)
	return result, nil
}

// fetchBlockTimestamps fetches timestamps for multiple blocks concurrently
func (f *Fetcher) fetchBlockTimestamps(ctx context.Context, blockNumbers map[uint64]struct{}) (map[uint64]time.Time, error) {
	timestamps := make(map[uint64]time.Time)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.WorkerCount)

	for blockNum := range blockNumbers {
		blockNum := blockNum
		g.Go(func() error {
			timestamp, err := f.client.GetBlockTimestamp(ctx, blockNum)
			if err != nil {
				return fmt.Errorf("failed to get timestamp for block %d: %w", blockNum, err)
			}

			mu.Lock()
			timestamps[blockNum] = timestamp
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return timestamps, nil
}

// GetSafeBlockNumber returns the latest block number minus confirmations
func (f *Fetcher) GetSafeBlockNumber(ctx context.Context) (int64, error) {
	latestBlock, err := f.client.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	safeBlock := int64(latestBlock) - int64(f.config.BlockConfirmations)
	if safeBlock < 0 {
		safeBlock = 0
	}

	return safeBlock, nil
}

// BlockRange represents a range of blocks to fetch
type BlockRange struct {
	From int64
	To   int64
}

// SplitBlockRange splits an inclusive range into batches of at most batchSize blocks
func SplitBlockRange(fromBlock, toBlock int64, batchSize int) []BlockRange {
	if fromBlock > toBlock || batchSize <= 0 {
		return nil
	}

	var ranges []BlockRange
	for current := fromBlock; current <= toBlock; current += int64(batchSize) {
		end := current + int64(batchSize) - 1
		if end > toBlock {
			end = toBlock
		}
		ranges = append(ranges, BlockRange{From: current, To: end})
	}

	return ranges
}
