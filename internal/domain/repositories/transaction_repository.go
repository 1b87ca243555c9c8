package repositories

import (
	"context"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// TransactionRepository defines the interface for the append-only wallet ledger
type TransactionRepository interface {
	// Append stores a single ledger entry and fills in its ID
	Append(ctx context.Context, tx *entities.Transaction) error

	// AppendBatch stores entries in one database transaction, skipping
	// chain entries that were already imported. Returns the number inserted.
	AppendBatch(ctx context.Context, txs []entities.Transaction) (int64, error)

	// List returns entries matching the filter in chronological order
	List(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error)

	// Count returns the number of entries recorded for a wallet
	Count(ctx context.Context, walletAddress string) (int64, error)
}

// SyncStateRepository defines the interface for chain import checkpoints
type SyncStateRepository interface {
	// Get retrieves the checkpoint for a wallet, nil when none exists
	Get(ctx context.Context, walletAddress string) (*entities.SyncState, error)

	// UpdateLastBlock creates or moves the checkpoint for a wallet
	UpdateLastBlock(ctx context.Context, walletAddress string, blockNumber int64) error
}
