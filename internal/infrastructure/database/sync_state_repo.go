package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/domain/repositories"
)

// Ensure SyncStateRepo implements SyncStateRepository
var _ repositories.SyncStateRepository = (*SyncStateRepo)(nil)

// SyncStateRepo implements SyncStateRepository using PostgreSQL
type SyncStateRepo struct {
	db *sqlx.DB
}

// NewSyncStateRepo creates a new sync state repository
func NewSyncStateRepo(db *sqlx.DB) *SyncStateRepo {
	return &SyncStateRepo{db: db}
}

// Get retrieves the import checkpoint for a wallet
func (r *SyncStateRepo) Get(ctx context.Context, walletAddress string) (*entities.SyncState, error) {
	var state entities.SyncState
	query := `SELECT wallet_address, last_indexed_block, updated_at FROM sync_state WHERE wallet_address = $1`

	if err := r.db.GetContext(ctx, &state, query, strings.ToLower(walletAddress)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return &state, nil
}

// UpdateLastBlock creates or moves the checkpoint for a wallet
func (r *SyncStateRepo) UpdateLastBlock(ctx context.Context, walletAddress string, blockNumber int64) error {
	query := `
		INSERT INTO sync_state (wallet_address, last_indexed_block)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE SET
			last_indexed_block = EXCLUDED.last_indexed_block,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, strings.ToLower(walletAddress), blockNumber); err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}

	return nil
}
