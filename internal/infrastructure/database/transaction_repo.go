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

// Ensure TransactionRepo implements TransactionRepository
var _ repositories.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo implements TransactionRepository using PostgreSQL
type TransactionRepo struct {
	db *sqlx.DB
}

// NewTransactionRepo creates a new transaction repository
func NewTransactionRepo(db *sqlx.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

const insertTransactionQuery = `
	INSERT INTO transactions (wallet_address, symbol, type, quantity, price_usd,
							  timestamp, source, tx_hash, log_index)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (wallet_address, tx_hash, log_index) DO NOTHING
	RETURNING id, created_at
`

// Append stores a single ledger entry
func (r *TransactionRepo) Append(ctx context.Context, tx *entities.Transaction) error {
	row := r.db.QueryRowxContext(ctx, insertTransactionQuery,
		strings.ToLower(tx.WalletAddress),
		tx.Symbol,
		tx.Type,
		tx.Quantity,
		tx.PriceUSD,
		tx.Timestamp,
		tx.Source,
		tx.TxHash,
		tx.LogIndex,
	)
	if err := row.Scan(&tx.ID, &tx.CreatedAt); err != nil {
		// already imported
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// AppendBatch inserts multiple entries in a single transaction
func (r *TransactionRepo) AppendBatch(ctx context.Context, txs []entities.Transaction) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	dbtx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	stmt, err := dbtx.PrepareContext(ctx, `
		INSERT INTO transactions (wallet_address, symbol, type, quantity, price_usd,
								  timestamp, source, tx_hash, log_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (wallet_address, tx_hash, log_index) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, t := range txs {
		res, err := stmt.ExecContext(ctx,
			strings.ToLower(t.WalletAddress),
			t.Symbol,
			t.Type,
			t.Quantity,
			t.PriceUSD,
			t.Timestamp,
			t.Source,
			t.TxHash,
			t.LogIndex,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := dbtx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// List retrieves ledger entries matching the filter, oldest first
func (r *TransactionRepo) List(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error) {
	conditions := []string{"wallet_address = $1"}
	args := []interface{}{strings.ToLower(filter.WalletAddress)}
	argIdx := 2

	if filter.Symbol != nil {
		conditions = append(conditions, fmt.Sprintf("symbol = $%d", argIdx))
		args = append(args, strings.ToUpper(*filter.Symbol))
		argIdx++
	}

	if filter.FromTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, *filter.FromTime)
		argIdx++
	}

	if filter.ToTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, *filter.ToTime)
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT id, wallet_address, symbol, type, quantity, price_usd,
			   timestamp, source, tx_hash, log_index, created_at
		FROM transactions
		WHERE %s
		ORDER BY timestamp ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conditions, " AND "), argIdx, argIdx+1)

	args = append(args, filter.Limit, filter.Offset)

	var txs []entities.Transaction
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	return txs, nil
}

// Count returns the number of entries recorded for a wallet
func (r *TransactionRepo) Count(ctx context.Context, walletAddress string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM transactions WHERE wallet_address = $1`
	if err := r.db.GetContext(ctx, &count, query, strings.ToLower(walletAddress)); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
