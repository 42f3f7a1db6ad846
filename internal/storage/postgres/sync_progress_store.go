package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"solana-wallet-pnl/internal/storage"
)

// SyncProgressStore is a PostgreSQL implementation of storage.SyncProgressStore.
// One row per wallet, upserted on every save.
type SyncProgressStore struct {
	pool *Pool
}

// NewSyncProgressStore creates a new PostgreSQL sync progress store.
func NewSyncProgressStore(pool *Pool) *SyncProgressStore {
	return &SyncProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SyncProgressStore = (*SyncProgressStore)(nil)

// Get returns the wallet's saved progress.
func (s *SyncProgressStore) Get(ctx context.Context, wallet string) (*storage.SyncProgress, error) {
	if wallet == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT wallet, cursor_signature, last_slot, last_timestamp_ms, trades_parsed, updated_at_ms
		FROM sync_progress
		WHERE wallet = $1
	`, wallet)

	var progress storage.SyncProgress
	err := row.Scan(
		&progress.Wallet,
		&progress.Cursor,
		&progress.LastSlot,
		&progress.LastTimestamp,
		&progress.TradesParsed,
		&progress.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &progress, nil
}

// Set saves or replaces the wallet's progress.
func (s *SyncProgressStore) Set(ctx context.Context, progress *storage.SyncProgress) error {
	if progress == nil || progress.Wallet == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_progress (wallet, cursor_signature, last_slot, last_timestamp_ms, trades_parsed, updated_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (wallet) DO UPDATE
		SET cursor_signature = EXCLUDED.cursor_signature,
		    last_slot = EXCLUDED.last_slot,
		    last_timestamp_ms = EXCLUDED.last_timestamp_ms,
		    trades_parsed = EXCLUDED.trades_parsed,
		    updated_at_ms = EXCLUDED.updated_at_ms
	`, progress.Wallet, progress.Cursor, progress.LastSlot, progress.LastTimestamp, progress.TradesParsed, progress.UpdatedAt)

	return err
}
