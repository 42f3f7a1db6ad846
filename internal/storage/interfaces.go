package storage

import (
	"context"

	"solana-wallet-pnl/internal/domain"
)

// TradeStore provides access to extracted trade storage. Trades are
// append-only and keyed by (wallet, signature).
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if (wallet, signature) exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetBySignature retrieves one trade. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, wallet, signature string) (*domain.Trade, error)

	// GetByWallet retrieves all trades for a wallet, ordered by timestamp ASC,
	// slot ASC, signature ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.Trade, error)

	// GetByTimeRange retrieves a wallet's trades within [start, end] inclusive,
	// timestamps in Unix milliseconds, same ordering as GetByWallet.
	GetByTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.Trade, error)
}

// SnapshotStore caches the latest position snapshot per wallet. Unlike the
// trade store this is upsert storage: each save replaces the previous snapshot.
type SnapshotStore interface {
	// Save stores or replaces the wallet's snapshot.
	Save(ctx context.Context, snapshot *domain.PositionSnapshot) error

	// Get retrieves the wallet's snapshot. Returns ErrNotFound if none saved.
	Get(ctx context.Context, wallet string) (*domain.PositionSnapshot, error)
}
