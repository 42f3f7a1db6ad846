package storage

import "context"

// SyncProgress records how far a wallet's signature history has been walked.
// Cursor is the oldest signature already processed; a resumed run passes it
// as the pagination cursor so extraction continues where it stopped.
type SyncProgress struct {
	Wallet        string
	Cursor        string // oldest processed transaction signature
	LastSlot      uint64 // slot of the cursor signature
	LastTimestamp int64  // Unix timestamp in milliseconds of the cursor signature
	TradesParsed  int    // cumulative parsed trade count for the wallet
	UpdatedAt     int64  // Unix timestamp in milliseconds of the last save
}

// SyncProgressStore persists extraction progress per wallet so restarts
// resume instead of refetching the full history.
type SyncProgressStore interface {
	// Get returns the wallet's saved progress. Returns ErrNotFound if the
	// wallet has never been synced.
	Get(ctx context.Context, wallet string) (*SyncProgress, error)

	// Set saves or replaces the wallet's progress.
	Set(ctx context.Context, progress *SyncProgress) error
}
