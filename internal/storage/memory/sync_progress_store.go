package memory

import (
	"context"
	"sync"

	"solana-wallet-pnl/internal/storage"
)

// SyncProgressStore is an in-memory implementation of storage.SyncProgressStore.
type SyncProgressStore struct {
	mu   sync.RWMutex
	data map[string]*storage.SyncProgress // keyed by wallet
}

// NewSyncProgressStore creates a new in-memory sync progress store.
func NewSyncProgressStore() *SyncProgressStore {
	return &SyncProgressStore{
		data: make(map[string]*storage.SyncProgress),
	}
}

// Get returns the wallet's saved progress. Returns ErrNotFound if the wallet
// has never been synced.
func (s *SyncProgressStore) Get(_ context.Context, wallet string) (*storage.SyncProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[wallet]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// Set saves or replaces the wallet's progress.
func (s *SyncProgressStore) Set(_ context.Context, progress *storage.SyncProgress) error {
	if progress == nil || progress.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *progress
	s.data[progress.Wallet] = &copy
	return nil
}

var _ storage.SyncProgressStore = (*SyncProgressStore)(nil)
