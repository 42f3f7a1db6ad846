package memory

import (
	"context"
	"sync"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PositionSnapshot // keyed by wallet
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.PositionSnapshot),
	}
}

// Save stores or replaces the wallet's snapshot.
func (s *SnapshotStore) Save(_ context.Context, snapshot *domain.PositionSnapshot) error {
	if snapshot == nil || snapshot.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[snapshot.Wallet] = cloneSnapshot(snapshot)
	return nil
}

// Get retrieves the wallet's snapshot. Returns ErrNotFound if none saved.
func (s *SnapshotStore) Get(_ context.Context, wallet string) (*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[wallet]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

// cloneSnapshot deep-copies a snapshot so callers cannot mutate stored state.
func cloneSnapshot(snap *domain.PositionSnapshot) *domain.PositionSnapshot {
	c := *snap
	c.UnrealizedPnL = cloneFloat(snap.UnrealizedPnL)
	c.TotalValue = cloneFloat(snap.TotalValue)

	c.Positions = make([]*domain.Position, len(snap.Positions))
	for i, pos := range snap.Positions {
		p := *pos
		p.Lots = append([]domain.Lot(nil), pos.Lots...)
		c.Positions[i] = &p
	}

	c.Valuations = make(map[string]*domain.Valuation, len(snap.Valuations))
	for mint, val := range snap.Valuations {
		v := *val
		v.Price = cloneFloat(val.Price)
		v.CurrentValue = cloneFloat(val.CurrentValue)
		v.UnrealizedPnL = cloneFloat(val.UnrealizedPnL)
		c.Valuations[mint] = &v
	}

	return &c
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
