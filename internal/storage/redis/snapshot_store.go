// Package redis provides a Redis-backed snapshot store so multiple server
// instances share one snapshot cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/storage"
)

// DefaultSnapshotTTL bounds how long an unread snapshot survives in Redis.
// Staleness decisions happen in the snapshot service; this only caps memory.
const DefaultSnapshotTTL = 24 * time.Hour

// SnapshotStore is a Redis implementation of storage.SnapshotStore.
// Snapshots are stored as JSON under one key per wallet.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotStore creates a Redis snapshot store and verifies the connection.
func NewSnapshotStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*SnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotStore{client: client, ttl: ttl}, nil
}

// NewSnapshotStoreWithClient wraps an existing client, used by tests.
func NewSnapshotStoreWithClient(client *redis.Client, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &SnapshotStore{client: client, ttl: ttl}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func snapshotKey(wallet string) string {
	return "pnl:snapshot:" + wallet
}

// Save stores or replaces the wallet's snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *domain.PositionSnapshot) error {
	if snapshot == nil || snapshot.Wallet == "" {
		return storage.ErrInvalidInput
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(snapshot.Wallet), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Get retrieves the wallet's snapshot. Returns ErrNotFound if none saved.
func (s *SnapshotStore) Get(ctx context.Context, wallet string) (*domain.PositionSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snapshot domain.PositionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// Close releases the underlying client.
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
