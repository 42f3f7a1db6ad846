// Package snapshot serves wallet position snapshots from a TTL cache,
// recomputing through the extraction pipeline only when the cached result
// has expired.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/observability"
	"solana-wallet-pnl/internal/storage"
)

// DefaultTTL is how long a computed snapshot stays fresh.
const DefaultTTL = 30 * time.Second

// Computer produces a fresh snapshot for a wallet. The extraction pipeline
// implements it.
type Computer interface {
	Compute(ctx context.Context, wallet string) (*domain.PositionSnapshot, error)
}

// Service is the snapshot cache. Concurrent requests for the same wallet
// share one recompute; a failed recompute falls back to the previous
// snapshot marked stale.
type Service struct {
	computer Computer
	store    storage.SnapshotStore
	ttl      time.Duration
	logger   *logrus.Logger
	metrics  *observability.Metrics
	group    singleflight.Group

	now func() time.Time // test hook
}

// ServiceOptions contains configuration for creating a Service. Metrics is
// optional.
type ServiceOptions struct {
	Computer Computer
	Store    storage.SnapshotStore
	TTL      time.Duration
	Logger   *logrus.Logger
	Metrics  *observability.Metrics
}

// NewService creates a snapshot service.
func NewService(opts ServiceOptions) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		computer: opts.Computer,
		store:    opts.Store,
		ttl:      ttl,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// Get returns the wallet's snapshot, recomputing if the cached one expired.
// The returned snapshot has Stale set when it was served from an expired
// cache entry after a failed recompute.
func (s *Service) Get(ctx context.Context, wallet string) (*domain.PositionSnapshot, error) {
	if cached := s.fresh(ctx, wallet); cached != nil {
		return cached, nil
	}

	// Coalesce concurrent recomputes per wallet; every waiter receives the
	// same snapshot.
	v, err, _ := s.group.Do(wallet, func() (interface{}, error) {
		if cached := s.fresh(ctx, wallet); cached != nil {
			return cached, nil
		}
		return s.recompute(ctx, wallet)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PositionSnapshot), nil
}

// Invalidate drops the cached snapshot so the next Get recomputes. It works
// by aging the stored snapshot rather than deleting it, keeping the stale
// fallback available.
func (s *Service) Invalidate(ctx context.Context, wallet string) error {
	snap, err := s.store.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	snap.AsOf = 0
	return s.store.Save(ctx, snap)
}

// fresh returns the cached snapshot when it is within TTL, nil otherwise.
func (s *Service) fresh(ctx context.Context, wallet string) *domain.PositionSnapshot {
	snap, err := s.store.Get(ctx, wallet)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.WithFields(logrus.Fields{
				"wallet": wallet,
				"error":  err,
			}).Warn("snapshot store read failed")
		}
		return nil
	}
	age := s.now().UnixMilli() - snap.AsOf
	if age > s.ttl.Milliseconds() {
		return nil
	}
	snap.Stale = false
	return snap
}

// recompute runs the pipeline and saves the result. On failure the previous
// snapshot, if any, is served marked stale.
func (s *Service) recompute(ctx context.Context, wallet string) (*domain.PositionSnapshot, error) {
	snap, err := s.computer.Compute(ctx, wallet)
	if err != nil {
		s.recordComputed("error")
		prev, getErr := s.store.Get(ctx, wallet)
		if getErr == nil {
			s.logger.WithFields(logrus.Fields{
				"wallet": wallet,
				"error":  err,
			}).Warn("recompute failed, serving stale snapshot")
			if s.metrics != nil {
				s.metrics.SnapshotsStale.Inc()
			}
			prev.Stale = true
			return prev, nil
		}
		return nil, fmt.Errorf("compute snapshot: %w", err)
	}
	s.recordComputed("ok")

	snap.Stale = false
	if snap.AsOf == 0 {
		snap.AsOf = s.now().UnixMilli()
	}

	if err := s.store.Save(ctx, snap); err != nil {
		// Serving the fresh result matters more than caching it.
		s.logger.WithFields(logrus.Fields{
			"wallet": wallet,
			"error":  err,
		}).Warn("snapshot store write failed")
	}

	return snap, nil
}

func (s *Service) recordComputed(status string) {
	if s.metrics != nil {
		s.metrics.SnapshotsComputed.WithLabelValues(status).Inc()
	}
}
