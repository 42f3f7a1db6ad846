package pricing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"solana-wallet-pnl/internal/domain"
)

// Default resolver values.
const (
	DefaultCacheTTL   = 30 * time.Second
	DefaultTimeBucket = time.Minute
)

// Stats is a snapshot of resolver counters for run-level metrics.
type Stats struct {
	CacheHits     uint64
	CacheMisses   uint64
	UpstreamCalls uint64
	Unavailable   uint64
}

// Resolver resolves mint prices through an ordered source chain with a
// read-through TTL cache. Concurrent lookups for the same (mint, time
// bucket) collapse into a single upstream call.
type Resolver struct {
	sources []Source
	ttl     time.Duration
	bucket  time.Duration
	logger  *logrus.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group

	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	upstreamCalls atomic.Uint64
	unavailable   atomic.Uint64
}

type cacheEntry struct {
	quote   *domain.PriceQuote
	expires time.Time
}

// ResolverOptions contains configuration for creating a Resolver.
type ResolverOptions struct {
	// Sources are tried in order; the first usable quote wins.
	Sources []Source
	TTL     time.Duration
	Bucket  time.Duration
	Logger  *logrus.Logger
}

// NewResolver creates a price resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	bucket := opts.Bucket
	if bucket <= 0 {
		bucket = DefaultTimeBucket
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		sources: opts.Sources,
		ttl:     ttl,
		bucket:  bucket,
		logger:  logger,
		entries: make(map[string]cacheEntry),
	}
}

// Resolve returns a quote for the mint at the given time. It never returns
// an error: when every source comes up empty the quote is unavailable.
func (r *Resolver) Resolve(ctx context.Context, mint string, at time.Time) *domain.PriceQuote {
	// Stablecoins are the pricing unit itself.
	if domain.IsStableMint(mint) {
		return &domain.PriceQuote{
			Mint:       mint,
			Price:      1.0,
			Currency:   "USD",
			Source:     domain.PriceSourceTradeImplied,
			FetchedAt:  time.Now(),
			Confidence: domain.ConfidenceExact,
		}
	}

	key := r.cacheKey(mint, at)

	if quote, ok := r.cached(key); ok {
		r.cacheHits.Add(1)
		return quote
	}
	r.cacheMisses.Add(1)

	// Coalesce concurrent misses on the same key into one lookup; every
	// waiter receives the same quote.
	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		if quote, ok := r.cached(key); ok {
			return quote, nil
		}
		quote := r.lookup(ctx, mint, at)
		if quote.Available() {
			r.store(key, quote)
		}
		return quote, nil
	})

	return v.(*domain.PriceQuote)
}

// ResolveCurrent resolves the current price for a mint.
func (r *Resolver) ResolveCurrent(ctx context.Context, mint string) *domain.PriceQuote {
	return r.Resolve(ctx, mint, time.Now())
}

// Snapshot returns current resolver counters.
func (r *Resolver) Snapshot() Stats {
	return Stats{
		CacheHits:     r.cacheHits.Load(),
		CacheMisses:   r.cacheMisses.Load(),
		UpstreamCalls: r.upstreamCalls.Load(),
		Unavailable:   r.unavailable.Load(),
	}
}

// lookup walks the source chain. Source errors degrade to the next source;
// the terminal state is an unavailable quote, not an error.
func (r *Resolver) lookup(ctx context.Context, mint string, at time.Time) *domain.PriceQuote {
	r.upstreamCalls.Add(1)

	for _, src := range r.sources {
		quote, err := src.Quote(ctx, mint, at)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"source": src.Name(),
				"mint":   mint,
				"error":  err,
			}).Debug("price source failed, trying next")
			continue
		}
		if quote.Available() {
			return quote
		}
	}

	r.unavailable.Add(1)
	return domain.Unavailable(mint)
}

func (r *Resolver) cacheKey(mint string, at time.Time) string {
	return fmt.Sprintf("%s|%d", mint, at.Truncate(r.bucket).Unix())
}

func (r *Resolver) cached(key string) (*domain.PriceQuote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.quote, true
}

func (r *Resolver) store(key string, quote *domain.PriceQuote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = cacheEntry{quote: quote, expires: time.Now().Add(r.ttl)}
}
