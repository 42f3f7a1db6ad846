package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solana-wallet-pnl/internal/domain"
)

const mintTOKA = "TokaMintAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// countingSource returns a fixed quote and counts invocations.
type countingSource struct {
	name  string
	quote *domain.PriceQuote
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (s *countingSource) Name() string { return s.name }

func (s *countingSource) Quote(ctx context.Context, mint string, at time.Time) (*domain.PriceQuote, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func exactQuote(mint string, price float64) *domain.PriceQuote {
	return &domain.PriceQuote{
		Mint:       mint,
		Price:      price,
		Currency:   "USD",
		Source:     domain.PriceSourceOracle,
		FetchedAt:  time.Now(),
		Confidence: domain.ConfidenceExact,
	}
}

func TestResolver_StablecoinShortcut(t *testing.T) {
	src := &countingSource{name: "stub"}
	r := NewResolver(ResolverOptions{Sources: []Source{src}})

	quote := r.ResolveCurrent(context.Background(), domain.USDCMint)
	if quote.Price != 1.0 || quote.Confidence != domain.ConfidenceExact {
		t.Errorf("Expected exact $1 quote, got %+v", quote)
	}
	if src.calls.Load() != 0 {
		t.Error("Stablecoin pricing must not reach the source chain")
	}
}

func TestResolver_SourceChainFallback(t *testing.T) {
	failing := &countingSource{name: "failing", err: errors.New("boom")}
	empty := &countingSource{name: "empty"} // returns (nil, nil)
	working := &countingSource{name: "working", quote: exactQuote(mintTOKA, 2.5)}

	r := NewResolver(ResolverOptions{Sources: []Source{failing, empty, working}})

	quote := r.ResolveCurrent(context.Background(), mintTOKA)
	if !quote.Available() {
		t.Fatal("Expected available quote")
	}
	if quote.Price != 2.5 {
		t.Errorf("Expected price 2.5, got %v", quote.Price)
	}
	if failing.calls.Load() != 1 || empty.calls.Load() != 1 || working.calls.Load() != 1 {
		t.Error("Expected every source tried once, in order")
	}
}

func TestResolver_AllSourcesEmptyYieldsUnavailable(t *testing.T) {
	r := NewResolver(ResolverOptions{Sources: []Source{&countingSource{name: "empty"}}})

	quote := r.ResolveCurrent(context.Background(), mintTOKA)
	if quote.Available() {
		t.Fatal("Expected unavailable quote")
	}
	if quote.Confidence != domain.ConfidenceUnavailable {
		t.Errorf("Expected unavailable confidence, got %s", quote.Confidence)
	}

	stats := r.Snapshot()
	if stats.Unavailable != 1 {
		t.Errorf("Expected 1 unavailable lookup, got %d", stats.Unavailable)
	}
}

func TestResolver_CacheHit(t *testing.T) {
	src := &countingSource{name: "src", quote: exactQuote(mintTOKA, 1.5)}
	r := NewResolver(ResolverOptions{Sources: []Source{src}, TTL: time.Minute})
	ctx := context.Background()
	at := time.Now()

	r.Resolve(ctx, mintTOKA, at)
	r.Resolve(ctx, mintTOKA, at)

	if src.calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", src.calls.Load())
	}
	stats := r.Snapshot()
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("Expected 1 hit / 1 miss, got %d / %d", stats.CacheHits, stats.CacheMisses)
	}
}

func TestResolver_UnavailableNotCached(t *testing.T) {
	src := &countingSource{name: "empty"}
	r := NewResolver(ResolverOptions{Sources: []Source{src}, TTL: time.Minute})
	ctx := context.Background()
	at := time.Now()

	r.Resolve(ctx, mintTOKA, at)
	r.Resolve(ctx, mintTOKA, at)

	// A miss stays a miss; the next lookup retries the chain.
	if src.calls.Load() != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", src.calls.Load())
	}
}

func TestResolver_TimeBucketsSeparateCacheEntries(t *testing.T) {
	src := &countingSource{name: "src", quote: exactQuote(mintTOKA, 1.5)}
	r := NewResolver(ResolverOptions{Sources: []Source{src}, TTL: time.Hour, Bucket: time.Minute})
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	r.Resolve(ctx, mintTOKA, base)
	r.Resolve(ctx, mintTOKA, base.Add(10*time.Second)) // same minute bucket
	r.Resolve(ctx, mintTOKA, base.Add(time.Minute))    // next bucket

	if src.calls.Load() != 2 {
		t.Errorf("Expected 2 upstream calls across 2 buckets, got %d", src.calls.Load())
	}
}

func TestResolver_ConcurrentLookupsCoalesce(t *testing.T) {
	src := &countingSource{
		name:  "slow",
		quote: exactQuote(mintTOKA, 3.0),
		delay: 50 * time.Millisecond,
	}
	r := NewResolver(ResolverOptions{Sources: []Source{src}, TTL: time.Minute})
	at := time.Now()

	const workers = 20
	var wg sync.WaitGroup
	quotes := make([]*domain.PriceQuote, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			quotes[i] = r.Resolve(context.Background(), mintTOKA, at)
		}(i)
	}
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Errorf("Expected concurrent lookups to share 1 upstream call, got %d", got)
	}
	for i, q := range quotes {
		if q == nil || q.Price != 3.0 {
			t.Fatalf("Worker %d received wrong quote: %+v", i, q)
		}
	}
}

func TestNewChain(t *testing.T) {
	oracle := NewOracleClient("http://example.invalid", "http://example.invalid/spot")
	implied := NewTradeImpliedSource(nil, nil)

	sources := NewChain([]string{"implied", " Oracle ", "spot", "bogus"}, implied, oracle)
	if len(sources) != 3 {
		t.Fatalf("Expected 3 sources, got %d", len(sources))
	}
	want := []string{
		domain.PriceSourceTradeImplied,
		domain.PriceSourceOracle,
		domain.PriceSourceSpot,
	}
	for i, name := range want {
		if sources[i].Name() != name {
			t.Errorf("Source %d: expected %s, got %s", i, name, sources[i].Name())
		}
	}

	if got := NewChain([]string{"oracle"}, nil, nil); len(got) != 0 {
		t.Errorf("Expected empty chain without clients, got %d", len(got))
	}
}
