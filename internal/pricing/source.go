// Package pricing resolves per-mint USD prices through an ordered source
// chain with a TTL cache. A missing price is a value, never an error.
package pricing

import (
	"context"
	"sync"
	"time"

	"solana-wallet-pnl/internal/domain"
)

// Source provides a price quote for a mint around a point in time.
// Returning (nil, nil) means the source has no price for the mint.
type Source interface {
	Name() string
	Quote(ctx context.Context, mint string, at time.Time) (*domain.PriceQuote, error)
}

// impliedPrice is one price observation extracted from trade data.
type impliedPrice struct {
	timestamp int64   // unix ms of the trade
	price     float64 // USD per base token for stable quotes, SOL per base otherwise
	inSOL     bool    // price is denominated in SOL and needs the spot rate
}

// TradeImpliedSource prices mints from the trade set already fetched in this
// run: a stablecoin leg prices the base token exactly, a SOL leg prices it
// through the SOL spot rate.
type TradeImpliedSource struct {
	mu      sync.RWMutex
	latest  map[string]impliedPrice // most recent observation per mint
	solSpot func(ctx context.Context) (float64, error)
}

// NewTradeImpliedSource builds the source from a trade set. solSpot supplies
// the SOL/USD rate used to convert SOL-denominated observations.
func NewTradeImpliedSource(trades []*domain.Trade, solSpot func(ctx context.Context) (float64, error)) *TradeImpliedSource {
	s := &TradeImpliedSource{
		latest:  make(map[string]impliedPrice),
		solSpot: solSpot,
	}
	for _, t := range trades {
		s.Observe(t)
	}
	return s
}

// Observe records the price implied by one trade, keeping the most recent
// observation per mint.
func (s *TradeImpliedSource) Observe(t *domain.Trade) {
	base := t.BaseFlow()
	quote := t.QuoteFlow()
	if base.Amount <= 0 || quote.Amount <= 0 {
		return
	}
	if base.Mint == quote.Mint || !domain.IsQuoteMint(quote.Mint) {
		// Token-to-token swaps imply no anchored price.
		return
	}

	obs := impliedPrice{
		timestamp: t.Timestamp,
		price:     quote.Amount / base.Amount,
		inSOL:     quote.Mint == domain.WSOLMint,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.latest[base.Mint]; ok && prev.timestamp > obs.timestamp {
		return
	}
	s.latest[base.Mint] = obs
}

// Name implements Source.
func (s *TradeImpliedSource) Name() string {
	return domain.PriceSourceTradeImplied
}

// Quote implements Source. The `at` parameter is ignored: the implied price
// is the most recent one observed in the fetched history.
func (s *TradeImpliedSource) Quote(ctx context.Context, mint string, _ time.Time) (*domain.PriceQuote, error) {
	s.mu.RLock()
	obs, ok := s.latest[mint]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	price := obs.price
	confidence := domain.ConfidenceExact
	if obs.inSOL {
		if s.solSpot == nil {
			return nil, nil
		}
		rate, err := s.solSpot(ctx)
		if err != nil || rate <= 0 {
			return nil, nil
		}
		price *= rate
		confidence = domain.ConfidenceEstimated
	}

	return &domain.PriceQuote{
		Mint:       mint,
		Price:      price,
		Currency:   "USD",
		Source:     domain.PriceSourceTradeImplied,
		FetchedAt:  time.Now(),
		Confidence: confidence,
	}, nil
}

var _ Source = (*TradeImpliedSource)(nil)
