// Package pnl computes unrealized P&L by combining position cost basis with
// resolved current prices.
package pnl

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-wallet-pnl/internal/domain"
)

// DefaultConcurrency bounds parallel price lookups.
const DefaultConcurrency = 10

// PriceResolver is the part of the price resolver the calculator consumes.
type PriceResolver interface {
	ResolveCurrent(ctx context.Context, mint string) *domain.PriceQuote
}

// Totals aggregates wallet-level sums. Unrealized and total value are nil
// when no open position could be priced.
type Totals struct {
	RealizedPnL   float64
	UnrealizedPnL *float64
	TotalValue    *float64
	PriceCoverage float64 // share of open positions with a usable price, 0..1
	OpenCount     int
	PricedCount   int
}

// Calculator values open positions. It reads positions and prices; it never
// mutates lots.
type Calculator struct {
	resolver    PriceResolver
	concurrency int
	logger      *logrus.Logger
}

// CalculatorOptions contains configuration for creating a Calculator.
type CalculatorOptions struct {
	Resolver    PriceResolver
	Concurrency int
	Logger      *logrus.Logger
}

// NewCalculator creates an unrealized P&L calculator.
func NewCalculator(opts CalculatorOptions) *Calculator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Calculator{
		resolver:    opts.Resolver,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Valuations resolves a current price for every open position concurrently
// and derives value and unrealized P&L. A position whose price is
// unavailable gets explicit nil valuation fields; it never fails the batch.
func (c *Calculator) Valuations(ctx context.Context, positions map[string]*domain.Position) (map[string]*domain.Valuation, Totals) {
	totals := Totals{}
	valuations := make(map[string]*domain.Valuation)

	var open []*domain.Position
	for _, pos := range positions {
		totals.RealizedPnL += pos.RealizedPnL
		if pos.Open() {
			open = append(open, pos)
		}
	}
	totals.OpenCount = len(open)
	if len(open) == 0 {
		return valuations, totals
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, pos := range open {
		g.Go(func() error {
			quote := c.resolver.ResolveCurrent(gctx, pos.Mint)
			val := c.valuate(pos, quote)

			mu.Lock()
			valuations[pos.Mint] = val
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var unrealized, totalValue float64
	for _, val := range valuations {
		if val.CurrentValue == nil {
			continue
		}
		totals.PricedCount++
		totalValue += *val.CurrentValue
		unrealized += *val.UnrealizedPnL
	}

	totals.PriceCoverage = float64(totals.PricedCount) / float64(totals.OpenCount)
	if totals.PricedCount > 0 {
		totals.UnrealizedPnL = &unrealized
		totals.TotalValue = &totalValue
	}

	return valuations, totals
}

// valuate derives one position's valuation from a quote.
func (c *Calculator) valuate(pos *domain.Position, quote *domain.PriceQuote) *domain.Valuation {
	if !quote.Available() {
		c.logger.WithField("mint", pos.Mint).Debug("price unavailable, valuation fields left null")
		return &domain.Valuation{
			Mint:       pos.Mint,
			Confidence: domain.ConfidenceUnavailable,
		}
	}

	price := quote.Price
	value := pos.Balance * price
	unrealized := value - pos.CostBasisTotal

	return &domain.Valuation{
		Mint:          pos.Mint,
		Price:         &price,
		CurrentValue:  &value,
		UnrealizedPnL: &unrealized,
		Confidence:    quote.Confidence,
	}
}
