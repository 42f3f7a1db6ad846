// Package pipeline orchestrates one wallet extraction run: paginate the
// signature index, fetch transaction bodies, parse trades, fold positions,
// value them, and assemble the snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/helius"
	"solana-wallet-pnl/internal/ingestion"
	"solana-wallet-pnl/internal/observability"
	"solana-wallet-pnl/internal/parser"
	"solana-wallet-pnl/internal/pnl"
	"solana-wallet-pnl/internal/position"
	"solana-wallet-pnl/internal/pricing"
	"solana-wallet-pnl/internal/solana"
	"solana-wallet-pnl/internal/storage"
)

// TradeArchiver appends trades to the analytical archive.
type TradeArchiver interface {
	InsertBulk(ctx context.Context, trades []*domain.Trade) error
}

// Stats summarizes one extraction run.
type Stats struct {
	Pages         int
	Signatures    int
	Transactions  int
	BatchFailures int

	Parsed           int
	ParsedBySource   map[string]int
	Duplicates       int
	SkippedFailed    int
	SkippedAmbiguous int
	SkippedDust      int
	SkippedOther     int
	SpamExcluded     int

	Positions     int
	OpenPositions int
	PriceCoverage float64
	Pricing       pricing.Stats

	Incomplete bool
	Duration   time.Duration
}

// Extractor wires the pipeline stages for repeated runs. It implements the
// snapshot service's Computer interface.
type Extractor struct {
	signatures   ingestion.SignatureSource
	transactions ingestion.TransactionSource
	resolver     *pricing.Resolver
	implied      *pricing.TradeImpliedSource
	calculator   *pnl.Calculator
	builder      *position.Builder

	tradeStore    storage.TradeStore
	progressStore storage.SyncProgressStore
	archive       TradeArchiver
	metrics       *observability.Metrics

	pageLimit        int
	maxEmptyPages    int
	batchSize        int
	concurrency      int
	dustThresholdUSD float64

	logger *logrus.Logger
	now    func() time.Time // test hook
}

// Options contains configuration for creating an Extractor. Stores, archive
// and metrics are optional; the pipeline runs fully in memory without them.
type Options struct {
	Signatures    ingestion.SignatureSource
	Transactions  ingestion.TransactionSource
	Resolver      *pricing.Resolver
	Implied       *pricing.TradeImpliedSource
	TradeStore    storage.TradeStore
	ProgressStore storage.SyncProgressStore
	Archive       TradeArchiver
	Metrics       *observability.Metrics

	PageLimit        int
	MaxEmptyPages    int
	BatchSize        int
	Concurrency      int
	DustThresholdUSD float64
	MinNativeBalance float64

	Logger *logrus.Logger
}

// New creates an extractor.
func New(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	dust := opts.DustThresholdUSD
	if dust <= 0 {
		dust = position.DefaultDustThresholdUSD
	}

	return &Extractor{
		signatures:   opts.Signatures,
		transactions: opts.Transactions,
		resolver:     opts.Resolver,
		implied:      opts.Implied,
		calculator: pnl.NewCalculator(pnl.CalculatorOptions{
			Resolver:    opts.Resolver,
			Concurrency: opts.Concurrency,
			Logger:      logger,
		}),
		builder: position.NewBuilder(position.BuilderOptions{
			MinNativeBalance: opts.MinNativeBalance,
			Logger:           logger,
		}),
		tradeStore:       opts.TradeStore,
		progressStore:    opts.ProgressStore,
		archive:          opts.Archive,
		metrics:          opts.Metrics,
		pageLimit:        opts.PageLimit,
		maxEmptyPages:    opts.MaxEmptyPages,
		batchSize:        opts.BatchSize,
		concurrency:      opts.Concurrency,
		dustThresholdUSD: dust,
		logger:           logger,
		now:              time.Now,
	}
}

// Compute implements snapshot.Computer.
func (e *Extractor) Compute(ctx context.Context, wallet string) (*domain.PositionSnapshot, error) {
	snap, _, err := e.Run(ctx, wallet)
	return snap, err
}

// Run executes one full extraction for a wallet. Local failures degrade the
// result rather than failing it; only zero progress is an error. A returned
// error may still carry a partial snapshot.
func (e *Extractor) Run(ctx context.Context, wallet string) (*domain.PositionSnapshot, *Stats, error) {
	if err := solana.ValidateWalletAddress(wallet); err != nil {
		return nil, nil, fmt.Errorf("validate wallet: %w", err)
	}

	started := e.now()
	stats := &Stats{}
	pricingBefore := e.resolver.Snapshot()

	res := parser.NewResult()
	priorSigs := e.seedPriorTrades(ctx, wallet, res)

	pag := ingestion.NewPaginator(ingestion.PaginatorOptions{
		Source:        e.signatures,
		Wallet:        wallet,
		ResumeCursor:  e.resumeCursor(ctx, wallet),
		PageLimit:     e.pageLimit,
		MaxEmptyPages: e.maxEmptyPages,
		Logger:        e.logger,
	})
	fet := ingestion.NewFetcher(ingestion.FetcherOptions{
		Source:      e.transactions,
		BatchSize:   e.batchSize,
		Concurrency: e.concurrency,
		Logger:      e.logger,
	})
	par := parser.New(parser.Options{Wallet: wallet, Logger: e.logger})

	incomplete := false
	var pageErr error

	for {
		page, err := pag.Next(ctx)
		if err != nil {
			pageErr = err
			break
		}
		if page == nil {
			break
		}
		stats.Pages++
		stats.Signatures += len(page)

		sigs := make([]string, len(page))
		for i, s := range page {
			sigs[i] = s.Signature
		}

		fr := fet.Fetch(ctx, sigs)
		stats.Transactions += len(fr.Transactions)
		stats.BatchFailures += len(fr.Failures)

		par.ParseInto(res, fr.Transactions)
		e.saveProgress(ctx, wallet, pag.Cursor(), page[len(page)-1], len(res.Trades))

		if fr.Incomplete {
			incomplete = true
			break
		}
	}

	if pageErr != nil {
		if stats.Signatures == 0 {
			if ctx.Err() != nil {
				return nil, stats, fmt.Errorf("%w: %v", domain.ErrNoProgress, pageErr)
			}
			return nil, stats, fmt.Errorf("no signatures obtained: %w", pageErr)
		}
		// Partial history is still a result; the snapshot says so.
		e.logger.WithFields(logrus.Fields{
			"wallet": wallet,
			"pages":  stats.Pages,
			"error":  pageErr,
		}).Warn("pagination stopped early, continuing with partial history")
		incomplete = true
	}
	incomplete = incomplete || stats.BatchFailures > 0

	stats.Parsed = res.Parsed
	stats.ParsedBySource = res.ParsedBySource
	stats.Duplicates = res.Duplicates
	stats.SkippedFailed = res.SkippedFailed
	stats.SkippedAmbiguous = res.SkippedAmbiguous
	stats.SkippedDust = res.SkippedDust
	stats.SkippedOther = res.SkippedOther

	trades := res.SortedTrades()
	ingestion.SortTrades(trades)

	before := len(trades)
	trades = position.ExcludeSpamTrades(trades, res.Activity)
	stats.SpamExcluded = before - len(trades)

	if e.implied != nil {
		for _, t := range trades {
			e.implied.Observe(t)
		}
	}

	positions, err := e.builder.Build(wallet, trades)
	if err != nil {
		return nil, stats, fmt.Errorf("build positions: %w", err)
	}
	position.ExcludeSpam(positions, res.Activity)
	stats.Positions = len(positions)

	valuations, totals := e.calculator.Valuations(ctx, positions)
	stats.OpenPositions = totals.OpenCount
	stats.PriceCoverage = totals.PriceCoverage

	e.persistTrades(ctx, wallet, trades, priorSigs)

	open := position.OpenPositions(positions, valuations, e.dustThresholdUSD)
	sort.Slice(open, func(i, j int) bool { return open[i].Mint < open[j].Mint })

	snap := &domain.PositionSnapshot{
		Wallet:        wallet,
		Positions:     open,
		Valuations:    valuations,
		AsOf:          e.now().UnixMilli(),
		Incomplete:    incomplete,
		RealizedPnL:   totals.RealizedPnL,
		UnrealizedPnL: totals.UnrealizedPnL,
		TotalValue:    totals.TotalValue,
		PriceCoverage: totals.PriceCoverage,
	}

	stats.Incomplete = incomplete
	stats.Duration = e.now().Sub(started)
	stats.Pricing = pricingDelta(pricingBefore, e.resolver.Snapshot())
	e.record(stats)

	e.logger.WithFields(logrus.Fields{
		"wallet":         wallet,
		"pages":          stats.Pages,
		"parsed":         stats.Parsed,
		"skipped":        stats.SkippedFailed + stats.SkippedAmbiguous + stats.SkippedDust + stats.SkippedOther,
		"positions":      stats.Positions,
		"price_coverage": stats.PriceCoverage,
		"incomplete":     stats.Incomplete,
		"duration":       stats.Duration,
	}).Info("extraction run finished")

	return snap, stats, nil
}

// seedPriorTrades loads previously persisted trades so pagination resume
// does not drop history, and returns their signature set. Seeding goes
// through the parser result so activity counters and dedup cover the full
// history, not just this run's fetch window.
func (e *Extractor) seedPriorTrades(ctx context.Context, wallet string, res *parser.Result) map[string]struct{} {
	priorSigs := make(map[string]struct{})
	if e.tradeStore == nil {
		return priorSigs
	}
	prior, err := e.tradeStore.GetByWallet(ctx, wallet)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"wallet": wallet,
			"error":  err,
		}).Warn("loading prior trades failed, starting fresh")
		return priorSigs
	}
	for _, t := range prior {
		res.Seed(t)
		priorSigs[t.Signature] = struct{}{}
	}
	return priorSigs
}

// resumeCursor returns the stored pagination cursor, if any.
func (e *Extractor) resumeCursor(ctx context.Context, wallet string) string {
	if e.progressStore == nil {
		return ""
	}
	prog, err := e.progressStore.Get(ctx, wallet)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.WithFields(logrus.Fields{
				"wallet": wallet,
				"error":  err,
			}).Warn("reading sync progress failed")
		}
		return ""
	}
	return prog.Cursor
}

// saveProgress records the cursor after each page so a crashed run resumes
// instead of rewalking. Best effort.
func (e *Extractor) saveProgress(ctx context.Context, wallet, cursor string, last helius.SignatureInfo, parsed int) {
	if e.progressStore == nil {
		return
	}
	var ts int64
	if last.BlockTime != nil {
		ts = *last.BlockTime * 1000
	}
	err := e.progressStore.Set(ctx, &storage.SyncProgress{
		Wallet:        wallet,
		Cursor:        cursor,
		LastSlot:      uint64(last.Slot),
		LastTimestamp: ts,
		TradesParsed:  parsed,
		UpdatedAt:     e.now().UnixMilli(),
	})
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"wallet": wallet,
			"error":  err,
		}).Warn("saving sync progress failed")
	}
}

// persistTrades writes newly parsed trades to the trade store and archive.
// Storage failures degrade persistence, never the run.
func (e *Extractor) persistTrades(ctx context.Context, wallet string, trades []*domain.Trade, priorSigs map[string]struct{}) {
	var fresh []*domain.Trade
	for _, t := range trades {
		if _, ok := priorSigs[t.Signature]; !ok {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		return
	}

	if e.tradeStore != nil {
		for _, t := range fresh {
			if err := e.tradeStore.Insert(ctx, t); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				e.logger.WithFields(logrus.Fields{
					"wallet":    wallet,
					"signature": t.Signature,
					"error":     err,
				}).Warn("persisting trade failed")
			}
		}
	}

	if e.archive != nil {
		if err := e.archive.InsertBulk(ctx, fresh); err != nil {
			e.logger.WithFields(logrus.Fields{
				"wallet": wallet,
				"count":  len(fresh),
				"error":  err,
			}).Warn("archiving trades failed")
		}
	}
}

// record pushes run stats into prometheus, when metrics are wired.
func (e *Extractor) record(stats *Stats) {
	if e.metrics == nil {
		return
	}
	m := e.metrics

	m.SignaturePagesFetched.Add(float64(stats.Pages))
	m.TransactionsFetched.Add(float64(stats.Transactions))
	m.BatchFetchFailures.Add(float64(stats.BatchFailures))

	for source, n := range stats.ParsedBySource {
		m.TradesParsed.WithLabelValues(source).Add(float64(n))
	}
	m.TradesSkipped.WithLabelValues("failed").Add(float64(stats.SkippedFailed))
	m.TradesSkipped.WithLabelValues("ambiguous").Add(float64(stats.SkippedAmbiguous))
	m.TradesSkipped.WithLabelValues("dust").Add(float64(stats.SkippedDust))
	m.TradesSkipped.WithLabelValues("other").Add(float64(stats.SkippedOther))

	m.PriceCacheHits.Add(float64(stats.Pricing.CacheHits))
	m.PriceCacheMisses.Add(float64(stats.Pricing.CacheMisses))
	m.PriceUpstreamCalls.Add(float64(stats.Pricing.UpstreamCalls))
	m.PriceUnavailable.Add(float64(stats.Pricing.Unavailable))
	m.PriceCoverage.Set(stats.PriceCoverage)

	m.PositionsBuilt.Set(float64(stats.Positions))

	status := "ok"
	if stats.Incomplete {
		status = "incomplete"
		m.SnapshotIncomplete.Inc()
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.WithLabelValues("total").Observe(stats.Duration.Seconds())
	m.LastSuccessfulRun.SetToCurrentTime()
}

// pricingDelta subtracts cumulative resolver counters across a run.
func pricingDelta(before, after pricing.Stats) pricing.Stats {
	return pricing.Stats{
		CacheHits:     after.CacheHits - before.CacheHits,
		CacheMisses:   after.CacheMisses - before.CacheMisses,
		UpstreamCalls: after.UpstreamCalls - before.UpstreamCalls,
		Unavailable:   after.Unavailable - before.Unavailable,
	}
}
