package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-wallet-pnl/internal/helius"
)

// Default fetcher values.
const (
	DefaultBatchSize      = helius.MaxTransactionsPerBatch
	DefaultConcurrency    = 10
	DefaultDeadlineMargin = 5 * time.Second
)

// BatchFailure records one signature batch that could not be resolved after
// retries. A missing batch degrades completeness; it never aborts the run.
type BatchFailure struct {
	Signatures []string
	Err        error
}

// FetchResult contains the transactions that resolved plus per-batch failures.
type FetchResult struct {
	Transactions []helius.EnhancedTransaction
	Failures     []BatchFailure
	// Incomplete is set when the fetcher stopped issuing batches because the
	// deadline was near or the context was cancelled.
	Incomplete bool
}

// Fetcher resolves signature batches to transaction bodies with bounded
// concurrency. Retry and backoff per batch live in the upstream client's
// retry policy; the fetcher only decides what happens after retries fail.
type Fetcher struct {
	source         TransactionSource
	batchSize      int
	concurrency    int
	deadlineMargin time.Duration
	logger         *logrus.Logger
}

// FetcherOptions contains configuration for creating a Fetcher.
type FetcherOptions struct {
	Source         TransactionSource
	BatchSize      int
	Concurrency    int
	DeadlineMargin time.Duration
	Logger         *logrus.Logger
}

// NewFetcher creates a transaction batch fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > helius.MaxTransactionsPerBatch {
		batchSize = DefaultBatchSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	deadlineMargin := opts.DeadlineMargin
	if deadlineMargin <= 0 {
		deadlineMargin = DefaultDeadlineMargin
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Fetcher{
		source:         opts.Source,
		batchSize:      batchSize,
		concurrency:    concurrency,
		deadlineMargin: deadlineMargin,
		logger:         logger,
	}
}

// Fetch resolves all signatures, issuing batches concurrently up to the
// configured limit. Batches that fail after retries are recorded as
// failures; the rest of the run continues.
func (f *Fetcher) Fetch(ctx context.Context, signatures []string) *FetchResult {
	result := &FetchResult{}
	if len(signatures) == 0 {
		return result
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i := 0; i < len(signatures); i += f.batchSize {
		end := i + f.batchSize
		if end > len(signatures) {
			end = len(signatures)
		}
		batch := signatures[i:end]

		if f.deadlineNear(gctx) {
			mu.Lock()
			result.Incomplete = true
			mu.Unlock()
			f.logger.WithField("remaining", len(signatures)-i).Warn("stopping batch fetch: deadline near")
			break
		}

		g.Go(func() error {
			txns, err := f.source.GetParsedTransactions(gctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, BatchFailure{Signatures: batch, Err: err})
				f.logger.WithFields(logrus.Fields{
					"batch_size": len(batch),
					"error":      err,
				}).Warn("batch fetch failed after retries")
				return nil
			}
			result.Transactions = append(result.Transactions, txns...)
			return nil
		})
	}

	// Worker funcs always return nil; the group is used for its limit and
	// context plumbing only.
	_ = g.Wait()

	if ctx.Err() != nil {
		result.Incomplete = true
	}
	return result
}

// deadlineNear reports whether the context deadline is within the margin,
// or the context is already done.
func (f *Fetcher) deadlineNear(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) < f.deadlineMargin
}
