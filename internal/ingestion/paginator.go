package ingestion

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-wallet-pnl/internal/helius"
)

// Default paginator values.
const (
	DefaultPageLimit = helius.MaxSignaturesPerPage
	// DefaultMaxEmptyPages is how many consecutive empty pages with no next
	// cursor are tolerated before the walk terminates. The upstream index may
	// legitimately return empty intermediate pages while history remains.
	DefaultMaxEmptyPages = 3
)

// Paginator walks the signature index backward from "now" to wallet genesis,
// yielding batches newest-first. The cursor survives failures so callers can
// resume from the last successful page.
type Paginator struct {
	source        SignatureSource
	wallet        string
	cursor        string // last signature of the last non-empty page
	until         string // stop once this signature is reached (incremental sync)
	pageLimit     int
	maxEmptyPages int
	emptyStreak   int
	pagesFetched  int
	done          bool
	logger        *logrus.Logger
}

// PaginatorOptions contains configuration for creating a Paginator.
type PaginatorOptions struct {
	Source        SignatureSource
	Wallet        string
	ResumeCursor  string // resume walking before this signature
	Until         string // optional lower bound from a previous sync
	PageLimit     int
	MaxEmptyPages int
	Logger        *logrus.Logger
}

// NewPaginator creates a signature paginator for one wallet.
func NewPaginator(opts PaginatorOptions) *Paginator {
	pageLimit := opts.PageLimit
	if pageLimit <= 0 || pageLimit > helius.MaxSignaturesPerPage {
		pageLimit = DefaultPageLimit
	}
	maxEmptyPages := opts.MaxEmptyPages
	if maxEmptyPages <= 0 {
		maxEmptyPages = DefaultMaxEmptyPages
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Paginator{
		source:        opts.Source,
		wallet:        opts.Wallet,
		cursor:        opts.ResumeCursor,
		until:         opts.Until,
		pageLimit:     pageLimit,
		maxEmptyPages: maxEmptyPages,
		logger:        logger,
	}
}

// Next returns the next non-empty batch of signatures, or (nil, nil) once
// history is exhausted. Empty intermediate pages are absorbed internally;
// the walk terminates only after maxEmptyPages consecutive empty pages with
// no next cursor. On error the cursor is unchanged and Next may be retried.
func (p *Paginator) Next(ctx context.Context) ([]helius.SignatureInfo, error) {
	if p.done {
		return nil, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		opts := &helius.SignaturesOpts{Limit: p.pageLimit}
		if p.cursor != "" {
			opts.Before = p.cursor
		}
		if p.until != "" {
			opts.Until = p.until
		}

		page, err := p.source.GetSignaturesForAddress(ctx, p.wallet, opts)
		if err != nil {
			return nil, fmt.Errorf("fetch signatures page %d for %s: %w", p.pagesFetched, p.wallet, err)
		}
		p.pagesFetched++

		if len(page) == 0 {
			// An empty page carries no cursor to advance past, so the same
			// position is re-requested until the empty streak hits the cap.
			p.emptyStreak++
			if p.emptyStreak > p.maxEmptyPages {
				p.done = true
				p.logger.WithFields(logrus.Fields{
					"wallet": p.wallet,
					"pages":  p.pagesFetched,
				}).Debug("signature history exhausted")
				return nil, nil
			}
			continue
		}

		// A short page does not terminate the walk; the index may still hold
		// older history behind it. Only the empty-page streak ends the run.
		p.emptyStreak = 0
		p.cursor = page[len(page)-1].Signature

		return page, nil
	}
}

// Cursor returns the signature of the oldest entry delivered so far.
// A resumed run should pass it as ResumeCursor.
func (p *Paginator) Cursor() string {
	return p.cursor
}

// Done reports whether the full history has been delivered.
func (p *Paginator) Done() bool {
	return p.done
}
