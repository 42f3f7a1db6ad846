package domain

import "errors"

// Pipeline error taxonomy. Failures local to one signature, batch, or price
// lookup are absorbed into run metrics; only a wallet with zero retrievable
// signatures or a deadline with zero progress surfaces to the caller.
var (
	// ErrUpstreamUnavailable marks network or 5xx failures from an external
	// dependency after retries are exhausted.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRateLimited marks a 429-class response. Always retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrParseAmbiguous marks a transaction whose transfers could not be
	// resolved into two distinct legs. The transaction is skipped.
	ErrParseAmbiguous = errors.New("ambiguous transaction: no two distinct swap legs")

	// ErrNoProgress marks a run that obtained nothing before failing.
	ErrNoProgress = errors.New("no progress: zero signatures retrieved")
)
