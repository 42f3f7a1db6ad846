package ingestion

import (
	"context"

	"solana-wallet-pnl/internal/helius"
)

// SignatureSource yields pages of transaction signatures for an address.
// Implemented by *helius.Client.
type SignatureSource interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts *helius.SignaturesOpts) ([]helius.SignatureInfo, error)
}

// TransactionSource resolves signature batches to full transaction bodies.
// Implemented by *helius.Client.
type TransactionSource interface {
	GetParsedTransactions(ctx context.Context, signatures []string) ([]helius.EnhancedTransaction, error)
}
