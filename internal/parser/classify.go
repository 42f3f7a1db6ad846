package parser

import "solana-wallet-pnl/internal/helius"

// Kind tags the parseable shape of a transaction. Upstream payloads vary by
// venue, so the parser dispatches on this tag instead of ad hoc field checks.
type Kind int

const (
	// KindStructuredSwap means the venue emitted a structured swap event.
	KindStructuredSwap Kind = iota
	// KindRawTransfers means only raw token/native transfer lists are present.
	KindRawTransfers
	// KindUnrecognized means the transaction carries nothing parseable.
	KindUnrecognized
)

// String returns the tag name for logging.
func (k Kind) String() string {
	switch k {
	case KindStructuredSwap:
		return "structured_swap"
	case KindRawTransfers:
		return "raw_transfers"
	default:
		return "unrecognized"
	}
}

// Classify tags a transaction by the richest shape it carries.
func Classify(tx *helius.EnhancedTransaction) Kind {
	if swap := tx.Events.Swap; swap != nil {
		if swap.NativeInput != nil || swap.NativeOutput != nil ||
			len(swap.TokenInputs) > 0 || len(swap.TokenOutputs) > 0 {
			return KindStructuredSwap
		}
	}
	if len(tx.TokenTransfers) > 0 || len(tx.NativeTransfers) > 0 {
		return KindRawTransfers
	}
	return KindUnrecognized
}
