package ingestion

import (
	"errors"
	"sort"

	"solana-wallet-pnl/internal/domain"
)

// ErrInvalidOrdering is returned when trades are not in fold order.
var ErrInvalidOrdering = errors.New("trades are not in non-decreasing timestamp order")

// SortTrades orders trades by (timestamp ASC, slot ASC, signature ASC).
// Concurrent batch fetch does not preserve order, so this sort is mandatory
// before FIFO position folding.
func SortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		return compareTrades(trades[i], trades[j]) < 0
	})
}

// ValidateTradeOrdering checks that trades are in non-decreasing timestamp
// order. Returns ErrInvalidOrdering if not.
func ValidateTradeOrdering(trades []*domain.Trade) error {
	for i := 1; i < len(trades); i++ {
		if trades[i-1].Timestamp > trades[i].Timestamp {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareTrades returns negative, zero, or positive for (a, b).
// Order: (timestamp ASC, slot ASC, signature ASC).
func compareTrades(a, b *domain.Trade) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.Slot != b.Slot {
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	}
	if a.Signature != b.Signature {
		if a.Signature < b.Signature {
			return -1
		}
		return 1
	}
	return 0
}
