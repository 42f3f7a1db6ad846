// Package memory provides in-memory storage implementations used by tests
// and single-run extraction where persistence is not required.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Trade // keyed by wallet|signature
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string]*domain.Trade),
	}
}

// tradeKey generates a unique key for a trade.
func tradeKey(wallet, signature string) string {
	return fmt.Sprintf("%s|%s", wallet, signature)
}

// Insert adds a new trade. Returns ErrDuplicateKey if exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.Wallet == "" || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	key := tradeKey(t.Wallet, t.Signature)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneTrade(t)
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(trades))

	// First pass: check for duplicates (existing + intra-batch)
	for _, t := range trades {
		if t == nil || t.Wallet == "" || t.Signature == "" {
			return storage.ErrInvalidInput
		}
		key := tradeKey(t.Wallet, t.Signature)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range trades {
		s.data[tradeKey(t.Wallet, t.Signature)] = cloneTrade(t)
	}

	return nil
}

// GetBySignature retrieves one trade. Returns ErrNotFound if not exists.
func (s *TradeStore) GetBySignature(_ context.Context, wallet, signature string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[tradeKey(wallet, signature)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneTrade(t), nil
}

// GetByWallet retrieves all trades for a wallet, ordered by timestamp ASC,
// slot ASC, signature ASC.
func (s *TradeStore) GetByWallet(_ context.Context, wallet string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Wallet == wallet {
			result = append(result, cloneTrade(t))
		}
	}

	sortTrades(result)
	return result, nil
}

// GetByTimeRange retrieves a wallet's trades within [start, end] (inclusive).
func (s *TradeStore) GetByTimeRange(_ context.Context, wallet string, start, end int64) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.Wallet == wallet && t.Timestamp >= start && t.Timestamp <= end {
			result = append(result, cloneTrade(t))
		}
	}

	sortTrades(result)
	return result, nil
}

func sortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Timestamp != trades[j].Timestamp {
			return trades[i].Timestamp < trades[j].Timestamp
		}
		if trades[i].Slot != trades[j].Slot {
			return trades[i].Slot < trades[j].Slot
		}
		return trades[i].Signature < trades[j].Signature
	})
}

// cloneTrade deep-copies a trade, including its optional priced fields.
func cloneTrade(t *domain.Trade) *domain.Trade {
	c := *t
	c.Price = cloneFloat(t.Price)
	c.Value = cloneFloat(t.Value)
	c.RealizedPnL = cloneFloat(t.RealizedPnL)
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ storage.TradeStore = (*TradeStore)(nil)
