package clickhouse

import (
	"context"
	"fmt"

	"solana-wallet-pnl/internal/domain"
)

// TradeArchiveStore appends extracted trades to the ClickHouse archive.
// The table is a ReplacingMergeTree keyed by (wallet, signature), so
// re-archiving a run is idempotent after merges rather than an error.
type TradeArchiveStore struct {
	conn *Conn
}

// NewTradeArchiveStore creates a new TradeArchiveStore.
func NewTradeArchiveStore(conn *Conn) *TradeArchiveStore {
	return &TradeArchiveStore{conn: conn}
}

// InsertBulk appends trades to the archive in one batch.
func (s *TradeArchiveStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_archive (
			wallet, signature, timestamp_ms, slot, dex, source, action,
			token_in_mint, token_in_symbol, token_in_amount,
			token_out_mint, token_out_symbol, token_out_amount,
			price, value, realized_pnl
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.Wallet, t.Signature, uint64(t.Timestamp), t.Slot, t.DEX, t.Source, t.Action,
			t.TokenIn.Mint, t.TokenIn.Symbol, t.TokenIn.Amount,
			t.TokenOut.Mint, t.TokenOut.Symbol, t.TokenOut.Amount,
			t.Price, t.Value, t.RealizedPnL,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByWallet retrieves archived trades for a wallet, ordered by timestamp
// ASC, slot ASC, signature ASC. FINAL collapses replaced duplicates.
func (s *TradeArchiveStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.Trade, error) {
	query := `
		SELECT wallet, signature, timestamp_ms, slot, dex, source, action,
		       token_in_mint, token_in_symbol, token_in_amount,
		       token_out_mint, token_out_symbol, token_out_amount,
		       price, value, realized_pnl
		FROM trade_archive FINAL
		WHERE wallet = ?
		ORDER BY timestamp_ms ASC, slot ASC, signature ASC
	`

	rows, err := s.conn.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("query archive by wallet: %w", err)
	}
	defer rows.Close()

	return scanArchivedTrades(rows)
}

// CountByWallet returns the number of archived trades for a wallet.
func (s *TradeArchiveStore) CountByWallet(ctx context.Context, wallet string) (uint64, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM trade_archive FINAL WHERE wallet = ?
	`, wallet).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count archive by wallet: %w", err)
	}
	return count, nil
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanArchivedTrades scans multiple rows into a slice of Trade.
func scanArchivedTrades(rows chRows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var timestampMs uint64

		err := rows.Scan(
			&t.Wallet, &t.Signature, &timestampMs, &t.Slot, &t.DEX, &t.Source, &t.Action,
			&t.TokenIn.Mint, &t.TokenIn.Symbol, &t.TokenIn.Amount,
			&t.TokenOut.Mint, &t.TokenOut.Symbol, &t.TokenOut.Amount,
			&t.Price, &t.Value, &t.RealizedPnL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}

		t.Timestamp = int64(timestampMs)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}

	return trades, nil
}
