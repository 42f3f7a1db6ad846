package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTradeQuery = `
	INSERT INTO trades (
		wallet, signature, timestamp_ms, slot, dex, source, action,
		token_in_mint, token_in_symbol, token_in_amount,
		token_out_mint, token_out_symbol, token_out_amount,
		price, value, realized_pnl
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

const selectTradeColumns = `
	wallet, signature, timestamp_ms, slot, dex, source, action,
	token_in_mint, token_in_symbol, token_in_amount,
	token_out_mint, token_out_symbol, token_out_amount,
	price, value, realized_pnl
`

// Insert adds a new trade. Returns ErrDuplicateKey if (wallet, signature) exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.Wallet == "" || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		if t == nil || t.Wallet == "" || t.Signature == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySignature retrieves one trade. Returns ErrNotFound if not exists.
func (s *TradeStore) GetBySignature(ctx context.Context, wallet, signature string) (*domain.Trade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM trades
		WHERE wallet = $1 AND signature = $2
	`

	row := s.pool.QueryRow(ctx, query, wallet, signature)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by signature: %w", err)
	}
	return t, nil
}

// GetByWallet retrieves all trades for a wallet, ordered by timestamp ASC,
// slot ASC, signature ASC.
func (s *TradeStore) GetByWallet(ctx context.Context, wallet string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM trades
		WHERE wallet = $1
		ORDER BY timestamp_ms ASC, slot ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("get trades by wallet: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByTimeRange retrieves a wallet's trades within [start, end] (inclusive).
func (s *TradeStore) GetByTimeRange(ctx context.Context, wallet string, start, end int64) ([]*domain.Trade, error) {
	query := `
		SELECT ` + selectTradeColumns + `
		FROM trades
		WHERE wallet = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY timestamp_ms ASC, slot ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query, wallet, start, end)
	if err != nil {
		return nil, fmt.Errorf("get trades by time range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// tradeArgs flattens a trade into insert parameters.
func tradeArgs(t *domain.Trade) []interface{} {
	return []interface{}{
		t.Wallet,
		t.Signature,
		t.Timestamp,
		t.Slot,
		t.DEX,
		t.Source,
		t.Action,
		t.TokenIn.Mint,
		t.TokenIn.Symbol,
		t.TokenIn.Amount,
		t.TokenOut.Mint,
		t.TokenOut.Symbol,
		t.TokenOut.Amount,
		t.Price,
		t.Value,
		t.RealizedPnL,
	}
}

// scanTrade scans a single row into a Trade. Nullable price columns map to
// nil pointers.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade

	err := row.Scan(
		&t.Wallet,
		&t.Signature,
		&t.Timestamp,
		&t.Slot,
		&t.DEX,
		&t.Source,
		&t.Action,
		&t.TokenIn.Mint,
		&t.TokenIn.Symbol,
		&t.TokenIn.Amount,
		&t.TokenOut.Mint,
		&t.TokenOut.Symbol,
		&t.TokenOut.Amount,
		&t.Price,
		&t.Value,
		&t.RealizedPnL,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
