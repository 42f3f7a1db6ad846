// Package api defines the wallet report exposed over HTTP and by the CLI.
// Every monetary field crosses the boundary as a decimal string, never a
// float, so clients lose no precision.
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"solana-wallet-pnl/internal/domain"
)

// WalletReport is the JSON result shape for one wallet.
type WalletReport struct {
	Wallet     string    `json:"wallet"`
	AsOf       time.Time `json:"as_of"`
	Stale      bool      `json:"stale"`
	Incomplete bool      `json:"incomplete"`

	RealizedPnL   string  `json:"realized_pnl"`
	UnrealizedPnL *string `json:"unrealized_pnl"` // null when no open position is priced
	TotalValue    *string `json:"total_value"`    // null when no open position is priced
	PriceCoverage string  `json:"price_coverage"`

	Signatures []string       `json:"signatures"`
	Trades     []TradeView    `json:"trades"`
	Positions  []PositionView `json:"positions"`
}

// TradeView is one normalized trade as exposed to clients.
type TradeView struct {
	Signature string    `json:"signature"`
	Timestamp time.Time `json:"timestamp"`
	Slot      int64     `json:"slot"`
	DEX       string    `json:"dex,omitempty"`
	Source    string    `json:"source"`
	Action    string    `json:"action"`

	TokenIn  FlowView `json:"token_in"`
	TokenOut FlowView `json:"token_out"`

	Priced      bool    `json:"priced"`
	Price       *string `json:"price"`
	Value       *string `json:"value"`
	RealizedPnL *string `json:"realized_pnl"`
}

// FlowView is one leg of a trade.
type FlowView struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol,omitempty"`
	Amount string `json:"amount"`
}

// PositionView is one open position as exposed to clients.
type PositionView struct {
	Mint   string `json:"mint"`
	Symbol string `json:"symbol,omitempty"`
	Native bool   `json:"native,omitempty"`

	Balance     string `json:"balance"`
	AverageCost string `json:"average_cost"`
	CostBasis   string `json:"cost_basis"`
	RealizedPnL string `json:"realized_pnl"`

	Priced          bool    `json:"priced"`
	PriceConfidence string  `json:"price_confidence"`
	Price           *string `json:"price"`
	CurrentValue    *string `json:"current_value"`
	UnrealizedPnL   *string `json:"unrealized_pnl"`

	BuyCount  int `json:"buy_count"`
	SellCount int `json:"sell_count"`

	FirstSeen   time.Time `json:"first_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// BuildReport assembles the report from a snapshot and the wallet's trades.
func BuildReport(snap *domain.PositionSnapshot, trades []*domain.Trade) *WalletReport {
	report := &WalletReport{
		Wallet:        snap.Wallet,
		AsOf:          time.UnixMilli(snap.AsOf).UTC(),
		Stale:         snap.Stale,
		Incomplete:    snap.Incomplete,
		RealizedPnL:   dec(snap.RealizedPnL),
		UnrealizedPnL: decPtr(snap.UnrealizedPnL),
		TotalValue:    decPtr(snap.TotalValue),
		PriceCoverage: dec(snap.PriceCoverage),
		Signatures:    make([]string, 0, len(trades)),
		Trades:        make([]TradeView, 0, len(trades)),
		Positions:     make([]PositionView, 0, len(snap.Positions)),
	}

	for _, t := range trades {
		report.Signatures = append(report.Signatures, t.Signature)
		report.Trades = append(report.Trades, tradeView(t))
	}
	for _, pos := range snap.Positions {
		report.Positions = append(report.Positions, positionView(pos, snap.Valuations[pos.Mint]))
	}

	return report
}

func tradeView(t *domain.Trade) TradeView {
	return TradeView{
		Signature:   t.Signature,
		Timestamp:   time.UnixMilli(t.Timestamp).UTC(),
		Slot:        t.Slot,
		DEX:         t.DEX,
		Source:      t.Source,
		Action:      t.Action,
		TokenIn:     flowView(t.TokenIn),
		TokenOut:    flowView(t.TokenOut),
		Priced:      t.Price != nil,
		Price:       decPtr(t.Price),
		Value:       decPtr(t.Value),
		RealizedPnL: decPtr(t.RealizedPnL),
	}
}

func flowView(f domain.TokenFlow) FlowView {
	return FlowView{
		Mint:   f.Mint,
		Symbol: f.Symbol,
		Amount: dec(f.Amount),
	}
}

func positionView(pos *domain.Position, val *domain.Valuation) PositionView {
	view := PositionView{
		Mint:            pos.Mint,
		Symbol:          pos.Symbol,
		Native:          pos.Native,
		Balance:         dec(pos.Balance),
		AverageCost:     dec(pos.AverageCost()),
		CostBasis:       dec(pos.CostBasisTotal),
		RealizedPnL:     dec(pos.RealizedPnL),
		PriceConfidence: domain.ConfidenceUnavailable,
		BuyCount:        pos.BuyCount,
		SellCount:       pos.SellCount,
		FirstSeen:       time.UnixMilli(pos.FirstSeen).UTC(),
		LastUpdated:     time.UnixMilli(pos.LastUpdated).UTC(),
	}

	if val != nil {
		view.PriceConfidence = val.Confidence
		view.Priced = val.Price != nil
		view.Price = decPtr(val.Price)
		view.CurrentValue = decPtr(val.CurrentValue)
		view.UnrealizedPnL = decPtr(val.UnrealizedPnL)
	}

	return view
}

func dec(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func decPtr(v *float64) *string {
	if v == nil {
		return nil
	}
	s := decimal.NewFromFloat(*v).String()
	return &s
}
