// Package position folds the ordered trade stream into per-token positions
// using FIFO lot accounting.
package position

import (
	"errors"

	"github.com/sirupsen/logrus"

	"solana-wallet-pnl/internal/domain"
)

// DefaultMinNativeBalance is the SOL balance below which the native position
// is not surfaced.
const DefaultMinNativeBalance = 0.001

// quantityEpsilon absorbs float residue when lots are fully consumed.
const quantityEpsilon = 1e-12

// ErrUnsortedTrades is returned when the input stream is not in
// non-decreasing timestamp order, which would corrupt FIFO accounting.
var ErrUnsortedTrades = errors.New("trades must be sorted by timestamp ascending")

// Builder folds trades into positions. It is the only component that
// mutates lots.
type Builder struct {
	minNativeBalance float64
	logger           *logrus.Logger
}

// BuilderOptions contains configuration for creating a Builder.
type BuilderOptions struct {
	MinNativeBalance float64
	Logger           *logrus.Logger
}

// NewBuilder creates a position builder.
func NewBuilder(opts BuilderOptions) *Builder {
	minNative := opts.MinNativeBalance
	if minNative <= 0 {
		minNative = DefaultMinNativeBalance
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{
		minNativeBalance: minNative,
		logger:           logger,
	}
}

// Build folds the wallet's deduplicated trades, ordered by timestamp
// ascending, into a map of positions keyed by mint. Zero-balance positions
// are retained as closed for realized-P&L audit.
func (b *Builder) Build(wallet string, trades []*domain.Trade) (map[string]*domain.Position, error) {
	for i := 1; i < len(trades); i++ {
		if trades[i-1].Timestamp > trades[i].Timestamp {
			return nil, ErrUnsortedTrades
		}
	}

	positions := make(map[string]*domain.Position)
	var nativeBalance float64
	var nativeFirst, nativeLast int64

	for _, trade := range trades {
		// Native SOL is tracked by summing flows across every leg that
		// references it: the wallet never "buys" its own gas token.
		nativeBalance += nativeDelta(trade)
		if nativeFirst == 0 {
			nativeFirst = trade.Timestamp
		}
		nativeLast = trade.Timestamp

		base := trade.BaseFlow()
		if base.Mint == domain.NativeMint {
			continue
		}

		pos := positions[base.Mint]
		if pos == nil {
			pos = &domain.Position{
				Wallet:    wallet,
				Mint:      base.Mint,
				Symbol:    base.Symbol,
				FirstSeen: trade.Timestamp,
			}
			positions[base.Mint] = pos
		}
		pos.LastUpdated = trade.Timestamp

		switch trade.Action {
		case domain.ActionBuy:
			b.applyBuy(pos, trade, base)
		case domain.ActionSell:
			b.applySell(pos, trade, base)
		}
	}

	if nativeBalance < 0 {
		// Incomplete history can drive the accumulator negative; the
		// tracked balance is clamped, never reported below zero.
		b.logger.WithFields(logrus.Fields{
			"wallet":  wallet,
			"balance": nativeBalance,
		}).Warn("native balance went negative, clamping to zero")
		nativeBalance = 0
	}
	if nativeBalance >= b.minNativeBalance {
		positions[domain.NativeMint] = &domain.Position{
			Wallet:      wallet,
			Mint:        domain.NativeMint,
			Symbol:      "SOL",
			Balance:     nativeBalance,
			Native:      true,
			FirstSeen:   nativeFirst,
			LastUpdated: nativeLast,
		}
	}

	return positions, nil
}

// applyBuy appends a new lot. An unresolved price yields a zero-cost lot.
func (b *Builder) applyBuy(pos *domain.Position, trade *domain.Trade, base domain.TokenFlow) {
	unitCost := 0.0
	if trade.Price != nil {
		unitCost = *trade.Price
	}

	pos.Lots = append(pos.Lots, domain.Lot{
		Quantity:   base.Amount,
		UnitCost:   unitCost,
		AcquiredAt: trade.Timestamp,
	})
	pos.Balance += base.Amount
	pos.CostBasisTotal += base.Amount * unitCost
	pos.BuyCount++
}

// applySell consumes lots oldest-first, realizing P&L per consumed lot.
// Selling more than the tracked balance clamps at zero, never negative.
func (b *Builder) applySell(pos *domain.Position, trade *domain.Trade, base domain.TokenFlow) {
	pos.SellCount++

	toSell := base.Amount
	if toSell > pos.Balance {
		b.logger.WithFields(logrus.Fields{
			"wallet":  pos.Wallet,
			"mint":    pos.Mint,
			"sell":    toSell,
			"tracked": pos.Balance,
		}).Warn("sell exceeds tracked balance, clamping")
		toSell = pos.Balance
	}
	if toSell <= 0 {
		return
	}

	var sellPrice float64
	priced := trade.Price != nil
	if priced {
		sellPrice = *trade.Price
	}

	var realized float64
	for toSell > 0 && len(pos.Lots) > 0 {
		lot := &pos.Lots[0]

		consumed := lot.Quantity
		if consumed > toSell {
			consumed = toSell
		}

		if priced {
			realized += (sellPrice - lot.UnitCost) * consumed
		}
		pos.CostBasisTotal -= lot.UnitCost * consumed
		pos.Balance -= consumed
		lot.Quantity -= consumed
		toSell -= consumed

		if lot.Quantity <= quantityEpsilon {
			pos.Lots = pos.Lots[1:]
		}
	}

	// Normalize float residue so a full sell closes the position cleanly.
	if pos.Balance < quantityEpsilon {
		pos.Balance = 0
	}
	if pos.CostBasisTotal < 0 {
		pos.CostBasisTotal = 0
	}

	if priced {
		pos.RealizedPnL += realized
		trade.RealizedPnL = &realized
	} else {
		b.logger.WithFields(logrus.Fields{
			"mint":      pos.Mint,
			"signature": trade.Signature,
		}).Debug("sell without resolved price, realized P&L not recorded")
	}
}

// nativeDelta sums the trade's SOL legs from the wallet's perspective.
func nativeDelta(trade *domain.Trade) float64 {
	var delta float64
	if trade.TokenIn.Mint == domain.NativeMint {
		delta -= trade.TokenIn.Amount
	}
	if trade.TokenOut.Mint == domain.NativeMint {
		delta += trade.TokenOut.Amount
	}
	return delta
}
