package position

import (
	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/parser"
)

// DefaultDustThresholdUSD is the position value below which a position is
// classified as dust and excluded from reporting.
const DefaultDustThresholdUSD = 0.01

// IsSpam reports whether a mint is airdrop spam: inbound transfers exist but
// the wallet never bought the token. The native asset is never spam.
func IsSpam(activity map[string]*parser.TokenActivity, mint string) bool {
	if mint == domain.NativeMint {
		return false
	}
	a, ok := activity[mint]
	if !ok {
		return false
	}
	return a.InboundTransfers > 0 && a.BuyTrades == 0
}

// IsDust reports whether a position's current value falls below the
// threshold. An unpriced position cannot be classified and is kept.
func IsDust(pos *domain.Position, val *domain.Valuation, thresholdUSD float64) bool {
	if val == nil || val.CurrentValue == nil {
		return false
	}
	return *val.CurrentValue < thresholdUSD
}

// ExcludeSpam drops spam positions from the map. The builder's output is
// mutated in place and returned for chaining.
func ExcludeSpam(positions map[string]*domain.Position, activity map[string]*parser.TokenActivity) map[string]*domain.Position {
	for mint := range positions {
		if IsSpam(activity, mint) {
			delete(positions, mint)
		}
	}
	return positions
}

// ExcludeSpamTrades drops trades whose base token is spam.
func ExcludeSpamTrades(trades []*domain.Trade, activity map[string]*parser.TokenActivity) []*domain.Trade {
	kept := trades[:0]
	for _, t := range trades {
		if IsSpam(activity, t.BaseFlow().Mint) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// OpenPositions returns open, non-dust positions for external views. Closed
// positions stay in the source map for realized-P&L audit.
func OpenPositions(positions map[string]*domain.Position, valuations map[string]*domain.Valuation, dustThresholdUSD float64) []*domain.Position {
	var open []*domain.Position
	for mint, pos := range positions {
		if !pos.Open() {
			continue
		}
		if IsDust(pos, valuations[mint], dustThresholdUSD) {
			continue
		}
		open = append(open, pos)
	}
	return open
}
