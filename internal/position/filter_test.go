package position

import (
	"testing"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/parser"
)

const (
	mintTOKB = "TokbMintBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
	mintSPAM = "SpamMintCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC"
)

func TestIsSpam(t *testing.T) {
	activity := map[string]*parser.TokenActivity{
		mintSPAM: {Mint: mintSPAM, InboundTransfers: 3, BuyTrades: 0},
		mintTOKA: {Mint: mintTOKA, InboundTransfers: 1, BuyTrades: 2},
	}

	if !IsSpam(activity, mintSPAM) {
		t.Error("Inbound transfers with zero buys must classify as spam")
	}
	if IsSpam(activity, mintTOKA) {
		t.Error("A bought token is never spam")
	}
	if IsSpam(activity, "unknown-mint") {
		t.Error("Unknown mint is not spam")
	}
	if IsSpam(activity, domain.NativeMint) {
		t.Error("Native asset is never spam")
	}
}

func TestExcludeSpam(t *testing.T) {
	activity := map[string]*parser.TokenActivity{
		mintSPAM: {Mint: mintSPAM, InboundTransfers: 1},
	}
	positions := map[string]*domain.Position{
		mintSPAM: {Mint: mintSPAM, Balance: 1000},
		mintTOKA: {Mint: mintTOKA, Balance: 10},
	}

	ExcludeSpam(positions, activity)

	if _, ok := positions[mintSPAM]; ok {
		t.Error("Spam position not excluded")
	}
	if _, ok := positions[mintTOKA]; !ok {
		t.Error("Non-spam position dropped")
	}
}

func TestExcludeSpamTrades(t *testing.T) {
	activity := map[string]*parser.TokenActivity{
		mintSPAM: {Mint: mintSPAM, InboundTransfers: 1},
	}
	trades := []*domain.Trade{
		sellUSDC("s1", 1000, mintSPAM, 100, 0.01),
		buyUSDC("s2", 2000, mintTOKA, 10, 1.0),
	}

	kept := ExcludeSpamTrades(trades, activity)
	if len(kept) != 1 || kept[0].Signature != "s2" {
		t.Errorf("Expected only s2 kept, got %d trades", len(kept))
	}
}

func TestIsDust(t *testing.T) {
	pos := &domain.Position{Mint: mintTOKA, Balance: 5}

	if !IsDust(pos, &domain.Valuation{CurrentValue: ptr(0.005)}, DefaultDustThresholdUSD) {
		t.Error("Value below threshold must be dust")
	}
	if IsDust(pos, &domain.Valuation{CurrentValue: ptr(5.0)}, DefaultDustThresholdUSD) {
		t.Error("Value above threshold is not dust")
	}
	// Unpriced positions cannot be classified and are kept.
	if IsDust(pos, nil, DefaultDustThresholdUSD) {
		t.Error("Missing valuation must not classify as dust")
	}
	if IsDust(pos, &domain.Valuation{}, DefaultDustThresholdUSD) {
		t.Error("Nil current value must not classify as dust")
	}
}

func TestOpenPositions(t *testing.T) {
	positions := map[string]*domain.Position{
		mintTOKA: {Mint: mintTOKA, Balance: 100},
		mintTOKB: {Mint: mintTOKB, Balance: 0}, // closed
		mintSPAM: {Mint: mintSPAM, Balance: 50},
	}
	valuations := map[string]*domain.Valuation{
		mintTOKA: {Mint: mintTOKA, CurrentValue: ptr(200.0)},
		mintSPAM: {Mint: mintSPAM, CurrentValue: ptr(0.001)}, // dust
	}

	open := OpenPositions(positions, valuations, DefaultDustThresholdUSD)
	if len(open) != 1 || open[0].Mint != mintTOKA {
		t.Errorf("Expected only the open non-dust position, got %d", len(open))
	}

	// Closed positions remain in the source map for audit.
	if _, ok := positions[mintTOKB]; !ok {
		t.Error("Closed position removed from source map")
	}
}
