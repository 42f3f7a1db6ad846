package pipeline

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/helius"
	"solana-wallet-pnl/internal/pricing"
	"solana-wallet-pnl/internal/storage/memory"
)

const (
	testWallet = "11111111111111111111111111111111"
	mintTOKA   = "TokaMintAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

// scriptedSignatures replays pages in order; exhausted scripts return empty
// pages until the paginator gives up.
type scriptedSignatures struct {
	pages [][]helius.SignatureInfo
	err   error
	calls int
}

func (s *scriptedSignatures) GetSignaturesForAddress(ctx context.Context, address string, opts *helius.SignaturesOpts) ([]helius.SignatureInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.pages) == 0 {
		return nil, nil
	}
	page := s.pages[0]
	s.pages = s.pages[1:]
	return page, nil
}

// stubTransactions serves transaction bodies from a fixed map.
type stubTransactions struct {
	txns map[string]helius.EnhancedTransaction
}

func (s *stubTransactions) GetParsedTransactions(ctx context.Context, signatures []string) ([]helius.EnhancedTransaction, error) {
	var out []helius.EnhancedTransaction
	for _, sig := range signatures {
		if tx, ok := s.txns[sig]; ok {
			out = append(out, tx)
		}
	}
	return out, nil
}

func sigInfo(sig string, slot, blockTime int64) helius.SignatureInfo {
	return helius.SignatureInfo{Signature: sig, Slot: slot, BlockTime: &blockTime}
}

// usdcSwap builds a structured stablecoin swap. A positive tokenQty on the
// output side is a buy; swap the legs for a sell.
func usdcSwap(sig string, slot, ts int64, buy bool, tokenQty, usdcQty string) helius.EnhancedTransaction {
	tokenLeg := helius.SwapToken{
		UserAccount:    testWallet,
		Mint:           mintTOKA,
		RawTokenAmount: helius.RawTokenAmount{TokenAmount: tokenQty, Decimals: 0},
	}
	usdcLeg := helius.SwapToken{
		UserAccount:    testWallet,
		Mint:           domain.USDCMint,
		RawTokenAmount: helius.RawTokenAmount{TokenAmount: usdcQty, Decimals: 6},
	}

	tx := helius.EnhancedTransaction{
		Signature: sig,
		Slot:      slot,
		Timestamp: ts,
		Source:    "RAYDIUM",
	}
	if buy {
		tx.Events.Swap = &helius.SwapEvent{
			TokenInputs:  []helius.SwapToken{usdcLeg},
			TokenOutputs: []helius.SwapToken{tokenLeg},
		}
	} else {
		tx.Events.Swap = &helius.SwapEvent{
			TokenInputs:  []helius.SwapToken{tokenLeg},
			TokenOutputs: []helius.SwapToken{usdcLeg},
		}
	}
	return tx
}

type testPipeline struct {
	extractor  *Extractor
	tradeStore *memory.TradeStore
	progress   *memory.SyncProgressStore
}

func newTestPipeline(sigs *scriptedSignatures, txns *stubTransactions) *testPipeline {
	implied := pricing.NewTradeImpliedSource(nil, nil)
	resolver := pricing.NewResolver(pricing.ResolverOptions{
		Sources: []pricing.Source{implied},
	})
	tradeStore := memory.NewTradeStore()
	progress := memory.NewSyncProgressStore()

	return &testPipeline{
		extractor: New(Options{
			Signatures:    sigs,
			Transactions:  txns,
			Resolver:      resolver,
			Implied:       implied,
			TradeStore:    tradeStore,
			ProgressStore: progress,
		}),
		tradeStore: tradeStore,
		progress:   progress,
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff > 1e-9 {
		t.Errorf("%s: expected %v, got %v", name, want, got)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	// Buy 100 TOKA for 50 USDC at 0.50, then sell 40 at 0.75:
	// realized 40*(0.75-0.50) = 10, remaining 60 at cost 30.
	sigs := &scriptedSignatures{pages: [][]helius.SignatureInfo{
		{sigInfo("s2", 200, 1700000100), sigInfo("s1", 100, 1700000000)},
	}}
	txns := &stubTransactions{txns: map[string]helius.EnhancedTransaction{
		"s1": usdcSwap("s1", 100, 1700000000, true, "100", "50000000"),
		"s2": usdcSwap("s2", 200, 1700000100, false, "40", "30000000"),
	}}
	p := newTestPipeline(sigs, txns)
	ctx := context.Background()

	snap, stats, err := p.extractor.Run(ctx, testWallet)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Signatures != 2 || stats.Parsed != 2 {
		t.Errorf("Expected 2 signatures parsed, got %+v", stats)
	}
	if stats.ParsedBySource[domain.TradeSourceSwapEvent] != 2 {
		t.Errorf("Expected 2 swap_event trades, got %+v", stats.ParsedBySource)
	}
	if stats.Incomplete || snap.Incomplete {
		t.Error("Complete run marked incomplete")
	}

	if len(snap.Positions) != 1 {
		t.Fatalf("Expected 1 open position, got %d", len(snap.Positions))
	}
	pos := snap.Positions[0]
	if pos.Mint != mintTOKA {
		t.Fatalf("Unexpected position mint: %s", pos.Mint)
	}
	approx(t, "balance", pos.Balance, 60)
	approx(t, "cost basis", pos.CostBasisTotal, 30)
	approx(t, "realized", snap.RealizedPnL, 10)

	// The sell at 0.75 is the latest implied price.
	val := snap.Valuations[mintTOKA]
	if val == nil || val.CurrentValue == nil {
		t.Fatalf("Expected priced valuation, got %+v", val)
	}
	approx(t, "current value", *val.CurrentValue, 45)
	if snap.UnrealizedPnL == nil {
		t.Fatal("Expected unrealized P&L")
	}
	approx(t, "unrealized", *snap.UnrealizedPnL, 15)
	approx(t, "coverage", snap.PriceCoverage, 1.0)

	// Parsed trades are persisted alongside the pagination cursor.
	stored, err := p.tradeStore.GetByWallet(ctx, testWallet)
	if err != nil || len(stored) != 2 {
		t.Errorf("Expected 2 persisted trades, got %d (%v)", len(stored), err)
	}
	prog, err := p.progress.Get(ctx, testWallet)
	if err != nil {
		t.Fatalf("Expected sync progress, got: %v", err)
	}
	if prog.Cursor != "s1" {
		t.Errorf("Expected cursor at the oldest signature, got %q", prog.Cursor)
	}
}

func TestRun_InvalidWallet(t *testing.T) {
	p := newTestPipeline(&scriptedSignatures{}, &stubTransactions{})
	if _, _, err := p.extractor.Run(context.Background(), "not-a-wallet"); err == nil {
		t.Fatal("Expected validation error")
	}
}

func TestRun_UpstreamFailureWithoutProgress(t *testing.T) {
	sigs := &scriptedSignatures{err: domain.ErrUpstreamUnavailable}
	p := newTestPipeline(sigs, &stubTransactions{})

	snap, _, err := p.extractor.Run(context.Background(), testWallet)
	if err == nil {
		t.Fatal("Expected error when no signatures were obtained")
	}
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("Cause not preserved: %v", err)
	}
	if snap != nil {
		t.Error("Expected no snapshot without progress")
	}
}

func TestRun_ResumesFromPersistedState(t *testing.T) {
	sigs := &scriptedSignatures{pages: [][]helius.SignatureInfo{
		{sigInfo("s1", 100, 1700000000)},
	}}
	txns := &stubTransactions{txns: map[string]helius.EnhancedTransaction{
		"s1": usdcSwap("s1", 100, 1700000000, true, "100", "50000000"),
	}}
	p := newTestPipeline(sigs, txns)
	ctx := context.Background()

	if _, _, err := p.extractor.Run(ctx, testWallet); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// The second run walks nothing new but still rebuilds the position from
	// persisted trades.
	snap, stats, err := p.extractor.Run(ctx, testWallet)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if stats.Signatures != 0 {
		t.Errorf("Expected no new signatures, got %d", stats.Signatures)
	}
	if len(snap.Positions) != 1 || snap.Positions[0].Mint != mintTOKA {
		t.Fatalf("Persisted trades not folded into the snapshot: %+v", snap.Positions)
	}
	approx(t, "balance", snap.Positions[0].Balance, 100)
}

func TestRun_ResumedRunKeepsPurchasedMint(t *testing.T) {
	// Run 1 buys TOKA. Run 2 fetches only older history: an airdrop of the
	// same mint plus a re-fetch of the persisted buy. The airdrop alone must
	// not flag a purchased mint as spam.
	sigs := &scriptedSignatures{pages: [][]helius.SignatureInfo{
		{sigInfo("s1", 100, 1700000000)},
	}}
	airdrop := helius.EnhancedTransaction{
		Signature: "a1",
		Slot:      50,
		Timestamp: 1699999000,
		TokenTransfers: []helius.TokenTransfer{
			{ToUserAccount: testWallet, Mint: mintTOKA, TokenAmount: 5},
		},
	}
	txns := &stubTransactions{txns: map[string]helius.EnhancedTransaction{
		"s1": usdcSwap("s1", 100, 1700000000, true, "100", "50000000"),
		"a1": airdrop,
	}}
	p := newTestPipeline(sigs, txns)
	ctx := context.Background()

	if _, _, err := p.extractor.Run(ctx, testWallet); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	sigs.pages = [][]helius.SignatureInfo{
		{sigInfo("a1", 50, 1699999000), sigInfo("s1", 100, 1700000000)},
	}

	snap, stats, err := p.extractor.Run(ctx, testWallet)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if stats.SpamExcluded != 0 {
		t.Errorf("Purchased mint flagged as spam: %+v", stats)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Expected re-fetched persisted trade to count as duplicate, got %d", stats.Duplicates)
	}
	if len(snap.Positions) != 1 || snap.Positions[0].Mint != mintTOKA {
		t.Fatalf("Position lost on resume: %+v", snap.Positions)
	}
	approx(t, "balance", snap.Positions[0].Balance, 100)
}
