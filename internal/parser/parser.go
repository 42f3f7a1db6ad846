// Package parser converts raw transactions into normalized trades, using the
// structured swap event when present and a transfer heuristic otherwise.
package parser

import (
	"errors"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/helius"
)

// DefaultDustEpsilon is the minimum leg amount (normalized units) below
// which a reconstructed trade is discarded.
const DefaultDustEpsilon = 1e-7

// minNativeLegSOL filters rent deposits and other lamport noise out of the
// fallback heuristic's candidate legs. Tuned against observed samples.
const minNativeLegSOL = 0.005

// TokenActivity accumulates per-mint counters across a wallet's history,
// feeding the spam/airdrop filter: a mint with inbound transfers and zero
// buy trades was never deliberately acquired.
type TokenActivity struct {
	Mint             string
	InboundTransfers int
	BuyTrades        int
	SellTrades       int
}

// Result is the accumulated output of one parse run. Trades is keyed by
// signature, which makes deduplication structural rather than procedural.
type Result struct {
	Trades   map[string]*domain.Trade
	Activity map[string]*TokenActivity

	Parsed           int
	ParsedBySource   map[string]int
	Duplicates       int
	SkippedFailed    int
	SkippedAmbiguous int
	SkippedDust      int
	SkippedOther     int

	// seen tracks every signature examined this run, parsed or skipped,
	// so no signature is ever processed twice.
	seen map[string]struct{}
}

// NewResult creates an empty parse result.
func NewResult() *Result {
	return &Result{
		Trades:         make(map[string]*domain.Trade),
		Activity:       make(map[string]*TokenActivity),
		ParsedBySource: make(map[string]int),
		seen:           make(map[string]struct{}),
	}
}

// Seed registers a trade persisted by an earlier run. It joins the trade
// set, counts toward activity so cross-run filters judge full history
// rather than the current fetch window, and its signature counts as
// already processed.
func (r *Result) Seed(trade *domain.Trade) {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	r.seen[trade.Signature] = struct{}{}
	r.Trades[trade.Signature] = trade

	a := r.activity(trade.BaseFlow().Mint)
	if trade.Action == domain.ActionBuy {
		a.BuyTrades++
	} else {
		a.SellTrades++
	}
}

// SortedTrades returns the trade set as a slice; callers must still apply
// ingestion.SortTrades before position folding.
func (r *Result) SortedTrades() []*domain.Trade {
	trades := make([]*domain.Trade, 0, len(r.Trades))
	for _, t := range r.Trades {
		trades = append(trades, t)
	}
	return trades
}

// Parser converts one wallet's raw transactions into trades.
type Parser struct {
	wallet      string
	dustEpsilon float64
	logger      *logrus.Logger
}

// Options contains configuration for creating a Parser.
type Options struct {
	Wallet      string
	DustEpsilon float64
	Logger      *logrus.Logger
}

// New creates a trade parser for one wallet.
func New(opts Options) *Parser {
	dustEpsilon := opts.DustEpsilon
	if dustEpsilon <= 0 {
		dustEpsilon = DefaultDustEpsilon
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Parser{
		wallet:      opts.Wallet,
		dustEpsilon: dustEpsilon,
		logger:      logger,
	}
}

// ParseAll parses a batch of transactions into a fresh result.
func (p *Parser) ParseAll(txns []helius.EnhancedTransaction) *Result {
	res := NewResult()
	p.ParseInto(res, txns)
	return res
}

// ParseInto parses transactions into an existing result, so a paginated run
// accumulates one deduplicated trade set across all pages.
func (p *Parser) ParseInto(res *Result, txns []helius.EnhancedTransaction) {
	if res.seen == nil {
		res.seen = make(map[string]struct{}, len(res.Trades))
		for sig := range res.Trades {
			res.seen[sig] = struct{}{}
		}
	}

	for i := range txns {
		tx := &txns[i]

		if _, dup := res.seen[tx.Signature]; dup {
			res.Duplicates++
			continue
		}
		res.seen[tx.Signature] = struct{}{}
		if tx.Failed() {
			res.SkippedFailed++
			continue
		}

		p.recordInbound(res, tx)

		trade, err := p.parseOne(tx)
		switch {
		case err != nil:
			if errors.Is(err, domain.ErrParseAmbiguous) {
				res.SkippedAmbiguous++
			} else {
				res.SkippedOther++
			}
			continue
		case trade == nil:
			res.SkippedOther++
			continue
		}

		if math.Min(trade.TokenIn.Amount, trade.TokenOut.Amount) < p.dustEpsilon {
			res.SkippedDust++
			continue
		}

		res.Trades[trade.Signature] = trade
		res.Parsed++
		if res.ParsedBySource == nil {
			res.ParsedBySource = make(map[string]int)
		}
		res.ParsedBySource[trade.Source]++
		p.recordTrade(res, trade)
	}
}

// parseOne returns zero or one trade for a transaction.
func (p *Parser) parseOne(tx *helius.EnhancedTransaction) (*domain.Trade, error) {
	switch Classify(tx) {
	case KindStructuredSwap:
		return p.parseStructured(tx)
	case KindRawTransfers:
		return p.parseFallback(tx)
	default:
		return nil, nil
	}
}

// parseStructured extracts the two legs directly from the swap event.
func (p *Parser) parseStructured(tx *helius.EnhancedTransaction) (*domain.Trade, error) {
	swap := tx.Events.Swap

	in := p.structuredLeg(swap.NativeInput, swap.TokenInputs)
	out := p.structuredLeg(swap.NativeOutput, swap.TokenOutputs)

	if in.Amount <= 0 || out.Amount <= 0 {
		return nil, domain.ErrParseAmbiguous
	}
	if in.Mint == out.Mint {
		return nil, domain.ErrParseAmbiguous
	}

	return p.newTrade(tx, in, out, domain.TradeSourceSwapEvent), nil
}

// structuredLeg picks one leg of the swap event: the native SOL flow when
// present, otherwise the largest token flow, preferring legs owned by the
// wallet.
func (p *Parser) structuredLeg(native *helius.NativeAmount, tokens []helius.SwapToken) domain.TokenFlow {
	if native != nil {
		if sol := parseLamportString(native.Amount); sol > 0 {
			return domain.TokenFlow{Mint: domain.NativeMint, Symbol: "SOL", Amount: sol}
		}
	}

	var best domain.TokenFlow
	bestOwned := false
	for _, t := range tokens {
		amount := decimalAdjust(t.RawTokenAmount)
		if amount <= 0 {
			continue
		}
		owned := t.UserAccount == p.wallet
		// Wallet-owned legs beat foreign legs; within a tier the largest wins.
		if (owned && !bestOwned) || (owned == bestOwned && amount > best.Amount) {
			best = domain.TokenFlow{Mint: t.Mint, Amount: amount}
			bestOwned = owned
		}
	}
	return best
}

// parseFallback reconstructs a trade from raw transfer lists. The wallet's
// transfers are partitioned by direction and the largest-magnitude transfer
// on each side becomes a leg. This is a deliberate approximation for
// multi-hop and fee-bearing swaps, not an exact reconstruction.
func (p *Parser) parseFallback(tx *helius.EnhancedTransaction) (*domain.Trade, error) {
	var in, out domain.TokenFlow // in = leaving the wallet, out = entering

	for _, t := range tx.TokenTransfers {
		if !fungible(t.TokenStandard) || t.TokenAmount <= 0 {
			continue
		}
		switch {
		case t.FromUserAccount == p.wallet:
			if t.TokenAmount > in.Amount {
				in = domain.TokenFlow{Mint: t.Mint, Amount: t.TokenAmount}
			}
		case t.ToUserAccount == p.wallet:
			if t.TokenAmount > out.Amount {
				out = domain.TokenFlow{Mint: t.Mint, Amount: t.TokenAmount}
			}
		}
	}

	// Net native flow is a candidate leg: most swaps settle one side in SOL.
	// Small lamport movements (rent, tips) are excluded.
	nativeOut, nativeIn := p.nativeFlows(tx)
	if nativeOut >= minNativeLegSOL && nativeOut > in.Amount {
		in = domain.TokenFlow{Mint: domain.NativeMint, Symbol: "SOL", Amount: nativeOut}
	}
	if nativeIn >= minNativeLegSOL && nativeIn > out.Amount {
		out = domain.TokenFlow{Mint: domain.NativeMint, Symbol: "SOL", Amount: nativeIn}
	}

	if in.Amount <= 0 || out.Amount <= 0 {
		return nil, domain.ErrParseAmbiguous
	}
	if in.Mint == out.Mint {
		// Same mint both directions is a self-transfer, not a swap.
		return nil, domain.ErrParseAmbiguous
	}

	return p.newTrade(tx, in, out, domain.TradeSourceHeuristic), nil
}

// nativeFlows sums the wallet's outgoing and incoming SOL transfers.
func (p *Parser) nativeFlows(tx *helius.EnhancedTransaction) (outSOL, inSOL float64) {
	for _, n := range tx.NativeTransfers {
		sol := float64(n.Amount) / domain.LamportsPerSOL
		if sol <= 0 {
			continue
		}
		if n.FromUserAccount == p.wallet {
			outSOL += sol
		} else if n.ToUserAccount == p.wallet {
			inSOL += sol
		}
	}
	return outSOL, inSOL
}

// newTrade assembles the normalized record, classifies the action, and
// computes the stable-implied price when a stablecoin leg is present.
func (p *Parser) newTrade(tx *helius.EnhancedTransaction, in, out domain.TokenFlow, source string) *domain.Trade {
	trade := &domain.Trade{
		Signature: tx.Signature,
		Timestamp: tx.Timestamp * 1000,
		Slot:      tx.Slot,
		Wallet:    p.wallet,
		DEX:       tx.Source,
		Source:    source,
		TokenIn:   in,
		TokenOut:  out,
		Action:    classifyAction(in, out),
	}

	// A stablecoin leg prices the base token exactly in USD.
	base := trade.BaseFlow()
	quote := trade.QuoteFlow()
	if domain.IsStableMint(quote.Mint) && base.Amount > 0 {
		price := quote.Amount / base.Amount
		value := quote.Amount
		trade.Price = &price
		trade.Value = &value
	}

	return trade
}

// classifyAction derives buy/sell relative to the quote asset. A swap out of
// quote (SOL or stables) buys the base token; a swap into quote sells it.
// Token-to-token swaps count as a buy of the received token.
func classifyAction(in, out domain.TokenFlow) string {
	if !domain.IsQuoteMint(in.Mint) && domain.IsQuoteMint(out.Mint) {
		return domain.ActionSell
	}
	return domain.ActionBuy
}

// recordInbound counts plain incoming fungible transfers per mint.
func (p *Parser) recordInbound(res *Result, tx *helius.EnhancedTransaction) {
	for _, t := range tx.TokenTransfers {
		if !fungible(t.TokenStandard) || t.TokenAmount <= 0 {
			continue
		}
		if t.ToUserAccount != p.wallet {
			continue
		}
		res.activity(t.Mint).InboundTransfers++
	}
}

// recordTrade counts buy/sell trades per base mint.
func (p *Parser) recordTrade(res *Result, trade *domain.Trade) {
	a := res.activity(trade.BaseFlow().Mint)
	if trade.Action == domain.ActionBuy {
		a.BuyTrades++
	} else {
		a.SellTrades++
	}
}

func (r *Result) activity(mint string) *TokenActivity {
	a, ok := r.Activity[mint]
	if !ok {
		a = &TokenActivity{Mint: mint}
		r.Activity[mint] = a
	}
	return a
}

// fungible treats a missing standard as fungible; only explicit NFT
// standards are excluded.
func fungible(standard string) bool {
	return standard == "" || standard == helius.TokenStandardFungible
}

func parseLamportString(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v / domain.LamportsPerSOL
}

func decimalAdjust(raw helius.RawTokenAmount) float64 {
	v, err := strconv.ParseFloat(raw.TokenAmount, 64)
	if err != nil {
		return 0
	}
	if raw.Decimals > 0 {
		v /= math.Pow(10, float64(raw.Decimals))
	}
	return v
}
