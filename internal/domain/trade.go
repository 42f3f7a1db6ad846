package domain

// Well-known mint addresses used for trade classification.
const (
	WSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// NativeMint is the synthetic mint identifier for the chain's native SOL unit.
// Native transfers carry no SPL mint, so flows are normalized under this key.
const NativeMint = WSOLMint

// LamportsPerSOL converts lamports to SOL units.
const LamportsPerSOL = 1_000_000_000.0

// Trade action constants, relative to the quote asset (SOL/stables).
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Trade parse source constants.
const (
	TradeSourceSwapEvent = "swap_event"         // structured swap event on the transaction
	TradeSourceHeuristic = "transfer_heuristic" // reconstructed from raw token transfers
)

// TokenFlow is one leg of a swap: a token identity plus a decimal-adjusted amount.
// Immutable once attached to a Trade.
type TokenFlow struct {
	Mint   string
	Symbol string
	Amount float64 // always non-negative
}

// Trade represents one normalized swap executed by a wallet.
// At most one Trade exists per signature per wallet.
type Trade struct {
	Signature string // unique key within a wallet's history
	Timestamp int64  // Unix timestamp in milliseconds
	Slot      int64  // Solana slot number
	Wallet    string // wallet address
	DEX       string // venue identifier ("RAYDIUM", "JUPITER", ...)
	Source    string // TradeSourceSwapEvent | TradeSourceHeuristic

	TokenIn  TokenFlow // leg leaving the wallet (spent)
	TokenOut TokenFlow // leg entering the wallet (received)

	Action string // ActionBuy | ActionSell, derived from which leg is quote

	// Price is the USD unit price of the base token, nil when unresolved.
	Price *float64
	// Value is the USD value of the trade, nil when unresolved.
	Value *float64
	// RealizedPnL is set by the position builder on sells, nil otherwise.
	RealizedPnL *float64
}

// IsQuoteMint reports whether a mint acts as the quote side of a swap.
func IsQuoteMint(mint string) bool {
	switch mint {
	case WSOLMint, USDCMint, USDTMint:
		return true
	}
	return false
}

// IsStableMint reports whether a mint is a USD stablecoin.
func IsStableMint(mint string) bool {
	return mint == USDCMint || mint == USDTMint
}

// BaseFlow returns the non-quote leg of the trade: TokenIn on a sell,
// TokenOut otherwise (token-to-token swaps count as a buy of TokenOut).
func (t *Trade) BaseFlow() TokenFlow {
	if t.Action == ActionSell {
		return t.TokenIn
	}
	return t.TokenOut
}

// QuoteFlow returns the opposite leg of BaseFlow.
func (t *Trade) QuoteFlow() TokenFlow {
	if t.Action == ActionSell {
		return t.TokenOut
	}
	return t.TokenIn
}
