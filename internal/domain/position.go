package domain

// Lot is a discrete quantity of a token acquired at a specific unit cost,
// consumed oldest-first on sells.
type Lot struct {
	Quantity   float64 // tokens remaining in this lot
	UnitCost   float64 // USD cost per token at acquisition, 0 when unpriced
	AcquiredAt int64   // Unix timestamp in milliseconds
}

// Position accumulates per-(wallet, token) state folded from the trade stream.
// Only the position builder mutates lots; downstream consumers read only.
type Position struct {
	Wallet string
	Mint   string
	Symbol string

	Lots           []Lot   // open lots in acquisition order
	Balance        float64 // current tracked balance, never negative
	CostBasisTotal float64 // USD cost basis of remaining lots
	RealizedPnL    float64 // USD realized across consumed lots

	BuyCount  int // trades that acquired this token
	SellCount int // trades that disposed of this token

	// InboundTransfers counts plain incoming transfers outside of trades.
	// A token with inbound transfers and zero buys is airdrop spam.
	InboundTransfers int

	// Native marks the chain's native SOL balance, tracked from trade legs
	// rather than lots because SOL is never bought through a discrete swap
	// from the wallet's own perspective.
	Native bool

	FirstSeen   int64 // Unix ms of first trade or inflow touching the token
	LastUpdated int64 // Unix ms of the most recent mutation
}

// Open reports whether the position still holds a balance. Closed positions
// are retained for realized-P&L audit but excluded from open-position views.
func (p *Position) Open() bool {
	return p.Balance > 0
}

// AverageCost returns the USD cost per token across remaining lots,
// or 0 for an empty or unpriced position.
func (p *Position) AverageCost() float64 {
	if p.Balance <= 0 {
		return 0
	}
	return p.CostBasisTotal / p.Balance
}
