package domain

// Valuation holds the price-dependent fields for one position.
// Nil fields mean the price was unavailable; zero would be misleading.
type Valuation struct {
	Mint          string
	Price         *float64 // USD per token
	CurrentValue  *float64 // Balance * Price
	UnrealizedPnL *float64 // CurrentValue - CostBasisTotal
	Confidence    string   // ConfidenceExact | ConfidenceEstimated | ConfidenceUnavailable
}

// PositionSnapshot is the wallet-level aggregate held by the snapshot cache
// and returned to callers.
type PositionSnapshot struct {
	Wallet     string
	Positions  []*Position
	Valuations map[string]*Valuation // keyed by mint, open positions only

	AsOf       int64 // Unix timestamp in milliseconds
	Stale      bool  // served from a previous snapshot after a failed recompute
	Incomplete bool  // pipeline stopped early (deadline or partial fetch)

	RealizedPnL   float64  // USD, summed over all positions
	UnrealizedPnL *float64 // USD over priced open positions, nil when none priced
	TotalValue    *float64 // USD over priced open positions, nil when none priced

	// PriceCoverage is the share of open positions with a usable price, 0..1.
	PriceCoverage float64
}
