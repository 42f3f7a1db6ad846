package domain

import "time"

// Price confidence labels. Absence of a price is a value, not an error.
const (
	ConfidenceExact       = "exact"       // sourced directly for this mint
	ConfidenceEstimated   = "estimated"   // derived through a fallback rate
	ConfidenceUnavailable = "unavailable" // no source could price the mint
)

// Price source identifiers, in default resolution order.
const (
	PriceSourceTradeImplied = "trade_implied"  // implied by already-fetched trade data
	PriceSourceOracle       = "oracle"         // dedicated price-oracle API
	PriceSourceSpot         = "spot_reference" // uniform base-asset spot fallback
	PriceSourceNone         = "none"
)

// PriceQuote is the result of a price lookup for a mint.
type PriceQuote struct {
	Mint       string
	Price      float64 // USD per token, meaningless when Confidence is unavailable
	Currency   string  // always "USD"
	Source     string
	FetchedAt  time.Time
	Confidence string
}

// Available reports whether the quote carries a usable price.
func (q *PriceQuote) Available() bool {
	return q != nil && q.Confidence != ConfidenceUnavailable
}

// Unavailable returns the terminal "no price" quote for a mint.
func Unavailable(mint string) *PriceQuote {
	return &PriceQuote{
		Mint:       mint,
		Currency:   "USD",
		Source:     PriceSourceNone,
		FetchedAt:  time.Now(),
		Confidence: ConfidenceUnavailable,
	}
}
