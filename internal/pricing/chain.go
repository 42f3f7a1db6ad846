package pricing

import "strings"

// Chain source names accepted in configuration.
const (
	ChainImplied = "implied"
	ChainOracle  = "oracle"
	ChainSpot    = "spot"
)

// NewChain assembles the active source chain from configured names, in
// order. Unknown names are ignored so a config typo degrades pricing
// instead of breaking startup.
func NewChain(names []string, implied *TradeImpliedSource, oracle *OracleClient) []Source {
	var sources []Source
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ChainImplied:
			if implied != nil {
				sources = append(sources, implied)
			}
		case ChainOracle:
			if oracle != nil {
				sources = append(sources, NewOracleSource(oracle))
			}
		case ChainSpot:
			if oracle != nil {
				sources = append(sources, NewSpotReferenceSource(oracle))
			}
		}
	}
	return sources
}
