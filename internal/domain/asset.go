// Package domain defines core data structures used throughout the portfolio engine.
package domain

import "fmt"

// DefaultBaseAssets are the stable/fiat symbols treated as having fixed unit
// value when no explicit list is configured.
func DefaultBaseAssets() []string {
	return []string{"USDC", "BUSD", "USDT", "EUR", "USD"}
}

// BaseAssets is the configured set of stable/fiat symbols. Holdings in these
// assets are valued 1:1 in the quote currency and never carry unrealized P&L.
type BaseAssets map[string]struct{}

// NewBaseAssets builds the set from a list of symbols.
func NewBaseAssets(symbols []string) BaseAssets {
	set := make(BaseAssets, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}

// Contains reports whether the asset is a base asset.
func (b BaseAssets) Contains(asset string) bool {
	_, ok := b[asset]
	return ok
}

// Pair trading pair with explicit sides. Trades always carry the pair they
// were fetched with, the engine never derives it back from the symbol string.
type Pair struct {
	// From base currency symbol (the traded asset).
	From string
	// To quote currency symbol (the pricing asset).
	To string
}

// String returns the string representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated exchange symbol representation.
func (p *Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}
