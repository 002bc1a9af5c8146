// Package ledger implements the per-asset average-cost lot ledger and the
// realized profit ledger mutated during event replay.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

// Epsilon absorbs floating point drift: quantities and costs within this
// distance of zero are clamped to exactly zero.
var Epsilon = decimal.New(1, -9)

// Lot per-asset running quantity and total acquisition cost.
type Lot struct {
	Quantity  decimal.Decimal
	TotalCost decimal.Decimal
}

// Ledger tracks one Lot per asset. Lots are created on first reference and
// never destroyed; zero-quantity lots simply stop contributing to valuation.
// Not safe for concurrent use: each replay owns its ledger exclusively.
type Ledger struct {
	lots     map[string]*Lot
	logger   *zap.Logger
	warnings int
}

// New creates an empty ledger.
func New(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{lots: make(map[string]*Lot), logger: logger}
}

func (l *Ledger) lot(asset string) *Lot {
	entry, ok := l.lots[asset]
	if !ok {
		entry = &Lot{Quantity: decimal.Zero, TotalCost: decimal.Zero}
		l.lots[asset] = entry
	}
	return entry
}

// Add credits qty units of asset carrying the given acquisition cost.
func (l *Ledger) Add(asset string, qty, cost decimal.Decimal) {
	entry := l.lot(asset)
	entry.Quantity = entry.Quantity.Add(qty)
	entry.TotalCost = entry.TotalCost.Add(cost)
}

// Remove debits qty units of asset and the given share of its cost basis.
// Results within Epsilon of zero, or negative, are clamped to zero. Removing
// materially more than is held is a data-consistency warning: upstream event
// ordering and rounding can produce small negative excursions, so the ledger
// logs and clamps instead of failing.
func (l *Ledger) Remove(asset string, qty, cost decimal.Decimal) {
	entry := l.lot(asset)
	remaining := entry.Quantity.Sub(qty)
	if remaining.LessThan(Epsilon.Neg()) {
		l.warnings++
		l.logger.Warn("insufficient holdings to remove, clamping to zero",
			zap.String("asset", asset),
			zap.String("held", entry.Quantity.String()),
			zap.String("removed", qty.String()))
	}
	entry.Quantity = clamp(remaining)
	entry.TotalCost = clamp(entry.TotalCost.Sub(cost))
}

// AverageCost returns the blended acquisition cost per unit, zero when the
// lot is empty.
func (l *Ledger) AverageCost(asset string) decimal.Decimal {
	entry, ok := l.lots[asset]
	if !ok || !entry.Quantity.IsPositive() {
		return decimal.Zero
	}
	return entry.TotalCost.Div(entry.Quantity)
}

// Lot returns a copy of the asset's lot.
func (l *Ledger) Lot(asset string) Lot {
	entry, ok := l.lots[asset]
	if !ok {
		return Lot{Quantity: decimal.Zero, TotalCost: decimal.Zero}
	}
	return *entry
}

// Assets returns every asset the ledger has ever touched, sorted for
// deterministic iteration.
func (l *Ledger) Assets() []string {
	assets := make([]string, 0, len(l.lots))
	for asset := range l.lots {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Warnings returns how many consistency warnings were recorded.
func (l *Ledger) Warnings() int {
	return l.warnings
}

func clamp(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(Epsilon) {
		return decimal.Zero
	}
	return v
}

// Realized accumulates realized profit per spent asset plus the full profit
// timeline used for monthly buckets and the realized-gains tax policy.
type Realized struct {
	byAsset map[string]decimal.Decimal
	events  []domain.ProfitEvent
}

// NewRealized creates an empty realized profit ledger.
func NewRealized() *Realized {
	return &Realized{byAsset: make(map[string]decimal.Decimal)}
}

// Record adds profit (negative for fee losses) realized against asset at the
// given time.
func (r *Realized) Record(asset string, profit decimal.Decimal, at time.Time) {
	r.byAsset[asset] = r.byAsset[asset].Add(profit)
	r.events = append(r.events, domain.ProfitEvent{Time: at, Asset: asset, Profit: profit})
}

// ByAsset returns a copy of cumulative realized profit keyed by spent asset.
func (r *Realized) ByAsset() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.byAsset))
	for asset, profit := range r.byAsset {
		out[asset] = profit
	}
	return out
}

// Total returns the sum over all assets.
func (r *Realized) Total() decimal.Decimal {
	total := decimal.Zero
	for _, profit := range r.byAsset {
		total = total.Add(profit)
	}
	return total
}

// Events returns the profit timeline in replay order.
func (r *Realized) Events() []domain.ProfitEvent {
	return r.events
}
