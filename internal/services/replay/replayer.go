// Package replay rebuilds the lot ledger by applying canonical events in
// chronological order.
package replay

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/ledger"
	"go.uber.org/zap"
)

// Result is everything one full replay produces. Each synchronization builds
// a fresh Result from the complete event set, so replay is idempotent for
// identical inputs.
type Result struct {
	Holdings        *ledger.Ledger
	Realized        map[string]decimal.Decimal
	ProfitEvents    []domain.ProfitEvent
	InvestedCapital decimal.Decimal
	Warnings        int
}

// Replayer applies canonical events to a fresh lot ledger using average-cost
// accounting. Profit is realized exactly when the receiving asset is a base
// asset; everything else defers cost basis.
type Replayer struct {
	base   domain.BaseAssets
	logger *zap.Logger
}

// New creates a replayer for the configured base asset set.
func New(base domain.BaseAssets, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{base: base, logger: logger}
}

// Replay sorts events ascending by time (ties keep input order) and applies
// each one. The input slice is not modified.
func (r *Replayer) Replay(events []domain.CanonicalEvent) *Result {
	ordered := make([]domain.CanonicalEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Time.Before(ordered[j].Time)
	})

	holdings := ledger.New(r.logger)
	realized := ledger.NewRealized()
	invested := decimal.Zero

	for _, ev := range ordered {
		switch ev.Kind {
		case domain.EventDeposit:
			holdings.Add(ev.ToAsset, ev.ToAmount, ev.ExternalValue)
			invested = invested.Add(ev.ExternalValue)

		case domain.EventWithdrawal:
			holdings.Remove(ev.FromAsset, ev.FromAmount, ev.ExternalValue)
			invested = invested.Sub(ev.ExternalValue)

		case domain.EventExchange:
			r.applyExchange(holdings, realized, ev)
		}
	}

	return &Result{
		Holdings:        holdings,
		Realized:        realized.ByAsset(),
		ProfitEvents:    realized.Events(),
		InvestedCapital: invested,
		Warnings:        holdings.Warnings(),
	}
}

func (r *Replayer) applyExchange(holdings *ledger.Ledger, realized *ledger.Realized, ev domain.CanonicalEvent) {
	// Base assets are spent at face value, everything else at blended
	// average cost.
	costSpent := ev.FromAmount
	if !r.base.Contains(ev.FromAsset) {
		costSpent = holdings.AverageCost(ev.FromAsset).Mul(ev.FromAmount)
	}
	holdings.Remove(ev.FromAsset, ev.FromAmount, costSpent)

	if r.base.Contains(ev.ToAsset) {
		// Settling into the base currency locks the gain in. The base lot
		// absorbs the spent cost as its own basis so spending it later at
		// 1:1 does not double-count the gain.
		profit := ev.ToAmount.Sub(costSpent)
		realized.Record(ev.FromAsset, profit, ev.Time)
		holdings.Add(ev.ToAsset, ev.ToAmount, costSpent)
	} else {
		// Crypto-to-crypto: basis carries forward unchanged, nothing is
		// realized.
		holdings.Add(ev.ToAsset, ev.ToAmount, costSpent)
	}

	if ev.Fee != nil && ev.Fee.Asset != ev.FromAsset && ev.Fee.Asset != ev.ToAsset {
		// Commission in a third asset is an implicit extra disposal. It
		// reduces realized profit even though no sale occurred.
		costFee := holdings.AverageCost(ev.Fee.Asset).Mul(ev.Fee.Amount)
		holdings.Remove(ev.Fee.Asset, ev.Fee.Amount, costFee)
		realized.Record(ev.Fee.Asset, costFee.Neg(), ev.Time)
	}
}
