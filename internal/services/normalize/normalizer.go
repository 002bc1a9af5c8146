// Package normalize converts raw deposit, withdrawal, trade and conversion
// records into canonical ledger events.
package normalize

import (
	"context"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/pricer"
	"go.uber.org/zap"
)

// Normalizer folds the four raw event streams into one list of canonical
// events. The output is chronologically unordered, the replayer sorts it.
type Normalizer struct {
	base   domain.BaseAssets
	oracle pricer.Pricer
	logger *zap.Logger
}

// New creates a normalizer pricing one-sided events with the given oracle.
func New(base domain.BaseAssets, oracle pricer.Pricer, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{base: base, oracle: oracle, logger: logger}
}

// Normalize produces one canonical event per raw event. Deposits and
// withdrawals become one-sided entries carrying their quote-currency value at
// event time (face amount for base assets, historical price otherwise, with
// the documented current-price and zero fallbacks).
func (n *Normalizer) Normalize(ctx context.Context, raw domain.RawEvents) []domain.CanonicalEvent {
	events := make([]domain.CanonicalEvent, 0,
		len(raw.Deposits)+len(raw.Withdrawals)+len(raw.Trades)+len(raw.Conversions))

	for _, d := range raw.Deposits {
		events = append(events, domain.CanonicalEvent{
			Time:          d.Time,
			Kind:          domain.EventDeposit,
			ToAsset:       d.Asset,
			ToAmount:      d.Amount,
			ExternalValue: pricer.ValueAt(ctx, n.oracle, n.base, d.Asset, d.Amount, d.Time, n.logger),
		})
	}

	for _, w := range raw.Withdrawals {
		events = append(events, domain.CanonicalEvent{
			Time:          w.Time,
			Kind:          domain.EventWithdrawal,
			FromAsset:     w.Asset,
			FromAmount:    w.Amount,
			ExternalValue: pricer.ValueAt(ctx, n.oracle, n.base, w.Asset, w.Amount, w.Time, n.logger),
		})
	}

	for _, t := range raw.Trades {
		events = append(events, n.normalizeTrade(t))
	}

	for _, c := range raw.Conversions {
		events = append(events, domain.CanonicalEvent{
			Time:       c.Time,
			Kind:       domain.EventExchange,
			FromAsset:  c.FromAsset,
			FromAmount: c.FromAmount,
			ToAsset:    c.ToAsset,
			ToAmount:   c.ToAmount,
		})
	}

	return events
}

// normalizeTrade maps a fill onto the uniform from/to shape. The buyer spends
// the quote asset and receives the base asset, the seller the reverse. A
// commission in the spent asset increases the spent amount, in the received
// asset it reduces the received amount, and in any third asset it becomes an
// auxiliary fee settled separately by the replayer.
func (n *Normalizer) normalizeTrade(t domain.Trade) domain.CanonicalEvent {
	ev := domain.CanonicalEvent{Time: t.Time, Kind: domain.EventExchange}

	if t.IsBuyer {
		ev.FromAsset = t.Pair.To
		ev.FromAmount = t.QuoteQty
		ev.ToAsset = t.Pair.From
		ev.ToAmount = t.Qty
	} else {
		ev.FromAsset = t.Pair.From
		ev.FromAmount = t.Qty
		ev.ToAsset = t.Pair.To
		ev.ToAmount = t.QuoteQty
	}

	if t.Commission.IsZero() || t.CommissionAsset == "" {
		return ev
	}

	switch t.CommissionAsset {
	case ev.FromAsset:
		ev.FromAmount = ev.FromAmount.Add(t.Commission)
	case ev.ToAsset:
		ev.ToAmount = ev.ToAmount.Sub(t.Commission)
	default:
		ev.Fee = &domain.Fee{Asset: t.CommissionAsset, Amount: t.Commission}
	}

	return ev
}
