// Package valuation snapshots current holdings against live prices.
package valuation

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/pricer"
	"github.com/vadiminshakov/folio/internal/services/replay"
	"go.uber.org/zap"
)

const monthKeyLayout = "2006-01"

// Builder turns a replay result into a portfolio snapshot.
type Builder struct {
	base   domain.BaseAssets
	oracle pricer.Pricer
	logger *zap.Logger
}

// New creates a snapshot builder valuing non-base holdings with the oracle.
func New(base domain.BaseAssets, oracle pricer.Pricer, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{base: base, oracle: oracle, logger: logger}
}

// Build values every held asset at the current price (base assets at 1) and
// derives the headline figures. The global unrealized P&L is the reconciling
// identity currentValue - investedCapital - realizedPL, NOT the sum of the
// per-position unrealized figures: the two net rounding and fee leakage
// differently and are expected to diverge slightly.
func (b *Builder) Build(ctx context.Context, res *replay.Result, now time.Time) *domain.PortfolioSnapshot {
	snap := &domain.PortfolioSnapshot{
		SyncedAt:        now,
		InvestedCapital: res.InvestedCapital,
		OpenPositions:   []domain.OpenPosition{},
		ClosedPositions: []domain.ClosedPosition{},
		Distribution:    []domain.DistributionSlice{},
	}

	totalValue := decimal.Zero
	for _, asset := range res.Holdings.Assets() {
		lot := res.Holdings.Lot(asset)

		if b.base.Contains(asset) {
			if lot.Quantity.IsPositive() {
				totalValue = totalValue.Add(lot.Quantity)
				snap.Distribution = append(snap.Distribution, domain.DistributionSlice{
					Asset: asset,
					Value: lot.Quantity,
				})
			}
			continue
		}

		if !lot.Quantity.IsPositive() {
			if profit, ok := res.Realized[asset]; ok && !profit.IsZero() {
				snap.ClosedPositions = append(snap.ClosedPositions, domain.ClosedPosition{
					Asset:      asset,
					RealizedPL: profit,
				})
			}
			continue
		}

		price, err := b.oracle.CurrentPrice(ctx, asset)
		if err != nil {
			b.logger.Warn("current price unavailable, valuing position at zero",
				zap.String("asset", asset), zap.Error(err))
			price = decimal.Zero
		}

		value := lot.Quantity.Mul(price)
		totalValue = totalValue.Add(value)
		snap.OpenPositions = append(snap.OpenPositions, domain.OpenPosition{
			Asset:        asset,
			Quantity:     lot.Quantity,
			AvgPrice:     res.Holdings.AverageCost(asset),
			CurrentPrice: price,
			Value:        value,
			UnrealizedPL: value.Sub(lot.TotalCost),
		})
		snap.Distribution = append(snap.Distribution, domain.DistributionSlice{
			Asset: asset,
			Value: value,
		})
	}

	realizedTotal := decimal.Zero
	for _, profit := range res.Realized {
		realizedTotal = realizedTotal.Add(profit)
	}

	snap.CurrentValue = totalValue
	snap.RealizedPL = realizedTotal
	snap.UnrealizedPL = totalValue.Sub(res.InvestedCapital).Sub(realizedTotal)
	snap.MonthlyProfits = MonthlyProfits(res.ProfitEvents, now)

	return snap
}

// MonthlyProfits buckets the realized profit timeline by calendar month and
// fills the gaps with zero months from the first event through now, so charts
// render a continuous series.
func MonthlyProfits(events []domain.ProfitEvent, now time.Time) []domain.MonthlyProfit {
	if len(events) == 0 {
		return []domain.MonthlyProfit{}
	}

	buckets := make(map[string]decimal.Decimal)
	first := events[0].Time
	for _, ev := range events {
		if ev.Time.Before(first) {
			first = ev.Time
		}
		key := ev.Time.Format(monthKeyLayout)
		buckets[key] = buckets[key].Add(ev.Profit)
	}

	cursor := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(end) {
		key := cursor.Format(monthKeyLayout)
		if _, ok := buckets[key]; !ok {
			buckets[key] = decimal.Zero
		}
		cursor = cursor.AddDate(0, 1, 0)
	}

	months := make([]string, 0, len(buckets))
	for key := range buckets {
		months = append(months, key)
	}
	sort.Strings(months)

	out := make([]domain.MonthlyProfit, 0, len(months))
	for _, key := range months {
		out = append(out, domain.MonthlyProfit{Month: key, Profit: buckets[key]})
	}
	return out
}
