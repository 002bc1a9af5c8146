// Package pricer provides price oracles quoting assets in the configured
// quote currency.
package pricer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"go.uber.org/zap"
)

// ErrNoPrice is returned when the exchange has no price data for an asset at
// the requested time.
var ErrNoPrice = errors.New("no price data")

// Pricer quotes an asset in the configured quote currency.
type Pricer interface {
	// PriceAt returns the historical close of the 1-minute interval
	// containing t.
	PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error)
	// CurrentPrice returns the latest ticker price.
	CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}

// ValueAt converts amount of asset into the quote currency at time t. Base
// assets are worth their face amount. A failed historical lookup degrades to
// the current price, then to zero; each miss is logged, never fatal, so a
// single missing price does not poison the whole ledger rebuild.
func ValueAt(ctx context.Context, p Pricer, base domain.BaseAssets, asset string, amount decimal.Decimal, t time.Time, logger *zap.Logger) decimal.Decimal {
	if base.Contains(asset) {
		return amount
	}

	price, err := p.PriceAt(ctx, asset, t)
	if err == nil {
		return price.Mul(amount)
	}
	logger.Warn("historical price lookup failed, falling back to current price",
		zap.String("asset", asset), zap.Time("at", t), zap.Error(err))

	price, err = p.CurrentPrice(ctx, asset)
	if err == nil {
		return price.Mul(amount)
	}
	logger.Warn("current price lookup failed, valuing at zero",
		zap.String("asset", asset), zap.Error(err))

	return decimal.Zero
}
