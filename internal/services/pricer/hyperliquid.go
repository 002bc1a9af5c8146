package pricer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidPricer quotes assets from the Hyperliquid public Info API.
// Hyperliquid mids are USD-quoted, so this oracle is only meaningful when the
// configured quote currency is a dollar stablecoin.
type HyperliquidPricer struct {
	info *hyperliquid.Info
}

// NewHyperliquidPricer creates a Hyperliquid-backed price oracle.
func NewHyperliquidPricer(info *hyperliquid.Info) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

// PriceAt returns the close of the 1-minute candle containing t.
func (p *HyperliquidPricer) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Zero, errors.New("hyperliquid info client is nil")
	}

	coin := strings.ToUpper(asset)
	start := t.UnixMilli()
	end := t.Add(time.Minute).UnixMilli()

	candles, err := p.info.CandlesSnapshot(ctx, coin, "1m", start, end)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch hyperliquid candles for %s", coin)
	}
	if len(candles) == 0 {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "no hyperliquid candle for %s at %d", coin, start)
	}

	return decimal.NewFromString(candles[0].Close)
}

// CurrentPrice returns the latest mid price.
func (p *HyperliquidPricer) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Zero, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	mid, ok := mids[strings.ToUpper(asset)]
	if !ok || mid == "" {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "hyperliquid API returned empty mid price for %s", asset)
	}
	return decimal.NewFromString(mid)
}
