package pricer

import (
	"context"
	"time"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitPricer quotes assets using Bybit V5 spot market data.
type BybitPricer struct {
	client *bybit.Client
	quote  string
}

// NewBybitPricer creates a Bybit-backed price oracle.
func NewBybitPricer(client *bybit.Client, quote string) *BybitPricer {
	return &BybitPricer{client: client, quote: quote}
}

// PriceAt returns the close of the 1-minute kline containing t.
func (p *BybitPricer) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(asset + p.quote)
	start := t.UnixMilli()
	end := t.Add(time.Minute).UnixMilli()
	limit := 1

	result, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   symbol,
		Interval: bybit.Interval("1"),
		Start:    &start,
		End:      &end,
		Limit:    &limit,
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to fetch bybit kline for %s", symbol)
	}
	if len(result.Result.List) == 0 {
		return decimal.Decimal{}, errors.Wrapf(ErrNoPrice, "no bybit kline for %s at %d", symbol, start)
	}

	return decimal.NewFromString(result.Result.List[0].Close)
}

// CurrentPrice returns the latest ticker price.
func (p *BybitPricer) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(asset + p.quote)

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to fetch bybit ticker for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, errors.Wrapf(ErrNoPrice, "bybit API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}
