package pricer

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/pkg/retrier"
)

// BinancePricer quotes assets against the configured quote currency using
// Binance spot market data.
type BinancePricer struct {
	client *binance.Client
	quote  string
	retr   *retrier.Retrier
}

// NewBinancePricer creates a Binance-backed price oracle.
func NewBinancePricer(client *binance.Client, quote string) *BinancePricer {
	return &BinancePricer{
		client: client,
		quote:  quote,
		retr:   retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(200*time.Millisecond)),
	}
}

// PriceAt returns the close of the 1-minute kline containing t.
func (p *BinancePricer) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	symbol := asset + p.quote
	start := t.UnixMilli()

	klines, err := retrier.DoWithData(p.retr, ctx, func(ctx context.Context) ([]*binance.Kline, error) {
		return p.client.NewKlinesService().
			Symbol(symbol).
			Interval("1m").
			StartTime(start).
			EndTime(start + time.Minute.Milliseconds()).
			Limit(1).
			Do(ctx)
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to fetch kline for %s", symbol)
	}
	if len(klines) == 0 {
		return decimal.Decimal{}, errors.Wrapf(ErrNoPrice, "no kline for %s at %d", symbol, start)
	}

	price, err := decimal.NewFromString(klines[0].Close)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to parse close price for %s", symbol)
	}
	return price, nil
}

// CurrentPrice returns the latest ticker price.
func (p *BinancePricer) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	symbol := asset + p.quote

	prices, err := retrier.DoWithData(p.retr, ctx, func(ctx context.Context) ([]*binance.SymbolPrice, error) {
		return p.client.NewListPricesService().Symbol(symbol).Do(ctx)
	})
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to fetch ticker for %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, errors.Wrapf(ErrNoPrice, "binance API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(prices[0].Price)
}
