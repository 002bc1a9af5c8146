package source

import (
	"context"
	"sort"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/pkg/retrier"
	"go.uber.org/zap"
)

const (
	tradeFetchLimit      = 1000
	conversionLookback   = 30 * 24 * time.Hour
	withdrawApplyTimeFmt = "2006-01-02 15:04:05"
)

// BinanceSource fetches account history from the Binance REST API.
type BinanceSource struct {
	client *binance.Client
	logger *zap.Logger
	retr   *retrier.Retrier
}

// NewBinanceSource creates a Binance-backed raw event source.
func NewBinanceSource(client *binance.Client, logger *zap.Logger) *BinanceSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceSource{
		client: client,
		logger: logger,
		retr:   retrier.New(retrier.WithMaxRetries(2), retrier.WithInitialInterval(300*time.Millisecond)),
	}
}

// Deposits returns crypto deposit history plus fiat deposit orders, sorted by
// time.
func (s *BinanceSource) Deposits(ctx context.Context) []domain.Deposit {
	deposits := []domain.Deposit{}

	crypto, err := retrier.DoWithData(s.retr, ctx, func(ctx context.Context) ([]*binance.Deposit, error) {
		return s.client.NewListDepositsService().Do(ctx)
	})
	if err != nil {
		s.logger.Warn("failed to fetch crypto deposits", zap.Error(err))
	}
	for _, d := range crypto {
		amount, err := decimal.NewFromString(d.Amount)
		if err != nil {
			s.logger.Warn("skipping deposit with unparseable amount",
				zap.String("coin", d.Coin), zap.String("amount", d.Amount), zap.Error(err))
			continue
		}
		deposits = append(deposits, domain.Deposit{
			Asset:    d.Coin,
			Amount:   amount,
			Time:     time.UnixMilli(d.InsertTime),
			Category: "Crypto deposit",
		})
	}

	fiat, err := retrier.DoWithData(s.retr, ctx, func(ctx context.Context) (*binance.FiatDepositWithdrawHistory, error) {
		return s.client.NewFiatDepositWithdrawHistoryService().
			TransactionType(binance.TransactionTypeDeposit).
			Do(ctx)
	})
	if err != nil {
		s.logger.Warn("failed to fetch fiat deposits", zap.Error(err))
	}
	if fiat != nil {
		for _, o := range fiat.Data {
			amount, err := decimal.NewFromString(o.Amount)
			if err != nil {
				s.logger.Warn("skipping fiat deposit with unparseable amount",
					zap.String("currency", o.FiatCurrency), zap.String("amount", o.Amount), zap.Error(err))
				continue
			}
			category := o.Method
			if category == "" {
				category = "Fiat deposit"
			}
			deposits = append(deposits, domain.Deposit{
				Asset:    o.FiatCurrency,
				Amount:   amount,
				Time:     time.UnixMilli(o.CreateTime),
				Category: category,
			})
		}
	}

	sort.Slice(deposits, func(i, j int) bool { return deposits[i].Time.Before(deposits[j].Time) })
	return deposits
}

// Withdrawals returns crypto withdrawal history sorted by time.
func (s *BinanceSource) Withdrawals(ctx context.Context) []domain.Withdrawal {
	raw, err := retrier.DoWithData(s.retr, ctx, func(ctx context.Context) ([]*binance.Withdraw, error) {
		return s.client.NewListWithdrawsService().Do(ctx)
	})
	if err != nil {
		s.logger.Warn("failed to fetch withdrawals", zap.Error(err))
		return []domain.Withdrawal{}
	}

	withdrawals := make([]domain.Withdrawal, 0, len(raw))
	for _, w := range raw {
		amount, err := decimal.NewFromString(w.Amount)
		if err != nil {
			s.logger.Warn("skipping withdrawal with unparseable amount",
				zap.String("coin", w.Coin), zap.String("amount", w.Amount), zap.Error(err))
			continue
		}
		applied, err := time.Parse(withdrawApplyTimeFmt, w.ApplyTime)
		if err != nil {
			s.logger.Warn("withdrawal has unparseable apply time",
				zap.String("coin", w.Coin), zap.String("applyTime", w.ApplyTime), zap.Error(err))
		}
		withdrawals = append(withdrawals, domain.Withdrawal{
			Asset:  w.Coin,
			Amount: amount,
			Time:   applied,
		})
	}

	sort.Slice(withdrawals, func(i, j int) bool { return withdrawals[i].Time.Before(withdrawals[j].Time) })
	return withdrawals
}

// Trades returns the account's fills for the pair, sorted by time. The pair
// is attached to every trade so downstream code never has to slice the
// symbol string back apart.
func (s *BinanceSource) Trades(ctx context.Context, pair domain.Pair) []domain.Trade {
	symbol := pair.Symbol()

	raw, err := retrier.DoWithData(s.retr, ctx, func(ctx context.Context) ([]*binance.TradeV3, error) {
		return s.client.NewListTradesService().Symbol(symbol).Limit(tradeFetchLimit).Do(ctx)
	})
	if err != nil {
		s.logger.Warn("failed to fetch trades", zap.String("symbol", symbol), zap.Error(err))
		return []domain.Trade{}
	}

	trades := make([]domain.Trade, 0, len(raw))
	for _, t := range raw {
		qty, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			s.logger.Warn("skipping trade with unparseable quantity",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			s.logger.Warn("skipping trade with unparseable price",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		quoteQty, err := decimal.NewFromString(t.QuoteQuantity)
		if err != nil {
			s.logger.Warn("skipping trade with unparseable quote quantity",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		commission, err := decimal.NewFromString(t.Commission)
		if err != nil {
			commission = decimal.Zero
		}
		trades = append(trades, domain.Trade{
			Pair:            pair,
			Symbol:          symbol,
			IsBuyer:         t.IsBuyer,
			Qty:             qty,
			Price:           price,
			QuoteQty:        quoteQty,
			Commission:      commission,
			CommissionAsset: t.CommissionAsset,
			Time:            time.UnixMilli(t.Time),
		})
	}

	sort.Slice(trades, func(i, j int) bool { return trades[i].Time.Before(trades[j].Time) })
	return trades
}

// Conversions returns convert orders for the last 30 days, sorted by time.
func (s *BinanceSource) Conversions(ctx context.Context) []domain.Conversion {
	now := time.Now()

	history, err := retrier.DoWithData(s.retr, ctx, func(ctx context.Context) (*binance.ConvertTradeHistory, error) {
		return s.client.NewConvertTradeHistoryService().
			StartTime(now.Add(-conversionLookback).UnixMilli()).
			EndTime(now.UnixMilli()).
			Do(ctx)
	})
	if err != nil {
		s.logger.Warn("failed to fetch conversions", zap.Error(err))
		return []domain.Conversion{}
	}

	conversions := make([]domain.Conversion, 0, len(history.List))
	for _, c := range history.List {
		fromAmount, err := decimal.NewFromString(c.FromAmount)
		if err != nil {
			s.logger.Warn("skipping conversion with unparseable from amount",
				zap.String("fromAsset", c.FromAsset), zap.Error(err))
			continue
		}
		toAmount, err := decimal.NewFromString(c.ToAmount)
		if err != nil {
			s.logger.Warn("skipping conversion with unparseable to amount",
				zap.String("toAsset", c.ToAsset), zap.Error(err))
			continue
		}
		conversions = append(conversions, domain.Conversion{
			FromAsset:  c.FromAsset,
			ToAsset:    c.ToAsset,
			FromAmount: fromAmount,
			ToAmount:   toAmount,
			Time:       time.UnixMilli(c.CreateTime),
		})
	}

	sort.Slice(conversions, func(i, j int) bool { return conversions[i].Time.Before(conversions[j].Time) })
	return conversions
}
