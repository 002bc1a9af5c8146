package tax

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/replay"
)

type fakePricer struct {
	historical map[string]decimal.Decimal
}

func (f *fakePricer) PriceAt(_ context.Context, asset string, _ time.Time) (decimal.Decimal, error) {
	if p, ok := f.historical[asset]; ok {
		return p, nil
	}
	return decimal.Zero, errors.New("no kline")
}

func (f *fakePricer) CurrentPrice(_ context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("no ticker")
}

var (
	testBase = domain.NewBaseAssets(domain.DefaultBaseAssets())
	flatRate = decimal.NewFromFloat(0.30)
)

func TestValidateYear(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	year, err := ValidateYear(2023, now)
	require.NoError(t, err)
	require.Equal(t, 2023, year)

	year, err = ValidateYear(2030, now)
	require.ErrorIs(t, err, ErrInvalidYear)
	require.Equal(t, 2024, year, "invalid input falls back to the current year")

	_, err = ValidateYear(1999, now)
	require.ErrorIs(t, err, ErrInvalidYear)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Policy("progressive"), flatRate, testBase, &fakePricer{}, nil)
	require.Error(t, err)

	_, err = New(PolicyRealizedGains, decimal.NewFromInt(2), testBase, &fakePricer{}, nil)
	require.Error(t, err)

	_, err = New(PolicyRealizedGains, flatRate, testBase, &fakePricer{}, nil)
	require.NoError(t, err)
}

func TestEstimateRealizedGains(t *testing.T) {
	e, err := New(PolicyRealizedGains, flatRate, testBase, &fakePricer{}, nil)
	require.NoError(t, err)

	res := &replay.Result{ProfitEvents: []domain.ProfitEvent{
		{Time: time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC), Asset: "BTC", Profit: decimal.NewFromInt(9999)},
		{Time: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Asset: "BTC", Profit: decimal.NewFromInt(800)},
		{Time: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), Asset: "ETH", Profit: decimal.NewFromInt(200)},
	}}

	report := e.Estimate(context.Background(), 2024, res, domain.RawEvents{})
	require.Equal(t, 2024, report.Year)
	require.Equal(t, string(PolicyRealizedGains), report.Policy)
	require.True(t, decimal.NewFromInt(1000).Equal(report.TaxableGain), "only the requested year counts")
	require.True(t, decimal.NewFromInt(300).Equal(report.EstimatedTax))
}

func TestEstimateNegativeGainsOweNothing(t *testing.T) {
	e, err := New(PolicyRealizedGains, flatRate, testBase, &fakePricer{}, nil)
	require.NoError(t, err)

	res := &replay.Result{ProfitEvents: []domain.ProfitEvent{
		{Time: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Asset: "BTC", Profit: decimal.NewFromInt(-500)},
	}}

	report := e.Estimate(context.Background(), 2024, res, domain.RawEvents{})
	require.True(t, report.TaxableGain.IsNegative())
	require.True(t, report.EstimatedTax.IsZero(), "losses never produce a negative tax bill")
}

func TestEstimateCapitalFlow(t *testing.T) {
	oracle := &fakePricer{historical: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(40000)}}
	e, err := New(PolicyCapitalFlow, flatRate, testBase, oracle, nil)
	require.NoError(t, err)

	raw := domain.RawEvents{
		Deposits: []domain.Deposit{
			{Asset: "USDC", Amount: decimal.NewFromInt(1000), Time: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
			// outside the year, ignored
			{Asset: "USDC", Amount: decimal.NewFromInt(5000), Time: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)},
		},
		Withdrawals: []domain.Withdrawal{
			{Asset: "USDC", Amount: decimal.NewFromInt(2000), Time: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)},
			{Asset: "BTC", Amount: decimal.NewFromFloat(0.1), Time: time.Date(2024, 8, 5, 0, 0, 0, 0, time.UTC)},
		},
	}

	report := e.Estimate(context.Background(), 2024, &replay.Result{}, raw)

	// withdrawals 2000 + 0.1*40000 minus deposits 1000
	require.True(t, decimal.NewFromInt(5000).Equal(report.TaxableGain), "got %s", report.TaxableGain)
	require.True(t, decimal.NewFromInt(1500).Equal(report.EstimatedTax))
}
