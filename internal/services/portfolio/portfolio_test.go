package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/tax"
	"github.com/vadiminshakov/folio/internal/storage/snapshots"
	"github.com/vadiminshakov/folio/internal/storage/valuehistory"
)

type fakeSource struct {
	deposits    []domain.Deposit
	withdrawals []domain.Withdrawal
	trades      map[string][]domain.Trade
	conversions []domain.Conversion

	tradeCalls []string
}

func (f *fakeSource) Deposits(context.Context) []domain.Deposit       { return f.deposits }
func (f *fakeSource) Withdrawals(context.Context) []domain.Withdrawal { return f.withdrawals }
func (f *fakeSource) Conversions(context.Context) []domain.Conversion { return f.conversions }

func (f *fakeSource) Trades(_ context.Context, pair domain.Pair) []domain.Trade {
	f.tradeCalls = append(f.tradeCalls, pair.Symbol())
	return f.trades[pair.Symbol()]
}

type fakePricer struct {
	prices map[string]decimal.Decimal
}

func (f *fakePricer) PriceAt(_ context.Context, asset string, _ time.Time) (decimal.Decimal, error) {
	return f.CurrentPrice(context.Background(), asset)
}

func (f *fakePricer) CurrentPrice(_ context.Context, asset string) (decimal.Decimal, error) {
	if p, ok := f.prices[asset]; ok {
		return p, nil
	}
	return decimal.Zero, errors.New("no price")
}

func newTestService(t *testing.T, src *fakeSource, oracle *fakePricer) *Service {
	t.Helper()

	base := domain.NewBaseAssets(domain.DefaultBaseAssets())
	store, err := snapshots.NewStore(t.TempDir())
	require.NoError(t, err)
	history, err := valuehistory.NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	estimator, err := tax.New(tax.PolicyRealizedGains, decimal.NewFromFloat(0.30), base, oracle, nil)
	require.NoError(t, err)

	return NewService(Deps{
		Source:  src,
		Oracle:  oracle,
		Store:   store,
		History: history,
	}, base, "USDC", estimator, 0, nil)
}

func TestSyncEndToEnd(t *testing.T) {
	year := time.Now().Year()
	day := func(d int) time.Time { return time.Date(year, 1, d, 0, 0, 0, 0, time.UTC) }

	src := &fakeSource{
		deposits: []domain.Deposit{
			{Asset: "USDC", Amount: decimal.NewFromInt(2000), Time: day(1)},
			{Asset: "BTC", Amount: decimal.NewFromFloat(0.05), Time: day(2)},
		},
		trades: map[string][]domain.Trade{
			"BTCUSDC": {
				{Pair: domain.Pair{From: "BTC", To: "USDC"}, IsBuyer: true,
					Qty: decimal.NewFromFloat(0.1), QuoteQty: decimal.NewFromInt(1000), Time: day(3)},
				{Pair: domain.Pair{From: "BTC", To: "USDC"}, IsBuyer: false,
					Qty: decimal.NewFromFloat(0.05), QuoteQty: decimal.NewFromInt(700), Time: day(4)},
			},
		},
	}
	oracle := &fakePricer{prices: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(12000)}}

	svc := newTestService(t, src, oracle)
	snap, err := svc.Sync(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, snap.SyncID)
	require.Equal(t, []string{"BTCUSDC"}, src.tradeCalls, "only deposited non-base assets are queried for fills")

	// the BTC deposit is priced at 12000 via the oracle
	require.True(t, decimal.NewFromInt(2600).Equal(snap.InvestedCapital), "got %s", snap.InvestedCapital)

	identity := snap.InvestedCapital.Add(snap.RealizedPL).Add(snap.UnrealizedPL)
	require.True(t, snap.CurrentValue.Equal(identity))

	require.Len(t, snap.OpenPositions, 1)
	require.Equal(t, "BTC", snap.OpenPositions[0].Asset)
	require.Equal(t, year, snap.Tax.Year)
}

func TestSyncPersistsAndCaches(t *testing.T) {
	year := time.Now().Year()
	src := &fakeSource{deposits: []domain.Deposit{
		{Asset: "USDC", Amount: decimal.NewFromInt(1000), Time: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	svc := newTestService(t, src, &fakePricer{})

	synced, err := svc.Sync(context.Background())
	require.NoError(t, err)

	require.Equal(t, synced.SyncID, svc.Snapshot().SyncID)
	require.Len(t, svc.RawEvents().Deposits, 1)

	persisted, err := svc.store.LoadSnapshot()
	require.NoError(t, err)
	require.Equal(t, synced.SyncID, persisted.SyncID)

	points, err := svc.history.PointsAfter(0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.Equal(t, synced.SyncID, points[0].Point.SyncID)
}

func TestSyncReplacesSnapshotWholesale(t *testing.T) {
	year := time.Now().Year()
	src := &fakeSource{deposits: []domain.Deposit{
		{Asset: "USDC", Amount: decimal.NewFromInt(1000), Time: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}
	svc := newTestService(t, src, &fakePricer{})

	first, err := svc.Sync(context.Background())
	require.NoError(t, err)

	src.deposits = append(src.deposits, domain.Deposit{
		Asset: "USDC", Amount: decimal.NewFromInt(500), Time: time.Date(year, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	second, err := svc.Sync(context.Background())
	require.NoError(t, err)

	require.NotEqual(t, first.SyncID, second.SyncID)
	require.True(t, decimal.NewFromInt(1500).Equal(second.InvestedCapital))
	require.Equal(t, second.SyncID, svc.Snapshot().SyncID)
}

func TestSnapshotBeforeAnySync(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, &fakePricer{})

	snap := svc.Snapshot()
	require.NotNil(t, snap)
	require.Empty(t, snap.SyncID)
	require.NotNil(t, snap.OpenPositions)
	require.True(t, snap.CurrentValue.IsZero())
}

func TestTaxFor(t *testing.T) {
	year := time.Now().Year()
	src := &fakeSource{
		deposits: []domain.Deposit{
			{Asset: "USDC", Amount: decimal.NewFromInt(1000), Time: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		trades: map[string][]domain.Trade{},
	}
	svc := newTestService(t, src, &fakePricer{})

	_, err := svc.TaxFor(context.Background(), year)
	require.Error(t, err, "no sync has run yet")

	_, err = svc.Sync(context.Background())
	require.NoError(t, err)

	report, err := svc.TaxFor(context.Background(), year)
	require.NoError(t, err)
	require.Equal(t, year, report.Year)

	report, err = svc.TaxFor(context.Background(), year+5)
	require.ErrorIs(t, err, tax.ErrInvalidYear)
	require.Equal(t, year, report.Year, "report falls back to the current year")
}
