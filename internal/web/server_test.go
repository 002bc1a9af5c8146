package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/tax"
)

type fakePortfolio struct {
	snap    *domain.PortfolioSnapshot
	raw     *domain.RawEvents
	syncErr error

	taxReport domain.TaxReport
	taxErr    error
}

func (f *fakePortfolio) Sync(context.Context) (*domain.PortfolioSnapshot, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.snap, nil
}

func (f *fakePortfolio) Snapshot() *domain.PortfolioSnapshot { return f.snap }
func (f *fakePortfolio) RawEvents() *domain.RawEvents        { return f.raw }

func (f *fakePortfolio) TaxFor(_ context.Context, year int) (domain.TaxReport, error) {
	return f.taxReport, f.taxErr
}

type fakeHistory struct {
	records []domain.ValuePointRecord
}

func (f *fakeHistory) PointsAfter(index uint64) ([]domain.ValuePointRecord, error) {
	out := []domain.ValuePointRecord{}
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func testSnapshot() *domain.PortfolioSnapshot {
	return &domain.PortfolioSnapshot{
		SyncID:       "sync-1",
		CurrentValue: decimal.NewFromInt(2200),
		OpenPositions: []domain.OpenPosition{
			{Asset: "BTC", Quantity: decimal.NewFromFloat(0.1)},
		},
		Distribution:   []domain.DistributionSlice{{Asset: "BTC", Value: decimal.NewFromInt(1200)}},
		MonthlyProfits: []domain.MonthlyProfit{},
	}
}

func TestHandleSync(t *testing.T) {
	srv := NewServer(":0", "", &fakePortfolio{snap: testSnapshot()}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleSync(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "synchronized", body["status"])
	require.Equal(t, "sync-1", body["syncId"])
}

func TestHandleSyncRejectsGet(t *testing.T) {
	srv := NewServer(":0", "", &fakePortfolio{snap: testSnapshot()}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleSync(rec, httptest.NewRequest(http.MethodGet, "/api/sync", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSyncFailure(t *testing.T) {
	srv := NewServer(":0", "", &fakePortfolio{syncErr: errors.New("exchange down")}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleSync(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestReadHandlersRejectPost(t *testing.T) {
	srv := NewServer(":0", "", &fakePortfolio{snap: testSnapshot()}, &fakeHistory{}, nil)

	handlers := map[string]http.HandlerFunc{
		"/api/portfolio":    srv.handlePortfolio,
		"/api/transactions": srv.handleTransactions,
		"/api/stats":        srv.handleStats,
		"/api/taxes":        srv.handleTaxes,
	}
	for path, handler := range handlers {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, "POST %s must be rejected", path)
	}
}

func TestHandlePortfolio(t *testing.T) {
	srv := NewServer(":0", "", &fakePortfolio{snap: testSnapshot()}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handlePortfolio(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.PortfolioSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Equal(t, "sync-1", snap.SyncID)
	require.Len(t, snap.OpenPositions, 1)
}

func TestHandleStats(t *testing.T) {
	history := &fakeHistory{records: []domain.ValuePointRecord{
		{Index: 1, Point: domain.ValuePoint{SyncID: "a", Value: decimal.NewFromInt(1000)}},
		{Index: 2, Point: domain.ValuePoint{SyncID: "b", Value: decimal.NewFromInt(1100)}},
	}}
	srv := NewServer(":0", "", &fakePortfolio{snap: testSnapshot()}, history, nil)

	rec := httptest.NewRecorder()
	srv.handleStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "distribution")
	require.Contains(t, body, "monthlyProfits")
	require.Contains(t, body, "valueHistory")
	require.Contains(t, body, "valueTrend")

	var trend []decimal.Decimal
	require.NoError(t, json.Unmarshal(body["valueTrend"], &trend))
	require.Empty(t, trend, "two points are not enough for the trend period")
}

func TestHandleTaxes(t *testing.T) {
	report := domain.TaxReport{Policy: "realized_gains", Year: 2024, EstimatedTax: decimal.NewFromInt(300)}
	srv := NewServer(":0", "", &fakePortfolio{snap: testSnapshot(), taxReport: report}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleTaxes(rec, httptest.NewRequest(http.MethodGet, "/api/taxes?year=2024", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.TaxReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 2024, got.Year)
	require.True(t, decimal.NewFromInt(300).Equal(got.EstimatedTax))
}

func TestHandleTaxesInvalidYear(t *testing.T) {
	report := domain.TaxReport{Policy: "realized_gains", Year: 2025}
	srv := NewServer(":0", "", &fakePortfolio{
		snap:      testSnapshot(),
		taxReport: report,
		taxErr:    errors.Wrap(tax.ErrInvalidYear, "2090"),
	}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleTaxes(rec, httptest.NewRequest(http.MethodGet, "/api/taxes?year=2090", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "error")

	var fallback domain.TaxReport
	require.NoError(t, json.Unmarshal(body["taxes"], &fallback))
	require.Equal(t, 2025, fallback.Year, "the fallback report still ships with the error")
}

func TestHandleTaxesMalformedYear(t *testing.T) {
	srv := NewServer(":0", "", &fakePortfolio{snap: testSnapshot()}, nil, nil)

	rec := httptest.NewRecorder()
	srv.handleTaxes(rec, httptest.NewRequest(http.MethodGet, "/api/taxes?year=abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
