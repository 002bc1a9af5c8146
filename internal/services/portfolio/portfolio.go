// Package portfolio orchestrates one full synchronization: fetch raw events,
// normalize, replay, value, estimate tax, persist.
package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/normalize"
	"github.com/vadiminshakov/folio/internal/services/pricer"
	"github.com/vadiminshakov/folio/internal/services/replay"
	"github.com/vadiminshakov/folio/internal/services/source"
	"github.com/vadiminshakov/folio/internal/services/tax"
	"github.com/vadiminshakov/folio/internal/services/valuation"
	"github.com/vadiminshakov/folio/internal/storage/snapshots"
	"github.com/vadiminshakov/folio/internal/storage/valuehistory"
	"go.uber.org/zap"
)

// Service rebuilds the whole ledger from the complete raw event set on every
// Sync call. Concurrent Sync triggers are serialized: partial replays are not
// composable, so overlapping rebuilds must queue behind one another.
type Service struct {
	syncMu sync.Mutex

	source     source.Source
	oracle     pricer.Pricer
	normalizer *normalize.Normalizer
	replayer   *replay.Replayer
	builder    *valuation.Builder
	estimator  *tax.Estimator
	store      *snapshots.Store
	history    *valuehistory.WALStore
	base       domain.BaseAssets
	quote      string
	taxYear    int
	logger     *zap.Logger

	lastMu     sync.RWMutex
	lastSnap   *domain.PortfolioSnapshot
	lastRaw    *domain.RawEvents
	lastResult *replay.Result
}

// Deps bundles the collaborators of the portfolio service.
type Deps struct {
	Source  source.Source
	Oracle  pricer.Pricer
	Store   *snapshots.Store
	History *valuehistory.WALStore
}

// NewService wires the pipeline. taxYear 0 means "current year at sync time".
func NewService(deps Deps, base domain.BaseAssets, quote string, estimator *tax.Estimator, taxYear int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:     deps.Source,
		oracle:     deps.Oracle,
		normalizer: normalize.New(base, deps.Oracle, logger),
		replayer:   replay.New(base, logger),
		builder:    valuation.New(base, deps.Oracle, logger),
		estimator:  estimator,
		store:      deps.Store,
		history:    deps.History,
		base:       base,
		quote:      quote,
		taxYear:    taxYear,
		logger:     logger,
	}
}

// Sync performs one full synchronization and returns the fresh snapshot. The
// previous snapshot is replaced wholesale; nothing is updated incrementally.
func (s *Service) Sync(ctx context.Context) (*domain.PortfolioSnapshot, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	syncID := uuid.New().String()
	started := time.Now()
	logger := s.logger.With(zap.String("sync_id", syncID))
	logger.Info("synchronization started")

	raw := s.fetch(ctx, logger)
	events := s.normalizer.Normalize(ctx, raw)
	result := s.replayer.Replay(events)
	if result.Warnings > 0 {
		logger.Warn("replay finished with consistency warnings", zap.Int("warnings", result.Warnings))
	}

	snap := s.builder.Build(ctx, result, started)
	snap.SyncID = syncID
	snap.Tax = s.estimator.Estimate(ctx, s.resolveYear(started), result, raw)

	if err := s.store.SaveSnapshot(snap); err != nil {
		return nil, errors.Wrap(err, "persist snapshot")
	}
	if err := s.store.SaveRawEvents(raw); err != nil {
		return nil, errors.Wrap(err, "persist raw events")
	}

	if s.history != nil {
		point := domain.ValuePoint{
			Timestamp:    started,
			SyncID:       syncID,
			Value:        snap.CurrentValue,
			Invested:     snap.InvestedCapital,
			RealizedPL:   snap.RealizedPL,
			UnrealizedPL: snap.UnrealizedPL,
		}
		if err := s.history.Append(point); err != nil {
			// history is a chart aid, a failed append must not void the sync
			logger.Warn("failed to append value point", zap.Error(err))
		}
	}

	s.lastMu.Lock()
	s.lastSnap = snap
	s.lastRaw = &raw
	s.lastResult = result
	s.lastMu.Unlock()

	logger.Info("synchronization finished",
		zap.Duration("took", time.Since(started)),
		zap.String("value", snap.CurrentValue.String()),
		zap.Int("open_positions", len(snap.OpenPositions)))
	return snap, nil
}

// fetch pulls the four raw streams and the trades of every tracked pair.
// Each stream degrades to an empty list on failure inside the source.
func (s *Service) fetch(ctx context.Context, logger *zap.Logger) domain.RawEvents {
	raw := domain.RawEvents{
		Deposits:    s.source.Deposits(ctx),
		Withdrawals: s.source.Withdrawals(ctx),
		Conversions: s.source.Conversions(ctx),
		Trades:      []domain.Trade{},
	}

	pairs := s.trackedPairs(raw)
	for _, pair := range pairs {
		raw.Trades = append(raw.Trades, s.source.Trades(ctx, pair)...)
	}

	logger.Info("raw events fetched",
		zap.Int("deposits", len(raw.Deposits)),
		zap.Int("withdrawals", len(raw.Withdrawals)),
		zap.Int("trades", len(raw.Trades)),
		zap.Int("conversions", len(raw.Conversions)),
		zap.Int("tracked_pairs", len(pairs)))
	return raw
}

// trackedPairs derives the pairs worth querying for fills: every non-base
// asset seen in deposits or conversions, traded against the quote currency.
func (s *Service) trackedPairs(raw domain.RawEvents) []domain.Pair {
	seen := make(map[string]struct{})
	assets := []string{}
	note := func(asset string) {
		if asset == "" || s.base.Contains(asset) {
			return
		}
		if _, ok := seen[asset]; ok {
			return
		}
		seen[asset] = struct{}{}
		assets = append(assets, asset)
	}

	for _, d := range raw.Deposits {
		note(d.Asset)
	}
	for _, c := range raw.Conversions {
		note(c.FromAsset)
		note(c.ToAsset)
	}

	pairs := make([]domain.Pair, 0, len(assets))
	for _, asset := range assets {
		pairs = append(pairs, domain.Pair{From: asset, To: s.quote})
	}
	return pairs
}

func (s *Service) resolveYear(now time.Time) int {
	if s.taxYear == 0 {
		return now.Year()
	}
	return s.taxYear
}

// Snapshot returns the last computed snapshot, falling back to the persisted
// document before any sync, and an empty default when neither exists.
func (s *Service) Snapshot() *domain.PortfolioSnapshot {
	s.lastMu.RLock()
	snap := s.lastSnap
	s.lastMu.RUnlock()
	if snap != nil {
		return snap
	}

	persisted, err := s.store.LoadSnapshot()
	if err != nil {
		s.logger.Warn("failed to load persisted snapshot", zap.Error(err))
	}
	if persisted != nil {
		return persisted
	}
	return &domain.PortfolioSnapshot{
		OpenPositions:   []domain.OpenPosition{},
		ClosedPositions: []domain.ClosedPosition{},
		Distribution:    []domain.DistributionSlice{},
		MonthlyProfits:  []domain.MonthlyProfit{},
	}
}

// RawEvents returns the last fetched raw events with the same fallbacks as
// Snapshot.
func (s *Service) RawEvents() *domain.RawEvents {
	s.lastMu.RLock()
	raw := s.lastRaw
	s.lastMu.RUnlock()
	if raw != nil {
		return raw
	}

	persisted, err := s.store.LoadRawEvents()
	if err != nil {
		s.logger.Warn("failed to load persisted raw events", zap.Error(err))
	}
	if persisted != nil {
		return persisted
	}
	return &domain.RawEvents{
		Deposits:    []domain.Deposit{},
		Withdrawals: []domain.Withdrawal{},
		Trades:      []domain.Trade{},
		Conversions: []domain.Conversion{},
	}
}

// TaxFor recomputes the tax report for the given year from the last replay.
// An invalid year is surfaced as a validation error while the report falls
// back to the current year, so the caller always gets a usable estimate.
func (s *Service) TaxFor(ctx context.Context, year int) (domain.TaxReport, error) {
	resolved, validationErr := tax.ValidateYear(year, time.Now())

	s.lastMu.RLock()
	result := s.lastResult
	raw := s.lastRaw
	s.lastMu.RUnlock()

	if result == nil {
		return domain.TaxReport{}, errors.New("no synchronization has completed yet")
	}

	report := s.estimator.Estimate(ctx, resolved, result, *raw)
	return report, validationErr
}
