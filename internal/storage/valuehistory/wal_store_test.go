package valuehistory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/folio/internal/domain"
)

func newTestStore(t *testing.T) *WALStore {
	t.Helper()
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func point(syncID string, value int64) domain.ValuePoint {
	return domain.ValuePoint{
		Timestamp: time.Now().UTC(),
		SyncID:    syncID,
		Value:     decimal.NewFromInt(value),
	}
}

func TestAppendAndPointsAfter(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append(point("sync-1", 1000)))
	require.NoError(t, store.Append(point("sync-2", 1100)))
	require.NoError(t, store.Append(point("sync-3", 1050)))

	records, err := store.PointsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "sync-1", records[0].Point.SyncID)
	require.True(t, decimal.NewFromInt(1050).Equal(records[2].Point.Value))

	// resume from the middle like an SSE client reconnecting
	records, err = store.PointsAfter(records[1].Index)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "sync-3", records[0].Point.SyncID)
}

func TestPointsAfterTip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(point("sync-1", 1000)))

	records, err := store.PointsAfter(store.CurrentIndex())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestPointsSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(point("sync-1", 1000)))
	require.NoError(t, store.Append(point("sync-2", 1100)))
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	records, err := reopened.PointsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "sync-1", records[0].Point.SyncID)
	require.True(t, decimal.NewFromInt(1100).Equal(records[1].Point.Value))
}

func TestAppendRequiresSyncID(t *testing.T) {
	store := newTestStore(t)
	err := store.Append(domain.ValuePoint{Value: decimal.NewFromInt(1)})
	require.Error(t, err)
}
