// Package valuehistory persists one portfolio value point per sync in a WAL,
// backing the value chart, its trend line and the SSE stream.
package valuehistory

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultHistoryDir   = "./wal/value"
	historySegmentLimit = 1000
	historyMaxSegments  = 100
	valuePointKeyPrefix = "value_point_"
)

// WALStore is an append-only store of value points.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes the WAL under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultHistoryDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "history_",
		SegmentThreshold: historySegmentLimit,
		MaxSegments:      historyMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init value history WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes one value point. Callers must ensure point.SyncID is set.
func (s *WALStore) Append(point domain.ValuePoint) error {
	if s == nil || s.wal == nil {
		return errors.New("value history store is not initialized")
	}
	if point.SyncID == "" {
		return errors.New("value point sync id is required")
	}

	payload, err := json.Marshal(point)
	if err != nil {
		return errors.Wrap(err, "marshal value point")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, valuePointKeyPrefix+point.SyncID, payload)
}

// PointsAfter returns all value points written after the provided WAL index.
func (s *WALStore) PointsAfter(index uint64) ([]domain.ValuePointRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("value history store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.ValuePointRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, valuePointKeyPrefix) {
			// gaps happen after segment rotation, charts tolerate them
			continue
		}
		var point domain.ValuePoint
		if err := json.Unmarshal(payload, &point); err != nil {
			return nil, errors.Wrap(err, "decode value point")
		}
		records = append(records, domain.ValuePointRecord{Index: idx, Point: point})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("value history store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
