// Package snapshots persists the portfolio snapshot and the raw event list
// as two independent JSON documents, overwritten wholesale on every sync.
package snapshots

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	snapshotFileName  = "portfolio.json"
	rawEventsFileName = "raw_events.json"
)

// Store writes both documents under one data directory.
type Store struct {
	dir string
}

// NewStore creates the data directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return &Store{dir: dir}, nil
}

// SaveSnapshot overwrites the persisted portfolio snapshot.
func (s *Store) SaveSnapshot(snap *domain.PortfolioSnapshot) error {
	return s.save(snapshotFileName, snap)
}

// LoadSnapshot returns the persisted snapshot, or nil when none exists yet.
func (s *Store) LoadSnapshot() (*domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	ok, err := s.load(snapshotFileName, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// SaveRawEvents overwrites the persisted raw event list.
func (s *Store) SaveRawEvents(raw domain.RawEvents) error {
	return s.save(rawEventsFileName, raw)
}

// LoadRawEvents returns the persisted raw events, or nil when none exist yet.
func (s *Store) LoadRawEvents() (*domain.RawEvents, error) {
	var raw domain.RawEvents
	ok, err := s.load(rawEventsFileName, &raw)
	if err != nil || !ok {
		return nil, err
	}
	return &raw, nil
}

// save writes atomically via a temp file so a crash mid-write never leaves a
// truncated document behind.
func (s *Store) save(name string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrapf(err, "write %s temp file", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "persist %s", name)
	}
	return nil
}

func (s *Store) load(name string, v any) (bool, error) {
	payload, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "read %s", name)
	}
	if len(payload) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, errors.Wrapf(err, "decode %s", name)
	}
	return true, nil
}
