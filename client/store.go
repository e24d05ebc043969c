package client

import (
	"sync/atomic"

	"github.com/meghashyamc/driveindex/db"
)

// IndexStore holds the snapshot the client searches. Snapshots are replaced
// wholesale, so readers observe either the previous or the next one.
type IndexStore struct {
	records atomic.Pointer[[]db.FileRecord]
}

func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// Load returns the current snapshot. It must not be modified.
func (s *IndexStore) Load() []db.FileRecord {
	if records := s.records.Load(); records != nil {
		return *records
	}
	return []db.FileRecord{}
}

// Replace stores a copy of records as the current snapshot.
func (s *IndexStore) Replace(records []db.FileRecord) {
	snapshot := make([]db.FileRecord, len(records))
	copy(snapshot, records)
	s.records.Store(&snapshot)
}

func (s *IndexStore) Len() int {
	return len(s.Load())
}

// Loaded reports whether a snapshot was ever stored, even an empty one.
func (s *IndexStore) Loaded() bool {
	return s.records.Load() != nil
}
