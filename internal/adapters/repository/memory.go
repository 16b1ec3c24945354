package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/metrics"
)

// MemoryStore keeps records in insertion order behind a RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.ScoreRecord
	ids     map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{ids: make(map[string]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchRecords returns copies of the matching records.
func (s *MemoryStore) FetchRecords(ctx context.Context, f Filter) ([]model.ScoreRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("fetch", float64(time.Since(start).Microseconds())/1000.0)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScoreRecord, 0, len(s.records))
	for i, r := range s.records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("fetch %s: %w", f, err)
			}
		}
		if f.Match(r) {
			r.Scores = slices.Clone(r.Scores)
			out = append(out, r)
		}
	}
	return out, nil
}

// Insert appends r.
func (s *MemoryStore) Insert(ctx context.Context, r model.ScoreRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := s.insert(r)
	metrics.RecordStoreLatency("insert", float64(time.Since(start).Microseconds())/1000.0)
	return err
}

func (s *MemoryStore) insert(r model.ScoreRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	ensureID(&r)
	r.Scores = slices.Clone(r.Scores)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[r.RecordID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.RecordID)
	}
	s.ids[r.RecordID] = struct{}{}
	s.records = append(s.records, r)
	return nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
