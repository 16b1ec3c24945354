// Package dedupe tracks which score record ids have already been ingested.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper records seen record ids to keep ingestion idempotent.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a record rejected downstream (e.g. queue
	// backpressure) can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// RecordIDs is a bounded Deduper. Once full, the oldest id is evicted; with
// a non-positive bound it grows without limit.
type RecordIDs struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	seen    map[string]*list.Element
}

// NewRecordIDs creates a deduper with configuration options.
func NewRecordIDs(opts ...Option) *RecordIDs {
	d := &RecordIDs{
		maxSize: defaultMaxSize,
		order:   list.New(),
		seen:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *RecordIDs) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushFront(id)
	return false
}

// Unrecord implements Deduper.
func (d *RecordIDs) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

// Size implements Deduper.
func (d *RecordIDs) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}

// evictOldest must be called with d.mu held.
func (d *RecordIDs) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(string))
}
