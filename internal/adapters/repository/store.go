// Package repository stores score records and serves them to the aggregation
// engine.
package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/gradestats/internal/domain/model"
)

// Filter narrows FetchRecords. The zero value selects every record.
type Filter struct {
	LearnerID *int
	ClassID   *string
}

// All selects every record.
func All() Filter { return Filter{} }

// ByLearner selects the records of one learner.
func ByLearner(id int) Filter { return Filter{LearnerID: &id} }

// ByClass selects the records of one class.
func ByClass(id string) Filter { return Filter{ClassID: &id} }

// Match reports whether r passes the filter.
func (f Filter) Match(r model.ScoreRecord) bool {
	if f.LearnerID != nil && r.LearnerID != *f.LearnerID {
		return false
	}
	if f.ClassID != nil && r.ClassID != *f.ClassID {
		return false
	}
	return true
}

func (f Filter) String() string {
	switch {
	case f.LearnerID != nil && f.ClassID != nil:
		return fmt.Sprintf("learner=%d class=%s", *f.LearnerID, *f.ClassID)
	case f.LearnerID != nil:
		return "learner=" + strconv.Itoa(*f.LearnerID)
	case f.ClassID != nil:
		return "class=" + *f.ClassID
	}
	return "all"
}

// Source yields score records. A cancelled context returns an error or a
// shorter set.
type Source interface {
	FetchRecords(ctx context.Context, f Filter) ([]model.ScoreRecord, error)
}

// Store is a Source that also accepts new records.
type Store interface {
	Source
	// Insert persists r. It returns ErrDuplicate when r.RecordID is already stored.
	// Records without an id get a generated one.
	Insert(ctx context.Context, r model.ScoreRecord) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
	Close() error
}

func ensureID(r *model.ScoreRecord) {
	if r.RecordID == "" {
		r.RecordID = uuid.NewString()
	}
}
