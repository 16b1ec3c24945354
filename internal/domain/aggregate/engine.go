// Package aggregate groups score records into per-subject buckets and reduces
// each bucket to a composite average.
//
// The engine is stateless. It materialises the whole record set before
// grouping because a subject's category coverage is only known once all of
// its entries have been seen.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/scoring"
)

// SkipFunc observes entries excluded from category grouping.
type SkipFunc func(rec model.ScoreRecord, entry model.ScoreEntry, reason error)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPolicy sets the weighting policy used for composites.
func WithPolicy(p scoring.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithStrict makes malformed entries abort the computation instead of being
// skipped.
func WithStrict() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// WithSkipHook registers fn to be called for every skipped entry.
func WithSkipHook(fn SkipFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.onSkip = fn
		}
	}
}

// Engine computes composite averages over record sets. It is safe for
// concurrent use.
type Engine struct {
	policy scoring.Policy
	strict bool
	onSkip SkipFunc
}

// New creates an Engine with the default policy.
func New(opts ...Option) *Engine {
	e := &Engine{
		policy: scoring.DefaultPolicy(),
		onSkip: func(model.ScoreRecord, model.ScoreEntry, error) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the weighting policy in use.
func (e *Engine) Policy() scoring.Policy {
	return e.policy
}

// AveragePerClassForLearner returns one composite per class the learner has
// scores in. No matching records yields an empty result.
func (e *Engine) AveragePerClassForLearner(records []model.ScoreRecord, learnerID int) ([]model.ClassAverage, error) {
	buckets, keys, err := group(e, records,
		func(r model.ScoreRecord) bool { return r.LearnerID == learnerID },
		func(r model.ScoreRecord) string { return r.ClassID },
	)
	if err != nil {
		return nil, err
	}

	out := make([]model.ClassAverage, 0, len(keys))
	for _, classID := range keys {
		out = append(out, model.ClassAverage{
			ClassID: classID,
			Avg:     e.policy.Composite(buckets[classID]),
		})
	}
	return out, nil
}

// AveragePerLearner returns one composite per learner. When classID is not
// nil only records of that class are considered.
func (e *Engine) AveragePerLearner(records []model.ScoreRecord, classID *string) ([]model.LearnerAverage, error) {
	include := func(model.ScoreRecord) bool { return true }
	if classID != nil {
		want := *classID
		include = func(r model.ScoreRecord) bool { return r.ClassID == want }
	}

	buckets, keys, err := group(e, records, include,
		func(r model.ScoreRecord) int { return r.LearnerID },
	)
	if err != nil {
		return nil, err
	}

	out := make([]model.LearnerAverage, 0, len(keys))
	for _, learnerID := range keys {
		out = append(out, model.LearnerAverage{
			LearnerID: learnerID,
			Avg:       e.policy.Composite(buckets[learnerID]),
		})
	}
	return out, nil
}

// Composites extracts the average values of learner rows.
func Composites(rows []model.LearnerAverage) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Avg
	}
	return out
}

// group flattens matching records into per-key entry buckets. A key gets a
// bucket once any of its records carries an entry, even one that is later
// skipped. Keys are returned in ascending order.
func group[K cmp.Ordered](
	e *Engine,
	records []model.ScoreRecord,
	include func(model.ScoreRecord) bool,
	key func(model.ScoreRecord) K,
) (map[K][]model.ScoreEntry, []K, error) {
	buckets := make(map[K][]model.ScoreEntry)
	for _, r := range records {
		if !include(r) || len(r.Scores) == 0 {
			continue
		}
		k := key(r)
		admitted, err := e.admit(r)
		if err != nil {
			return nil, nil, err
		}
		buckets[k] = append(buckets[k], admitted...)
	}

	keys := make([]K, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return buckets, keys, nil
}

// admit returns the entries of r that can take part in category grouping.
// The result is never nil so an all-skipped record still opens its bucket.
func (e *Engine) admit(r model.ScoreRecord) ([]model.ScoreEntry, error) {
	out := make([]model.ScoreEntry, 0, len(r.Scores))
	for _, entry := range r.Scores {
		if err := entry.Validate(); err != nil {
			if e.strict {
				return nil, fmt.Errorf("learner %d class %q: %w", r.LearnerID, r.ClassID, err)
			}
			e.onSkip(r, entry, err)
			continue
		}
		if !entry.Type.Known() {
			e.onSkip(r, entry, fmt.Errorf("%w: %q", scoring.ErrUnknownCategory, entry.Type))
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
