package scoring

import (
	"math"
	"sort"

	"github.com/okian/gradestats/internal/domain/model"
)

// Partition groups the scores of entries by known category. Entries with an
// unknown category or without a score are dropped.
func Partition(entries []model.ScoreEntry) map[model.Category][]float64 {
	groups := make(map[model.Category][]float64, len(model.Categories()))
	for _, e := range entries {
		if !e.Type.Known() || e.Score == nil {
			continue
		}
		groups[e.Type] = append(groups[e.Type], *e.Score)
	}
	return groups
}

// Composite returns the weighted sum of the per-category means of entries.
//
// The result is NaN unless every category has at least one entry: the mean
// of an empty category is NaN and NaN survives both the weighting and the
// sum, even for a zero weight. Callers rely on this all-or-nothing behaviour;
// do not turn it into a partial average over the categories present.
func (p Policy) Composite(entries []model.ScoreEntry) float64 {
	groups := Partition(entries)
	total := 0.0
	for _, c := range model.Categories() {
		total += p.weights[c] * Mean(groups[c])
	}
	return total
}

// Mean returns the arithmetic mean of xs, or NaN when xs is empty.
// Values are summed in ascending order so the result does not depend on
// input order.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	sum := 0.0
	for _, x := range sorted {
		sum += x
	}
	return sum / float64(len(sorted))
}
