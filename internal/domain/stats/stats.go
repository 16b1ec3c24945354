// Package stats derives pass-rate statistics from composite averages.
package stats

import (
	"math"

	"github.com/okian/gradestats/internal/domain/model"
)

// DefaultThreshold is the score a composite must exceed to count as passing.
const DefaultThreshold = 70.0

const percentScale = 100

// Option applies a configuration option to a computation.
type Option func(*config)

type config struct {
	threshold        float64
	excludeUndefined bool
}

// WithThreshold overrides the pass threshold.
func WithThreshold(threshold float64) Option {
	return func(c *config) {
		if !math.IsNaN(threshold) {
			c.threshold = threshold
		}
	}
}

// ExcludeUndefined drops NaN composites from Total. By default they are
// counted in Total and never in AboveThreshold.
func ExcludeUndefined() Option {
	return func(c *config) {
		c.excludeUndefined = true
	}
}

// Compute reduces averages to a Statistics value. An empty input yields all
// zeros; Percentage is never the result of a division by zero.
func Compute(averages []float64, opts ...Option) model.Statistics {
	cfg := config{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := model.Statistics{Threshold: cfg.threshold}
	for _, avg := range averages {
		if math.IsNaN(avg) {
			if !cfg.excludeUndefined {
				s.Total++
			}
			continue
		}
		s.Total++
		if avg > cfg.threshold {
			s.AboveThreshold++
		}
	}
	if s.Total > 0 {
		s.Percentage = float64(s.AboveThreshold) / float64(s.Total) * percentScale
	}
	return s
}
