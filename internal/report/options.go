package report

import "github.com/okian/gradestats/internal/domain/aggregate"

// Option configures a Reporter.
type Option func(*Reporter)

// WithEngine sets the aggregation engine used to compute composites.
func WithEngine(e *aggregate.Engine) Option {
	return func(r *Reporter) {
		if e != nil {
			r.engine = e
		}
	}
}

// WithThreshold sets the pass threshold shown in statistics tables.
func WithThreshold(t float64) Option {
	return func(r *Reporter) { r.threshold = t }
}
