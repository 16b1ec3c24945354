// Package worker persists queued score records.
package worker

import (
	"github.com/okian/gradestats/pkg/logger"
)

// FailureFunc observes records that could not be persisted.
type FailureFunc func(r Record, err error)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFailureHook is called for every record whose insert failed for a reason
// other than being a duplicate.
func WithFailureHook(fn FailureFunc) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onFailure = fn
		}
	}
}
