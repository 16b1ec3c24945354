package service

import (
	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/scoring"
	"github.com/okian/gradestats/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the record store. The default is an empty MemoryStore.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the record id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy sets the category weights.
func WithPolicy(p scoring.Policy) Option {
	return func(s *Service) {
		s.initial.policy = p
	}
}

// WithThreshold sets the pass threshold for statistics.
func WithThreshold(threshold float64) Option {
	return func(s *Service) {
		s.initial.threshold = threshold
	}
}

// WithStrict makes queries fail on malformed stored entries.
func WithStrict(strict bool) Option {
	return func(s *Service) {
		s.initial.strict = strict
	}
}
