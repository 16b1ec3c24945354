package repository

import "github.com/okian/gradestats/internal/domain/model"

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithRecords seeds the store. Duplicate ids keep the first occurrence.
func WithRecords(records []model.ScoreRecord) MemoryOption {
	return func(s *MemoryStore) {
		for _, r := range records {
			_ = s.insert(r)
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithMaxOpenConns caps the connection pool. In-memory SQLite needs 1 so every
// statement sees the same database.
func WithMaxOpenConns(n int) SQLOption {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithSkipSchema disables schema creation at open.
func WithSkipSchema() SQLOption {
	return func(s *SQLStore) {
		s.skipSchema = true
	}
}
