package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "github.com/lib/pq"              // driver: postgres
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/metrics"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

const defaultSQLiteDSN = "file:grades.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

// SQLStore keeps records in a "grades" table with the score list stored as JSON.
type SQLStore struct {
	db           *sql.DB
	driver       string
	maxOpenConns int
	skipSchema   bool
}

// OpenSQL opens a database, pings it and ensures the schema exists.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...SQLOption) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
	case DriverPgx, DriverPostgres:
		if dsn == "" {
			dsn = "postgres://localhost:5432/grades?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	s := &SQLStore{driver: driver}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s.db = db

	if !s.skipSchema {
		if _, err := db.ExecContext(ctx, schema(driver)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return s, nil
}

func schema(driver string) string {
	if driver == DriverSQLite {
		return schemaSQLite
	}
	return schemaPostgres
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS grades (
  id TEXT PRIMARY KEY,
  learner_id INTEGER NOT NULL,
  class_id TEXT NOT NULL,
  scores_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS grades_learner_idx ON grades (learner_id);
CREATE INDEX IF NOT EXISTS grades_class_idx ON grades (class_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS grades (
  id TEXT PRIMARY KEY,
  learner_id BIGINT NOT NULL,
  class_id TEXT NOT NULL,
  scores_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS grades_learner_idx ON grades (learner_id);
CREATE INDEX IF NOT EXISTS grades_class_idx ON grades (class_id);
`

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Insert stores r. A conflicting id yields ErrDuplicate.
func (s *SQLStore) Insert(ctx context.Context, r model.ScoreRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	ensureID(&r)
	scores := r.Scores
	if scores == nil {
		scores = []model.ScoreEntry{}
	}
	sj, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO grades (id,learner_id,class_id,scores_json,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`,
		r.RecordID, r.LearnerID, r.ClassID, string(sj), time.Now().UnixNano())
	metrics.RecordStoreLatency("insert", float64(time.Since(start).Microseconds())/1000.0)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.RecordID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.RecordID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.RecordID)
	}
	return nil
}

// FetchRecords returns matching records in insertion order.
func (s *SQLStore) FetchRecords(ctx context.Context, f Filter) ([]model.ScoreRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.LearnerID != nil {
		args = append(args, *f.LearnerID)
		where = append(where, fmt.Sprintf("learner_id=$%d", len(args)))
	}
	if f.ClassID != nil {
		args = append(args, *f.ClassID)
		where = append(where, fmt.Sprintf("class_id=$%d", len(args)))
	}
	q := `SELECT id,learner_id,class_id,scores_json FROM grades`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"

	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("fetch", float64(time.Since(start).Microseconds())/1000.0)
	}()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f, err)
	}
	defer rows.Close()

	out := []model.ScoreRecord{}
	for rows.Next() {
		var (
			r  model.ScoreRecord
			sj string
		)
		if err := rows.Scan(&r.RecordID, &r.LearnerID, &r.ClassID, &sj); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sj), &r.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of %s: %w", r.RecordID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f, err)
	}
	return out, nil
}

// Count returns the number of rows in grades.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }
