// Package service wires the record store, the ingest pipeline and the
// aggregation engine into the queries served over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gradestats/internal/adapters/mq/queue"
	"github.com/okian/gradestats/internal/adapters/mq/worker"
	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/aggregate"
	"github.com/okian/gradestats/internal/domain/dedupe"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/scoring"
	"github.com/okian/gradestats/internal/domain/stats"
	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

// Settings are the tunables that can change while the service runs.
type Settings struct {
	Policy    scoring.Policy
	Threshold float64
	Strict    bool
}

type settings struct {
	policy    scoring.Policy
	threshold float64
	strict    bool
	engine    *aggregate.Engine
}

// Service answers grade queries and ingests new records.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int

	initial settings
	current atomic.Pointer[settings]

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Queries work immediately; Start enables ingestion.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  50_000,
		initial: settings{
			policy:    scoring.DefaultPolicy(),
			threshold: stats.DefaultThreshold,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.deduper = dedupe.NewRecordIDs(dedupe.WithMaxSize(s.dedupeSize))

	cur := s.initial
	cur.engine = s.newEngine(cur)
	s.current.Store(&cur)
	return s
}

func (s *Service) newEngine(cfg settings) *aggregate.Engine {
	opts := []aggregate.Option{
		aggregate.WithPolicy(cfg.policy),
		aggregate.WithSkipHook(s.onSkip),
	}
	if cfg.strict {
		opts = append(opts, aggregate.WithStrict())
	}
	return aggregate.New(opts...)
}

func (s *Service) onSkip(rec model.ScoreRecord, entry model.ScoreEntry, reason error) {
	kind := "malformed"
	if errors.Is(reason, scoring.ErrUnknownCategory) {
		kind = "unknown_category"
	}
	metrics.RecordEntrySkipped(kind)
	s.logger.Debug(context.Background(), "entry skipped",
		logger.String("record_id", rec.RecordID),
		logger.String("type", string(entry.Type)),
		logger.String("reason", kind),
	)
}

// Reconfigure swaps the weighting policy, threshold and strictness used by
// later queries. An invalid policy or threshold leaves the settings untouched.
func (s *Service) Reconfigure(ctx context.Context, next Settings) error {
	if err := next.Policy.Validate(); err != nil {
		return err
	}
	if math.IsNaN(next.Threshold) || math.IsInf(next.Threshold, 0) {
		return fmt.Errorf("invalid threshold %v", next.Threshold)
	}
	cfg := settings{policy: next.Policy, threshold: next.Threshold, strict: next.Strict}
	cfg.engine = s.newEngine(cfg)
	s.current.Store(&cfg)

	s.logger.Info(ctx, "settings updated",
		logger.Any("weights", next.Policy.Weights()),
		logger.Float64("threshold", next.Threshold),
		logger.Bool("strict", next.Strict),
	)
	return nil
}

// Settings returns the settings in effect.
func (s *Service) Settings() Settings {
	cur := s.current.Load()
	return Settings{Policy: cur.policy, Threshold: cur.threshold, Strict: cur.strict}
}

// Start creates the ingest queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting grade service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store,
		worker.WithFailureHook(func(r model.ScoreRecord, _ error) {
			s.deduper.Unrecord(runCtx, r.RecordID)
		}),
	)
	s.pool.Start(runCtx)

	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "grade service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the ingest queue and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	if s.started {
		s.logger.Info(ctx, "stopping grade service...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		if err := s.pool.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
		cancel()
		s.cancel()
		s.started = false
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store failed", logger.Error(err))
	}
	s.logger.Info(ctx, "grade service stopped")
}

// LearnerClassAverages returns the learner's composite per class, sorted by class.
func (s *Service) LearnerClassAverages(ctx context.Context, learnerID int) ([]model.ClassAverage, error) {
	start := time.Now()
	cur := s.current.Load()

	records, err := s.store.FetchRecords(ctx, repository.ByLearner(learnerID))
	if err != nil {
		metrics.RecordError("service", "fetch")
		return nil, fmt.Errorf("fetch records of learner %d: %w", learnerID, err)
	}
	rows, err := cur.engine.AveragePerClassForLearner(records, learnerID)
	if err != nil {
		metrics.RecordError("service", "aggregate")
		return nil, err
	}

	undefined := 0
	for _, r := range rows {
		if math.IsNaN(r.Avg) {
			undefined++
		}
	}
	metrics.RecordComposites(len(rows), undefined)
	metrics.RecordQuery(metrics.QueryLearnerClasses, sinceMs(start))
	return rows, nil
}

// GlobalStatistics reduces every learner's composite into pass-rate statistics.
func (s *Service) GlobalStatistics(ctx context.Context) (model.Statistics, error) {
	start := time.Now()
	st, err := s.statistics(ctx, repository.All(), nil)
	if err != nil {
		return model.Statistics{}, err
	}
	metrics.RecordQuery(metrics.QueryGlobalStats, sinceMs(start))
	return st, nil
}

// ClassStatistics is GlobalStatistics restricted to one class.
func (s *Service) ClassStatistics(ctx context.Context, classID string) (model.Statistics, error) {
	start := time.Now()
	st, err := s.statistics(ctx, repository.ByClass(classID), &classID)
	if err != nil {
		return model.Statistics{}, err
	}
	metrics.RecordQuery(metrics.QueryClassStats, sinceMs(start))
	return st, nil
}

func (s *Service) statistics(ctx context.Context, f repository.Filter, classID *string) (model.Statistics, error) {
	cur := s.current.Load()

	records, err := s.store.FetchRecords(ctx, f)
	if err != nil {
		metrics.RecordError("service", "fetch")
		return model.Statistics{}, fmt.Errorf("fetch records (%s): %w", f, err)
	}
	rows, err := cur.engine.AveragePerLearner(records, classID)
	if err != nil {
		metrics.RecordError("service", "aggregate")
		return model.Statistics{}, err
	}

	composites := aggregate.Composites(rows)
	st := stats.Compute(composites, stats.WithThreshold(cur.threshold))
	undefined := 0
	for _, c := range composites {
		if math.IsNaN(c) {
			undefined++
		}
	}
	metrics.RecordComposites(len(composites), undefined)
	return st, nil
}

// Ingest validates r and queues it for persistence. Records seen recently are
// acknowledged as duplicates without being queued again.
func (s *Service) Ingest(ctx context.Context, r model.ScoreRecord) (model.Receipt, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return model.Receipt{}, fmt.Errorf("%w: %w", model.ErrUnavailable, ErrNotStarted)
	}

	if err := r.Validate(); err != nil {
		return model.Receipt{}, err
	}
	for i, e := range r.Scores {
		if err := e.Validate(); err != nil {
			return model.Receipt{}, fmt.Errorf("scores[%d]: %w", i, err)
		}
	}
	if r.RecordID == "" {
		r.RecordID = uuid.NewString()
	}

	if s.deduper.SeenAndRecord(ctx, r.RecordID) {
		metrics.RecordDuplicate()
		return model.Receipt{RecordID: r.RecordID, Duplicate: true}, nil
	}
	if err := q.Enqueue(ctx, r); err != nil {
		s.deduper.Unrecord(ctx, r.RecordID)
		return model.Receipt{}, fmt.Errorf("%w: %w", model.ErrBackpressure, err)
	}
	return model.Receipt{RecordID: r.RecordID}, nil
}

// GetStats returns service status for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := s.current.Load()
	weights := make(map[string]float64, 3)
	for c, w := range cur.policy.Weights() {
		weights[string(c)] = w
	}
	out := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"dedupeLen":   s.deduper.Size(),
		"threshold":   cur.threshold,
		"strict":      cur.strict,
		"weights":     weights,
	}
	if s.started {
		n := s.queue.Len()
		out["queueLength"] = n
		metrics.UpdateQueueSize(n)
	}
	if n, err := s.store.Count(ctx); err == nil {
		out["records"] = n
		metrics.UpdateStoreRecords(n)
	} else {
		s.logger.Warn(ctx, "count failed", logger.Error(err))
	}
	return out
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
