package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	st := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadgen")

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("records", cfg.Records),
		logger.Int("learners", cfg.Learners),
		logger.Int("classes", cfg.Classes),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", seed),
		logger.Bool("amqp", cfg.AMQPURL != ""))

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return st, fmt.Errorf("service health check failed: %w", err)
	}
	before, err := client.Records(ctx)
	if err != nil {
		return st, fmt.Errorf("read status: %w", err)
	}
	if before > 0 {
		log.Warn(ctx, "service already holds records; verification assumes an empty store",
			logger.Int("records", before))
	}

	// Step 2: Generate records
	gen := NewGenerator(seed, cfg.Learners, cfg.Classes)
	records := gen.WithDuplicates(gen.Records(cfg.Records), cfg.Duplicates)
	st.Generated = len(records)

	// Step 3: Submit concurrently
	var sub Submitter = client
	if cfg.AMQPURL != "" {
		pub, err := NewPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return st, fmt.Errorf("amqp publisher: %w", err)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn(ctx, "closing publisher failed", logger.Error(err))
			}
		}()
		sub = pub
	}
	accepted := Submit(ctx, sub, records, cfg.Workers, st)

	// Step 4: Wait for persistence
	if err := waitForRecords(ctx, client, before+len(accepted), cfg.Settle); err != nil {
		return st, err
	}

	// Step 5: Verify with the weights the service is using now
	engine, err := client.Engine(ctx)
	if err != nil {
		return st, fmt.Errorf("read service policy: %w", err)
	}
	mismatches, err := Verify(ctx, client, engine, accepted)
	st.Mismatches = len(mismatches)

	if cfg.OutputFile != "" {
		if serr := saveRecords(cfg.OutputFile, records); serr != nil {
			log.Warn(ctx, "failed to save records", logger.Error(serr))
		} else {
			log.Info(ctx, "records saved to file", logger.String("filename", cfg.OutputFile))
		}
	}

	st.EndTime = time.Now()
	st.Duration = st.EndTime.Sub(st.StartTime)
	displayFinalStats(ctx, st)
	if err != nil {
		return st, fmt.Errorf("result verification failed: %w", err)
	}
	return st, nil
}

// waitForRecords polls /status until the store holds want records.
func waitForRecords(ctx context.Context, c *Client, want int, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()
	for {
		n, err := c.Records(ctx)
		if err == nil && n >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d persisted records (have %d): %w", want, n, ctx.Err())
		case <-ticker.C:
		}
	}
}

// saveRecords writes records as a JSON array, loadable as a seed fixture.
func saveRecords(filename string, records []model.ScoreRecord) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, st *Stats) {
	var acceptRate, perSecond float64
	if st.Submitted > 0 {
		acceptRate = float64(st.Accepted) / float64(st.Submitted) * percentageMultiplier
	}
	if st.Duration > 0 {
		perSecond = float64(st.Submitted) / st.Duration.Seconds()
	}

	logger.Get().Named("loadgen").Info(ctx, "final statistics",
		logger.Int("generated", st.Generated),
		logger.Int("submitted", st.Submitted),
		logger.Int("accepted", st.Accepted),
		logger.Int("duplicate", st.Duplicate),
		logger.Int("failed", st.Failed),
		logger.Int("mismatches", st.Mismatches),
		logger.Duration("duration", st.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("recordsPerSecond", perSecond))
}
