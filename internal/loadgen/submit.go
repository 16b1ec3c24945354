package loadgen

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/logger"
)

// Submit sends records through s with workers concurrent submitters and
// returns the records the service accepted, unique by record id.
func Submit(ctx context.Context, s Submitter, records []model.ScoreRecord, workers int, stats *Stats) []model.ScoreRecord {
	if workers < 1 {
		workers = 1
	}
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "submitting records", logger.Int("records", len(records)), logger.Int("workers", workers))

	var (
		submitted int64
		accepted  int64
		duplicate int64
		failed    int64
		lastLog   atomic.Int64

		mu   sync.Mutex
		kept = make(map[string]model.ScoreRecord, len(records))
	)

	ch := make(chan model.ScoreRecord, workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range ch {
				outcome, err := s.Submit(ctx, r)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case OutcomeAccepted:
					atomic.AddInt64(&accepted, 1)
					mu.Lock()
					kept[r.RecordID] = r
					mu.Unlock()
				case OutcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
					log.Debug(ctx, "submit failed", logger.String("recordID", r.RecordID), logger.Error(err))
				}

				now := time.Now().Unix()
				if prev := lastLog.Load(); now > prev && lastLog.CompareAndSwap(prev, now) {
					log.Info(ctx, "progress",
						logger.Int("submitted", int(atomic.LoadInt64(&submitted))),
						logger.Int("total", len(records)))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, r := range records {
			select {
			case <-ctx.Done():
				return
			case ch <- r:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted)
	stats.Accepted = int(accepted)
	stats.Duplicate = int(duplicate)
	stats.Failed = int(failed)
	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed))

	out := make([]model.ScoreRecord, 0, len(kept))
	for _, r := range records {
		if k, ok := kept[r.RecordID]; ok {
			out = append(out, k)
			delete(kept, r.RecordID)
		}
	}
	return out
}
