package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/gradestats/internal/domain/aggregate"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/internal/domain/stats"
	"github.com/okian/gradestats/internal/domain/types"
	"github.com/okian/gradestats/internal/report"
	"github.com/okian/gradestats/pkg/logger"
)

// ErrMismatch is returned when the service disagrees with the local computation.
var ErrMismatch = errors.New("statistics mismatch")

const percentTolerance = 1e-9

// StatsSource is the read side Verify compares against.
type StatsSource interface {
	GlobalStats(ctx context.Context) (types.Statistics, error)
	ClassStats(ctx context.Context, classID string) (types.Statistics, error)
}

// Mismatch describes one scope where the service and local results differ.
type Mismatch struct {
	Scope string
	Want  types.Statistics
	Got   types.Statistics
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want %+v, got %+v", m.Scope, m.Want, m.Got)
}

// Verify recomputes global and per-class statistics over records with e and
// compares them with src. The service's threshold is used for the local side.
func Verify(ctx context.Context, src StatsSource, e *aggregate.Engine, records []model.ScoreRecord) ([]Mismatch, error) {
	log := logger.Get().Named("loadgen")
	var out []Mismatch

	check := func(scope string, got types.Statistics, classID *string) error {
		rows, err := e.AveragePerLearner(records, classID)
		if err != nil {
			return fmt.Errorf("local %s: %w", scope, err)
		}
		want := types.FromStatistics(stats.Compute(aggregate.Composites(rows), stats.WithThreshold(got.Threshold)))
		if !sameStatistics(want, got) {
			out = append(out, Mismatch{Scope: scope, Want: want, Got: got})
			log.Warn(ctx, "statistics mismatch", logger.String("scope", scope),
				logger.Any("want", want), logger.Any("got", got))
		}
		return nil
	}

	global, err := src.GlobalStats(ctx)
	if err != nil {
		return nil, err
	}
	if err := check("all", global, nil); err != nil {
		return nil, err
	}
	for _, class := range report.Classes(records) {
		got, err := src.ClassStats(ctx, class)
		if err != nil {
			return nil, err
		}
		if err := check(class, got, &class); err != nil {
			return nil, err
		}
	}

	if len(out) > 0 {
		return out, fmt.Errorf("%w: %d scope(s)", ErrMismatch, len(out))
	}
	log.Info(ctx, "statistics verified", logger.Int("scopes", 1+len(report.Classes(records))))
	return nil, nil
}

func sameStatistics(a, b types.Statistics) bool {
	return a.Total == b.Total &&
		a.Above70 == b.Above70 &&
		math.Abs(a.PercAbove70-b.PercAbove70) <= percentTolerance &&
		a.Threshold == b.Threshold
}
