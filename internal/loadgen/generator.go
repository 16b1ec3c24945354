package loadgen

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/okian/gradestats/internal/domain/model"
)

// Score distribution bands.
const (
	bandFailing = iota
	bandAverage
	bandStrong
	bandElite
	bandCount
)

const (
	maxEntriesPerRecord = 4
	// chance in percent that a record leaves out one category entirely
	missingCategoryPercent = 10
)

// Generator produces reproducible random score records.
type Generator struct {
	rng      *rand.Rand
	learners int
	classes  int
}

// NewGenerator returns a generator spread over learners x classes.
func NewGenerator(seed int64, learners, classes int) *Generator {
	if learners < 1 {
		learners = 1
	}
	if classes < 1 {
		classes = 1
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // load data, not secrets
		learners: learners,
		classes:  classes,
	}
}

// Records generates n records with fresh record ids.
func (g *Generator) Records(n int) []model.ScoreRecord {
	out := make([]model.ScoreRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.record())
	}
	return out
}

// ClassID names the i-th generated class.
func ClassID(i int) string {
	return fmt.Sprintf("C%02d", i)
}

func (g *Generator) record() model.ScoreRecord {
	r := model.ScoreRecord{
		RecordID:  uuid.NewString(),
		LearnerID: 1 + g.rng.Intn(g.learners),
		ClassID:   ClassID(1 + g.rng.Intn(g.classes)),
	}

	cats := model.Categories()
	if g.rng.Intn(100) < missingCategoryPercent {
		skip := g.rng.Intn(len(cats))
		cats = append(cats[:skip:skip], cats[skip+1:]...)
	}
	band := g.rng.Intn(bandCount)
	for _, c := range cats {
		n := 1 + g.rng.Intn(maxEntriesPerRecord)
		for j := 0; j < n; j++ {
			r.Scores = append(r.Scores, model.Entry(c, g.score(band)))
		}
	}
	return r
}

// score draws a score in [0,100] from the band, rounded to one decimal.
func (g *Generator) score(band int) float64 {
	var lo, span float64
	switch band {
	case bandFailing:
		lo, span = 20, 45
	case bandAverage:
		lo, span = 55, 25
	case bandStrong:
		lo, span = 70, 20
	case bandElite:
		lo, span = 88, 12
	default:
		lo, span = 0, 100
	}
	v := lo + g.rng.Float64()*span
	return float64(int(v*10)) / 10
}

// WithDuplicates returns records followed by n copies of earlier records.
func (g *Generator) WithDuplicates(records []model.ScoreRecord, n int) []model.ScoreRecord {
	if len(records) == 0 {
		return records
	}
	out := make([]model.ScoreRecord, len(records), len(records)+n)
	copy(out, records)
	for i := 0; i < n; i++ {
		out = append(out, records[g.rng.Intn(len(records))])
	}
	return out
}
