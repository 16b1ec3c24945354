// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
)

// Category tags a score entry with the kind of work it grades.
type Category string

// Known categories. Anything else is ignored by averaging.
const (
	CategoryExam     Category = "exam"
	CategoryQuiz     Category = "quiz"
	CategoryHomework Category = "homework"
)

// Categories lists the known categories in weighting order.
func Categories() []Category {
	return []Category{CategoryExam, CategoryQuiz, CategoryHomework}
}

// Known reports whether c is one of the three graded categories.
func (c Category) Known() bool {
	switch c {
	case CategoryExam, CategoryQuiz, CategoryHomework:
		return true
	}
	return false
}

// ScoreEntry is one scored piece of work inside a record.
type ScoreEntry struct {
	Type  Category `json:"type" yaml:"type"`
	Score *float64 `json:"score" yaml:"score"`
}

// Entry builds a ScoreEntry with a present score.
func Entry(c Category, score float64) ScoreEntry {
	return ScoreEntry{Type: c, Score: &score}
}

// Value returns the score, or NaN when it is absent.
func (e ScoreEntry) Value() float64 {
	if e.Score == nil {
		return math.NaN()
	}
	return *e.Score
}

// Validate reports entries that cannot take part in averaging at all.
// An unknown category is not a validation failure.
func (e ScoreEntry) Validate() error {
	if e.Score == nil {
		if e.Type == "" {
			return fmt.Errorf("%w: no type and no score", ErrMalformedEntry)
		}
		return fmt.Errorf("%w: %q entry has no score", ErrMalformedEntry, e.Type)
	}
	if math.IsNaN(*e.Score) || math.IsInf(*e.Score, 0) {
		return fmt.Errorf("%w: %q entry has non-finite score", ErrMalformedEntry, e.Type)
	}
	return nil
}

// ScoreRecord is one learner's scored work in one class.
type ScoreRecord struct {
	RecordID  string       `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	LearnerID int          `json:"learner_id" yaml:"learner_id"`
	ClassID   string       `json:"class_id" yaml:"class_id"`
	Scores    []ScoreEntry `json:"scores" yaml:"scores"`
}

// Validate checks the record-level fields. Entries are validated by the engine.
func (r ScoreRecord) Validate() error {
	if r.ClassID == "" {
		return fmt.Errorf("%w: missing class_id", ErrInvalidRecord)
	}
	return nil
}

// Receipt acknowledges an ingested record.
type Receipt struct {
	RecordID  string
	Duplicate bool
}
