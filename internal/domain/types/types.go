// Package types contains the wire shapes returned by the HTTP API.
package types

import (
	"math"

	"github.com/okian/gradestats/internal/domain/model"
)

// ClassAverage is one row of GET /grades/learner/{id}/avg-class.
// Avg is null when the composite is undefined.
type ClassAverage struct {
	ClassID string   `json:"class_id"`
	Avg     *float64 `json:"avg"`
}

// Statistics is the body of GET /grades/stats and GET /grades/stats/{id}.
// The field names keep the historical "70" suffix whatever the threshold.
type Statistics struct {
	Total       int     `json:"total"`
	Above70     int     `json:"above70"`
	PercAbove70 float64 `json:"percAbove70"`
	Threshold   float64 `json:"threshold"`
}

// FromClassAverages converts engine rows to wire rows.
func FromClassAverages(rows []model.ClassAverage) []ClassAverage {
	out := make([]ClassAverage, len(rows))
	for i, r := range rows {
		out[i] = ClassAverage{ClassID: r.ClassID, Avg: finite(r.Avg)}
	}
	return out
}

// FromStatistics converts engine statistics to the wire shape.
func FromStatistics(s model.Statistics) Statistics {
	return Statistics{
		Total:       s.Total,
		Above70:     s.AboveThreshold,
		PercAbove70: s.Percentage,
		Threshold:   s.Threshold,
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
