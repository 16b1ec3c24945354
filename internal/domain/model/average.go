package model

// ClassAverage is one learner's composite average in one class.
// Avg is NaN when the learner is missing a category in that class.
type ClassAverage struct {
	ClassID string
	Avg     float64
}

// LearnerAverage is one learner's composite average over a record set.
type LearnerAverage struct {
	LearnerID int
	Avg       float64
}

// Statistics summarises how many subjects pass a threshold.
type Statistics struct {
	Total          int
	AboveThreshold int
	Percentage     float64
	Threshold      float64
}
