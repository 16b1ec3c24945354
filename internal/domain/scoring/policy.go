// Package scoring holds the category weighting policy and the composite
// average calculator.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/gradestats/internal/domain/model"
)

// Default weights. They sum to 1.0.
const (
	DefaultExamWeight     = 0.5
	DefaultQuizWeight     = 0.3
	DefaultHomeworkWeight = 0.2

	weightSumTolerance = 1e-9
)

// Option applies a configuration option to a Policy.
type Option func(*Policy)

// WithWeight overrides the weight of a known category. Unknown categories
// are ignored.
func WithWeight(c model.Category, weight float64) Option {
	return func(p *Policy) {
		if c.Known() {
			p.weights[c] = weight
		}
	}
}

// WithWeights overrides the three weights at once.
func WithWeights(exam, quiz, homework float64) Option {
	return func(p *Policy) {
		p.weights[model.CategoryExam] = exam
		p.weights[model.CategoryQuiz] = quiz
		p.weights[model.CategoryHomework] = homework
	}
}

// Policy maps categories to weights. A Policy is immutable once built and
// safe for concurrent use.
type Policy struct {
	weights map[model.Category]float64
}

// NewPolicy builds a Policy from the default weights and the given options.
func NewPolicy(opts ...Option) Policy {
	p := Policy{
		weights: map[model.Category]float64{
			model.CategoryExam:     DefaultExamWeight,
			model.CategoryQuiz:     DefaultQuizWeight,
			model.CategoryHomework: DefaultHomeworkWeight,
		},
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// DefaultPolicy returns the 0.5 / 0.3 / 0.2 policy.
func DefaultPolicy() Policy {
	return NewPolicy()
}

// WeightFor returns the weight of c, or ErrUnknownCategory.
func (p Policy) WeightFor(c model.Category) (float64, error) {
	w, ok := p.weights[c]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return w, nil
}

// Weights returns a copy of the category weights.
func (p Policy) Weights() map[model.Category]float64 {
	out := make(map[model.Category]float64, len(p.weights))
	for c, w := range p.weights {
		out[c] = w
	}
	return out
}

// Validate checks that every weight is finite and non-negative and that the
// weights sum to 1.
func (p Policy) Validate() error {
	sum := 0.0
	for _, c := range model.Categories() {
		w, ok := p.weights[c]
		if !ok {
			return fmt.Errorf("%w: missing weight for %q", ErrInvalidPolicy, c)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight for %q is %v", ErrInvalidPolicy, c, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidPolicy, sum)
	}
	return nil
}
