package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrUnknownCategory = errors.New("unknown score category")
	ErrInvalidPolicy   = errors.New("invalid weighting policy")
)
