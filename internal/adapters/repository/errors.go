package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrDuplicate         = errors.New("record already stored")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrInvalidFixture    = errors.New("invalid fixture")
)
