package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrMalformedEntry = errors.New("malformed score entry")
	ErrInvalidRecord  = errors.New("invalid score record")
	ErrBackpressure   = errors.New("ingest backpressure")
	ErrUnavailable    = errors.New("ingest unavailable")
)
