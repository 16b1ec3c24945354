package broker

import "errors"

// Sentinel kinds for broker errors.
var (
	ErrNotStarted = errors.New("consumer not started")
	ErrDecode     = errors.New("decode delivery")
)
