package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrTooLarge     = errors.New("request body too large")
	ErrBackpressure = errors.New("backpressure")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal error")
)

// Error tags an underlying error with the operation that failed and the
// sentinel kind used to pick the HTTP status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewKind returns an error of the given kind with no further cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap tags err with op and an internal kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: ErrInternal, Err: err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind so callers can test errors.Is(err, ErrBadRequest).
func (e *Error) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}
