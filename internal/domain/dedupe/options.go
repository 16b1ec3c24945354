package dedupe

// Option applies a configuration option to RecordIDs.
type Option func(*RecordIDs)

// WithMaxSize bounds the number of remembered ids. maxSize <= 0 means
// unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *RecordIDs) {
		d.maxSize = maxSize
	}
}
