package pending

// Option applies a configuration option to the in-memory tracker.
type Option func(*inMemoryTracker)

// WithMaxSize bounds how many pending players are tracked. With maxSize > 0
// the oldest mark is evicted when full; with maxSize <= 0 the tracker grows
// without bound.
func WithMaxSize(maxSize int) Option {
	return func(t *inMemoryTracker) {
		t.maxSize = maxSize
	}
}
