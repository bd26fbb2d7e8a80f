package dispatcher

// Config holds dispatcher configuration options.
type Config struct {
	// EnableMetrics enables per-event timing and counters.
	EnableMetrics bool

	// RecoverFromPanic wraps handler execution in panic recovery.
	RecoverFromPanic bool

	// QueueSize is the buffer size used by NewQueue when the caller
	// passes a non-positive size.
	QueueSize int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableMetrics:    false,
		RecoverFromPanic: true,
		QueueSize:        64,
	}
}

// WithMetrics returns a copy of the config with metrics enabled.
func (c Config) WithMetrics() Config {
	c.EnableMetrics = true
	return c
}

// WithQueueSize returns a copy of the config with the queue size set.
func (c Config) WithQueueSize(n int) Config {
	c.QueueSize = n
	return c
}
