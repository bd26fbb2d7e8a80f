package dispatcher

import "errors"

// Dispatcher errors.
var (
	// ErrNoHandler indicates no handler was found for an event name.
	ErrNoHandler = errors.New("dispatcher: no handler for event")

	// ErrPanic indicates the handler panicked.
	ErrPanic = errors.New("dispatcher: handler panic")

	// ErrQueueFull indicates an event was dropped because the queue was full.
	ErrQueueFull = errors.New("dispatcher: queue full")

	// ErrQueueStopped indicates the queue no longer accepts events.
	ErrQueueStopped = errors.New("dispatcher: queue stopped")
)
