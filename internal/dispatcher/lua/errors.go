package lua

import "errors"

// Errors for Lua execution.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua: state is closed")

	// ErrExecutionTimeout is returned when a script or handler runs past
	// the configured timeout.
	ErrExecutionTimeout = errors.New("lua: execution timeout")

	// ErrNoHandler is returned when neither handlers[name] nor on_hotkey
	// is defined.
	ErrNoHandler = errors.New("lua: no handler for event")

	// ErrNoScript is returned by Reload before any script was loaded.
	ErrNoScript = errors.New("lua: no script loaded")
)
