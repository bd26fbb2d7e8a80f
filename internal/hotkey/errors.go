package hotkey

import (
	"errors"
	"fmt"

	"github.com/dshills/keychord/internal/hotkey/dag"
	"github.com/dshills/keychord/internal/input/key"
)

// Registry errors.
var (
	// ErrInvalidInput indicates an empty combo or a nil event.
	ErrInvalidInput = dag.ErrInvalidInput

	// ErrDuplicateCombo indicates the exact key sequence is already bound.
	ErrDuplicateCombo = dag.ErrDuplicate

	// ErrAllocationFailure indicates no table or node could be allocated.
	ErrAllocationFailure = dag.ErrAllocation

	// ErrComboNotFound indicates removal of an unbound combo in strict mode.
	ErrComboNotFound = errors.New("hotkey: combo not found")

	// ErrClosed indicates the registry has been torn down.
	ErrClosed = errors.New("hotkey: registry closed")
)

// ComboError records a failed registry operation and the combo involved.
type ComboError struct {
	Op   string
	Keys key.Sequence
	Err  error
}

// Error implements the error interface.
func (e *ComboError) Error() string {
	return fmt.Sprintf("hotkey: %s %s: %v", e.Op, e.Keys, e.Err)
}

// Unwrap returns the underlying error.
func (e *ComboError) Unwrap() error {
	return e.Err
}
