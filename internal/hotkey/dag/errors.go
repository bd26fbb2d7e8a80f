package dag

import (
	"errors"
	"fmt"
)

// DAG errors.
var (
	// ErrInvalidInput indicates an empty sequence or a nil event.
	ErrInvalidInput = errors.New("dag: invalid input")

	// ErrDuplicate indicates the sequence already has an event bound.
	ErrDuplicate = errors.New("dag: sequence already bound")

	// ErrAllocation indicates the allocator refused a new table or node.
	ErrAllocation = errors.New("dag: allocation failure")
)

func wrapAlloc(err error) error {
	if errors.Is(err, ErrAllocation) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrAllocation, err)
}
