package dag

import (
	"fmt"
	"sync/atomic"
)

// Kind identifies what is being allocated.
type Kind uint8

const (
	// KindTable is one 16-way table layer.
	KindTable Kind = iota
	// KindNode is one combo node.
	KindNode
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindNode:
		return "node"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Allocator accounts for table layers and combo nodes. Alloc may refuse an
// allocation by returning an error; the DAG reports it as ErrAllocation.
type Allocator interface {
	Alloc(kind Kind) error
	Free(kind Kind)
}

// Counter is an Allocator that never refuses and counts live and total
// allocations per kind. Counts may be read from other goroutines.
type Counter struct {
	live  [2]atomic.Int64
	total [2]atomic.Uint64
}

// NewCounter creates a counting allocator.
func NewCounter() *Counter {
	return &Counter{}
}

// Alloc records an allocation.
func (c *Counter) Alloc(kind Kind) error {
	c.live[kind].Add(1)
	c.total[kind].Add(1)
	return nil
}

// Free records a release.
func (c *Counter) Free(kind Kind) {
	c.live[kind].Add(-1)
}

// Live returns the number of allocations of kind not yet freed.
func (c *Counter) Live(kind Kind) int {
	return int(c.live[kind].Load())
}

// Total returns the number of allocations of kind ever made.
func (c *Counter) Total(kind Kind) uint64 {
	return c.total[kind].Load()
}

// Limiter is a Counter that refuses allocations once the number of live
// tables plus nodes reaches Max.
type Limiter struct {
	Counter
	Max int
}

// Limit creates an allocator with a live-object budget. max <= 0 means
// unlimited.
func Limit(max int) *Limiter {
	return &Limiter{Max: max}
}

// Alloc records an allocation or refuses it when the budget is spent.
func (l *Limiter) Alloc(kind Kind) error {
	if l.Max > 0 && l.Live(KindTable)+l.Live(KindNode) >= l.Max {
		return fmt.Errorf("%w: %s budget of %d exhausted", ErrAllocation, kind, l.Max)
	}
	return l.Counter.Alloc(kind)
}
