package hotkey

import (
	"sync/atomic"
	"time"
)

// Metrics counts tracker activity. Counters may be read from any goroutine.
type Metrics struct {
	keyEvents   atomic.Uint64
	consumed    atomic.Uint64
	forwarded   atomic.Uint64
	fired       atomic.Uint64
	resets      atomic.Uint64
	overflows   atomic.Uint64
	panics      atomic.Uint64
	peakLatency atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	KeyEvents   uint64
	Consumed    uint64
	Forwarded   uint64
	Fired       uint64
	Resets      uint64
	Overflows   uint64
	Panics      uint64
	PeakLatency time.Duration
}

// NewMetrics creates a metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordKey(consumed bool, latency time.Duration) {
	m.keyEvents.Add(1)
	if consumed {
		m.consumed.Add(1)
	} else {
		m.forwarded.Add(1)
	}

	ns := latency.Nanoseconds()
	for {
		current := m.peakLatency.Load()
		if ns <= current {
			break
		}
		if m.peakLatency.CompareAndSwap(current, ns) {
			break
		}
	}
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		KeyEvents:   m.keyEvents.Load(),
		Consumed:    m.consumed.Load(),
		Forwarded:   m.forwarded.Load(),
		Fired:       m.fired.Load(),
		Resets:      m.resets.Load(),
		Overflows:   m.overflows.Load(),
		Panics:      m.panics.Load(),
		PeakLatency: time.Duration(m.peakLatency.Load()),
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.keyEvents.Store(0)
	m.consumed.Store(0)
	m.forwarded.Store(0)
	m.fired.Store(0)
	m.resets.Store(0)
	m.overflows.Store(0)
	m.panics.Store(0)
	m.peakLatency.Store(0)
}
