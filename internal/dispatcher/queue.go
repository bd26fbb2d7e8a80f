package dispatcher

import (
	"sync"
	"sync/atomic"

	"github.com/dshills/keychord/internal/hotkey"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/logging"
)

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the queue logger.
func WithQueueLogger(l *logging.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = l
	}
}

// Queue runs a target dispatcher on a worker goroutine. Each queued event
// carries a reference owned by the queue until the target returns.
type Queue struct {
	target hotkey.Dispatcher
	events chan *event.Event
	logger *logging.Logger

	mu      sync.RWMutex
	stopped bool

	startOnce sync.Once
	wg        sync.WaitGroup

	processed atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// NewQueue creates a queue in front of target. A non-positive size uses
// the default from DefaultConfig.
func NewQueue(target hotkey.Dispatcher, size int, opts ...QueueOption) *Queue {
	if size <= 0 {
		size = DefaultConfig().QueueSize
	}
	q := &Queue{
		target: target,
		events: make(chan *event.Event, size),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = logging.Nop()
	}
	q.logger = q.logger.WithComponent("queue")
	return q
}

// Start launches the worker. Events enqueued before Start are buffered.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go q.loop()
	})
}

// Stop refuses further events, drains the buffer and waits for the
// worker to exit. Stop is idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.stopped {
		q.stopped = true
		close(q.events)
	}
	q.mu.Unlock()

	// Drain on the caller when the worker never started.
	q.startOnce.Do(func() {
		for ev := range q.events {
			q.run(ev)
		}
	})
	q.wg.Wait()
}

// Dispatch enqueues ev. A full or stopped queue drops the event and logs
// it. The reply is always nil.
func (q *Queue) Dispatch(ev *event.Event) event.Reply {
	if err := q.Enqueue(ev); err != nil {
		q.logger.WithField("event", ev.String()).Warn("dropped: %v", err)
	}
	return nil
}

// Enqueue takes a reference on ev and hands it to the worker.
func (q *Queue) Enqueue(ev *event.Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		q.dropped.Add(1)
		return ErrQueueStopped
	}

	ev.Acquire()
	select {
	case q.events <- ev:
		return nil
	default:
		ev.Release()
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for ev := range q.events {
		q.run(ev)
	}
}

func (q *Queue) run(ev *event.Event) {
	defer ev.Release()
	defer func() {
		if r := recover(); r != nil {
			q.panics.Add(1)
			q.logger.Error("dispatcher panic for %s: %v", ev, r)
		}
	}()

	q.processed.Add(1)
	if q.target != nil {
		event.ReleaseReply(q.target.Dispatch(ev))
	}
}

// Pending returns the number of buffered events.
func (q *Queue) Pending() int {
	return len(q.events)
}

// Processed returns the number of events handed to the target.
func (q *Queue) Processed() uint64 {
	return q.processed.Load()
}

// Dropped returns the number of events refused.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Panics returns the number of target panics recovered.
func (q *Queue) Panics() uint64 {
	return q.panics.Load()
}
