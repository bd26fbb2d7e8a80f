package dispatcher

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/logging"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// Dispatcher routes fired events to handlers by name.
type Dispatcher struct {
	registry *Registry
	router   *Router
	config   Config
	metrics  *Metrics
	logger   *logging.Logger
}

// New creates a dispatcher with the given configuration.
func New(config Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: NewRegistry(),
		router:   NewRouter(),
		config:   config,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Nop()
	}
	d.logger = d.logger.WithComponent("dispatcher")
	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}
	return d
}

// NewWithDefaults creates a dispatcher with the default configuration.
func NewWithDefaults() *Dispatcher {
	return New(DefaultConfig())
}

// Dispatch runs the handler for ev. Handler failures are logged. The
// reply is non-nil only when the handler is a Replier that produced one.
func (d *Dispatcher) Dispatch(ev *event.Event) event.Reply {
	reply, _ := d.execute(ev)
	return reply
}

// Execute runs the handler for ev and returns its error. Any reply is
// released before Execute returns.
func (d *Dispatcher) Execute(ev *event.Event) error {
	reply, err := d.execute(ev)
	event.ReleaseReply(reply)
	return err
}

func (d *Dispatcher) execute(ev *event.Event) (event.Reply, error) {
	start := time.Now()
	name := ev.Name()

	h := d.resolve(name)
	var (
		reply event.Reply
		err   error
	)
	if h == nil {
		err = fmt.Errorf("%w: %s", ErrNoHandler, name)
	} else if d.config.RecoverFromPanic {
		reply, err = d.executeWithRecovery(h, ev)
	} else {
		reply, err = call(h, ev)
	}

	if err != nil {
		d.logger.WithField("event", ev.String()).Warn("dispatch failed: %v", err)
	}
	if d.metrics != nil {
		d.metrics.RecordDispatch(name, time.Since(start), err)
	}
	return reply, err
}

func call(h Handler, ev *event.Event) (event.Reply, error) {
	if r, ok := h.(Replier); ok {
		return r.HandleReply(ev)
	}
	return nil, h.Handle(ev)
}

func (d *Dispatcher) resolve(name string) Handler {
	if h := d.registry.Get(name); h != nil {
		return h
	}
	return d.router.Route(name)
}

func (d *Dispatcher) executeWithRecovery(h Handler, ev *event.Event) (reply event.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			d.logger.Debug("handler stack for %s:\n%s", ev, stack[:n])

			err = fmt.Errorf("%w: %s: %v", ErrPanic, ev.Name(), r)
			if d.metrics != nil {
				d.metrics.RecordPanic(ev.Name())
			}
		}
	}()
	return call(h, ev)
}

// Register registers a handler for an exact event name.
func (d *Dispatcher) Register(name string, h Handler) {
	d.registry.Register(name, h)
}

// RegisterFunc registers a handler function for an exact event name.
func (d *Dispatcher) RegisterFunc(name string, fn func(*event.Event) error) {
	d.registry.Register(name, HandlerFunc(fn))
}

// Unregister removes the handler for an exact event name.
func (d *Dispatcher) Unregister(name string) {
	d.registry.Unregister(name)
}

// RegisterNamespace registers a handler for every name in namespace.
func (d *Dispatcher) RegisterNamespace(namespace string, h Handler) {
	d.router.RegisterNamespace(namespace, h)
}

// SetFallback sets the handler for names nothing else claims.
func (d *Dispatcher) SetFallback(h Handler) {
	d.router.SetFallback(h)
}

// Registry returns the handler registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Metrics returns the metrics collector (nil if disabled).
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Handled returns the exact names with a handler followed by one "ns.*"
// entry per namespace handler.
func (d *Dispatcher) Handled() []string {
	names := d.registry.List()
	for _, ns := range d.router.Namespaces() {
		names = append(names, ns+".*")
	}
	return names
}
