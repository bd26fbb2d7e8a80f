package dispatcher

import "github.com/dshills/keychord/internal/hotkey/event"

// Handler runs the action bound to an event.
type Handler interface {
	Handle(ev *event.Event) error
}

// Replier is implemented by handlers whose result is passed back to the
// tracker as the dispatch reply. The dispatcher prefers HandleReply over
// Handle when both exist.
type Replier interface {
	HandleReply(ev *event.Event) (event.Reply, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev *event.Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ev *event.Event) error {
	if f == nil {
		return ErrNoHandler
	}
	return f(ev)
}
