package dispatcher

import (
	"github.com/dshills/keychord/internal/hotkey"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/logging"
)

// Func adapts a plain function that produces no reply.
func Func(fn func(ev *event.Event)) hotkey.Dispatcher {
	return hotkey.DispatcherFunc(func(ev *event.Event) event.Reply {
		fn(ev)
		return nil
	})
}

// Chain dispatches to each dispatcher in order. The combined reply
// releases every non-nil reply the members returned.
func Chain(ds ...hotkey.Dispatcher) hotkey.Dispatcher {
	return hotkey.DispatcherFunc(func(ev *event.Event) event.Reply {
		var replies []event.Reply
		for _, d := range ds {
			if d == nil {
				continue
			}
			if r := d.Dispatch(ev); r != nil {
				replies = append(replies, r)
			}
		}
		if len(replies) == 0 {
			return nil
		}
		return event.ReplyFunc(func() {
			for _, r := range replies {
				r.Release()
			}
		})
	})
}

// Log returns a dispatcher that only logs fired events.
func Log(l *logging.Logger) hotkey.Dispatcher {
	l = l.WithComponent("dispatch")
	return hotkey.DispatcherFunc(func(ev *event.Event) event.Reply {
		l.WithField("id", ev.ID().String()).Info("fired %s", ev.Name())
		return nil
	})
}
