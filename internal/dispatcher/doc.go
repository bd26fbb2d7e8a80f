// Package dispatcher executes the actions behind fired hotkey events.
//
// Every type here satisfies hotkey.Dispatcher, so they compose freely:
//
//	d := dispatcher.New(dispatcher.DefaultConfig())
//	d.Register("terminal", dispatcher.HandlerFunc(openTerminal))
//	d.RegisterNamespace("window", windowHandler)
//	q := dispatcher.NewQueue(d, 64)
//	tracker := hotkey.NewTracker(reg, dispatcher.Chain(dispatcher.Log(logger), q))
//
// # Routing
//
// Dispatcher resolves a handler for an event name in three steps:
//
//  1. Exact name in the handler Registry ("terminal").
//  2. Namespace prefix before the first dot in the Router ("window" for
//     "window.close").
//  3. The Router fallback, typically a scripted dispatcher.
//
// Handler errors and panics are logged and counted, never propagated: the
// tracker has no error channel.
//
// # Asynchronous execution
//
// Queue hands events to a worker goroutine so a slow action never stalls key
// tracking. It takes its own reference on each event while the event is in
// flight and drops it once the target dispatcher returns.
package dispatcher
