// Package source reads raw key events from devices, files and terminals.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dshills/keychord/internal/input/key"
)

// Source produces key events in arrival order.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Next blocks until the next key event. It returns io.EOF when the
	// source is exhausted or closed.
	Next() (key.Event, error)

	// Close releases the source and unblocks a pending Next.
	Close() error
}

// Kind names a source implementation.
type Kind string

// Known source kinds.
const (
	KindEvdev    Kind = "evdev"
	KindTrace    Kind = "trace"
	KindTerminal Kind = "terminal"
)

// ParseKind validates a source kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindEvdev, KindTrace, KindTerminal:
		return k, nil
	default:
		return "", fmt.Errorf("source: unknown kind %q", s)
	}
}

// Pump feeds every event from src to handle until src is exhausted or ctx
// is cancelled. Cancelling ctx closes src. Exhaustion returns nil.
func Pump(ctx context.Context, src Source, handle func(key.Event)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = src.Close()
	})
	defer stop()

	for {
		ev, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("source %s: %w", src.Name(), err)
		}
		handle(ev)
	}
}
