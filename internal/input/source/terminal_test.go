package source

import (
	"context"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keychord/internal/input/key"
)

func newSimTerminal(t *testing.T) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("")
	term, err := NewTerminal(screen)
	if err != nil {
		t.Fatalf("NewTerminal() error = %v", err)
	}
	return term, screen
}

func postRune(t *testing.T, s tcell.Screen, r rune) {
	t.Helper()
	if err := s.PostEvent(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)); err != nil {
		t.Fatalf("PostEvent: %v", err)
	}
}

func postKey(t *testing.T, s tcell.Screen, k tcell.Key) {
	t.Helper()
	if err := s.PostEvent(tcell.NewEventKey(k, 0, tcell.ModNone)); err != nil {
		t.Fatalf("PostEvent: %v", err)
	}
}

func TestTerminalChordAndRelease(t *testing.T) {
	term, screen := newSimTerminal(t)

	postRune(t, screen, 'a')
	postRune(t, screen, 'B')
	postRune(t, screen, 'a')
	postKey(t, screen, tcell.KeyEnter)
	postKey(t, screen, tcell.KeyEscape)

	got := collect(t, term)
	want := []string{"down a", "down b", "repeat a", "up b", "up a"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("events = %v, want %v", got, want)
	}
	if len(term.Held()) != 0 {
		t.Errorf("Held() = %v after Enter", term.Held())
	}
}

func TestTerminalSpecialKeys(t *testing.T) {
	term, screen := newSimTerminal(t)

	postRune(t, screen, ' ')
	postRune(t, screen, '1')
	postRune(t, screen, '/')
	postKey(t, screen, tcell.KeyF5)
	postKey(t, screen, tcell.KeyUp)
	postRune(t, screen, 'é')
	postKey(t, screen, tcell.KeyCtrlC)

	got := collect(t, term)
	want := []string{"down space", "down 1", "down slash", "down f5", "down up"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("events = %v, want %v", got, want)
	}

	held := term.Held()
	if len(held) != 5 || held[0] != key.CodeSpace {
		t.Errorf("Held() = %v", held)
	}
}

func TestTerminalStatusLine(t *testing.T) {
	term, screen := newSimTerminal(t)
	defer term.Close()

	postRune(t, screen, 'q')
	if _, err := term.Next(); err != nil {
		t.Fatal(err)
	}
	term.SetStatus("fired quit")

	cells, width, _ := screen.GetContents()
	line := func(y int) string {
		var sb strings.Builder
		for x := 0; x < width; x++ {
			c := cells[y*width+x]
			if len(c.Runes) > 0 {
				sb.WriteRune(c.Runes[0])
			}
		}
		return strings.TrimSpace(sb.String())
	}

	if got := line(1); got != "held: q" {
		t.Errorf("held line = %q", got)
	}
	if got := line(2); got != "fired quit" {
		t.Errorf("status line = %q", got)
	}
}

func TestTerminalCloseEndsPump(t *testing.T) {
	term, _ := newSimTerminal(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Pump(ctx, term, func(key.Event) {}); err != context.Canceled {
		t.Errorf("Pump() error = %v, want context.Canceled", err)
	}
}
