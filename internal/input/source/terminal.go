package source

import (
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keychord/internal/input/key"
)

// Terminal simulates a keyboard from terminal input. Terminals report
// characters, not key transitions, so each recognized key press is held
// until Enter releases every held key in reverse order. Pressing a held
// key again produces a repeat. Esc and Ctrl+C end the source.
type Terminal struct {
	screen    tcell.Screen
	closeOnce sync.Once

	mu      sync.Mutex
	held    []key.Code
	pending []key.Event
	status  string
}

// OpenTerminal initializes the controlling terminal.
func OpenTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTerminal(screen)
}

// NewTerminal initializes screen and reads events from it.
func NewTerminal(screen tcell.Screen) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	t := &Terminal{screen: screen}
	t.draw()
	return t, nil
}

// Name returns "terminal".
func (t *Terminal) Name() string {
	return "terminal"
}

// Next returns the next simulated key event.
func (t *Terminal) Next() (key.Event, error) {
	for {
		if ev, ok := t.popPending(); ok {
			return ev, nil
		}

		tev := t.screen.PollEvent()
		if tev == nil {
			return key.Event{}, io.EOF
		}
		kev, ok := tev.(*tcell.EventKey)
		if !ok {
			continue
		}
		if done := t.translate(kev); done {
			return key.Event{}, io.EOF
		}
	}
}

// SetStatus shows msg on the status line.
func (t *Terminal) SetStatus(msg string) {
	t.mu.Lock()
	t.status = msg
	t.mu.Unlock()
	t.draw()
}

// Held returns the keys currently held down.
func (t *Terminal) Held() []key.Code {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]key.Code(nil), t.held...)
}

// Close restores the terminal. It may be called more than once.
func (t *Terminal) Close() error {
	t.closeOnce.Do(t.screen.Fini)
	return nil
}

func (t *Terminal) popPending() (key.Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return key.Event{}, false
	}
	ev := t.pending[0]
	t.pending = t.pending[1:]
	return ev, true
}

// translate queues the key events for kev and reports whether input ended.
func (t *Terminal) translate(kev *tcell.EventKey) bool {
	switch kev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyEnter:
		t.releaseAll()
		t.draw()
		return false
	}

	code, ok := terminalCode(kev)
	if !ok {
		return false
	}

	now := time.Now()
	t.mu.Lock()
	state := key.StatePress
	for _, h := range t.held {
		if h == code {
			state = key.StateRepeat
			break
		}
	}
	if state == key.StatePress {
		t.held = append(t.held, code)
	}
	t.pending = append(t.pending, key.Event{Code: code, State: state, Timestamp: now})
	t.mu.Unlock()

	t.draw()
	return false
}

func (t *Terminal) releaseAll() {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.held) - 1; i >= 0; i-- {
		t.pending = append(t.pending, key.Event{Code: t.held[i], State: key.StateRelease, Timestamp: now})
	}
	t.held = t.held[:0]
}

var terminalKeys = map[tcell.Key]key.Code{
	tcell.KeyTab:        key.CodeTab,
	tcell.KeyBackspace:  key.CodeBackspace,
	tcell.KeyBackspace2: key.CodeBackspace,
	tcell.KeyDelete:     key.CodeDelete,
	tcell.KeyUp:         key.CodeUp,
	tcell.KeyDown:       key.CodeDown,
	tcell.KeyLeft:       key.CodeLeft,
	tcell.KeyRight:      key.CodeRight,
	tcell.KeyHome:       102,
	tcell.KeyEnd:        107,
	tcell.KeyPgUp:       104,
	tcell.KeyPgDn:       109,
	tcell.KeyInsert:     110,
	tcell.KeyF1:         59,
	tcell.KeyF2:         60,
	tcell.KeyF3:         61,
	tcell.KeyF4:         62,
	tcell.KeyF5:         63,
	tcell.KeyF6:         64,
	tcell.KeyF7:         65,
	tcell.KeyF8:         66,
	tcell.KeyF9:         67,
	tcell.KeyF10:        68,
	tcell.KeyF11:        87,
	tcell.KeyF12:        88,
}

// runeNames covers printable runes whose key name differs from the rune.
var runeNames = map[rune]string{
	' ': "space", '-': "minus", '=': "equal", '[': "leftbrace", ']': "rightbrace",
	';': "semicolon", '\'': "apostrophe", '`': "grave", '\\': "backslash",
	',': "comma", '.': "dot", '/': "slash", '*': "kpasterisk",
}

// terminalCode maps a terminal key to a key code. Letters are folded to
// lower case; other shifted symbols are not recognized.
func terminalCode(kev *tcell.EventKey) (key.Code, bool) {
	if kev.Key() != tcell.KeyRune {
		c, ok := terminalKeys[kev.Key()]
		return c, ok
	}

	r := unicode.ToLower(kev.Rune())
	name, ok := runeNames[r]
	if !ok {
		name = string(r)
	}
	c, err := key.ParseCode(name)
	return c, err == nil
}

func (t *Terminal) draw() {
	t.mu.Lock()
	names := make([]string, len(t.held))
	for i, c := range t.held {
		names[i] = c.String()
	}
	status := t.status
	t.mu.Unlock()

	t.screen.Clear()
	drawLine(t.screen, 0, "keychord: type keys to hold them, Enter releases all, Esc quits")
	drawLine(t.screen, 1, "held: "+strings.Join(names, "+"))
	drawLine(t.screen, 2, status)
	t.screen.Show()
}

func drawLine(s tcell.Screen, y int, text string) {
	for x, r := range []rune(text) {
		s.SetContent(x, y, r, nil, tcell.StyleDefault)
	}
}
