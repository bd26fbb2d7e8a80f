// Package hotkey recognizes key combos in a live stream of key events.
//
// The Registry owns the combo trie (package dag) and the events bound to
// it. The Tracker consumes key presses and releases, follows the trie as
// keys go down, and fires the bound event once every tracked key has been
// released.
//
// # Usage
//
//	reg := hotkey.NewRegistry()
//	defer reg.Close()
//
//	ev := event.New("terminal")
//	err := reg.Add(hotkey.Combo{Keys: key.MustParseSequence("leftctrl+leftalt+t"), Event: ev})
//	ev.Release()
//
//	tracker := hotkey.NewTracker(reg, dispatcher)
//	for raw := range keyEvents {
//	    if !tracker.Handle(raw) {
//	        forward(raw) // not part of a combo
//	    }
//	}
//
// Neither type is safe for concurrent use; callers serialize access.
package hotkey
