package hotkey

import (
	"testing"

	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
)

type step struct {
	down     bool
	code     key.Code
	consumed bool
}

func runSteps(t *testing.T, tr *Tracker, steps []step) {
	t.Helper()
	for i, s := range steps {
		var got bool
		if s.down {
			got = tr.KeyDown(s.code)
		} else {
			got = tr.KeyUp(s.code)
		}
		if got != s.consumed {
			dir := "up"
			if s.down {
				dir = "down"
			}
			t.Fatalf("step %d (%s %s): consumed = %v, want %v", i, dir, s.code, got, s.consumed)
		}
	}
}

func TestTrackerFiresOnFullRelease(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a+b", "foo")

	rec := &recorder{}
	tr := NewTracker(reg, rec)

	runSteps(t, tr, []step{
		{true, keyA, true},
		{true, keyB, true},
		{false, keyA, true},
	})
	if len(rec.fired) != 0 {
		t.Fatalf("fired before full release: %v", rec.fired)
	}

	runSteps(t, tr, []step{{false, keyB, false}})
	if len(rec.fired) != 1 || rec.fired[0] != "foo" {
		t.Fatalf("fired = %v, want [foo]", rec.fired)
	}
	if rec.released != rec.replies {
		t.Errorf("replies released = %d, want %d", rec.released, rec.replies)
	}
	if !tr.AtRoot() {
		t.Error("tracker should be back at the root")
	}
}

func TestTrackerMissResets(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a+b", "foo")

	rec := &recorder{}
	tr := NewTracker(reg, rec)

	runSteps(t, tr, []step{
		{true, keyA, true},
		{true, keyC, false},
	})
	if !tr.AtRoot() || len(tr.Pressed()) != 0 {
		t.Fatalf("tracker should reset after a miss, pressed = %v", tr.Pressed())
	}

	runSteps(t, tr, []step{
		{true, keyA, true},
		{true, keyB, true},
		{false, keyB, true},
		{false, keyA, false},
	})
	if len(rec.fired) != 1 || rec.fired[0] != "foo" {
		t.Errorf("fired = %v, want [foo]", rec.fired)
	}
}

func TestTrackerStaleReleasesAfterMiss(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a+b", "foo")

	rec := &recorder{}
	tr := NewTracker(reg, rec)

	runSteps(t, tr, []step{
		{true, keyA, true},
		{true, keyC, false},
		{false, keyA, false},
		{false, keyC, false},
	})
	if len(rec.fired) != 0 {
		t.Errorf("nothing should fire, got %v", rec.fired)
	}
}

func TestTrackerUnrelatedKeyPassesThrough(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a+b", "foo")

	tr := NewTracker(reg, &recorder{})
	runSteps(t, tr, []step{
		{true, keyC, false},
		{false, keyC, false},
	})

	snap := tr.Metrics().Snapshot()
	if snap.KeyEvents != 2 || snap.Forwarded != 2 || snap.Consumed != 0 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestTrackerPrefixCombos(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a", "short")
	addCombo(t, reg, "a+b", "long")

	rec := &recorder{}
	tr := NewTracker(reg, rec)

	runSteps(t, tr, []step{
		{true, keyA, true},
		{false, keyA, false},
		{true, keyA, true},
		{true, keyB, true},
		{false, keyA, true},
		{false, keyB, false},
	})

	if len(rec.fired) != 2 || rec.fired[0] != "short" || rec.fired[1] != "long" {
		t.Errorf("fired = %v, want [short long]", rec.fired)
	}
}

func TestTrackerRepeatPolicy(t *testing.T) {
	tests := []struct {
		policy    RepeatPolicy
		repeat    bool
		wantFired int
	}{
		{RepeatAdvance, false, 0},
		{RepeatIgnore, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			reg := NewRegistry()
			defer reg.Close()
			addCombo(t, reg, "a", "foo")

			rec := &recorder{}
			tr := NewTracker(reg, rec, WithRepeatPolicy(tt.policy))

			if !tr.KeyDown(keyA) {
				t.Fatal("first press should be consumed")
			}
			if got := tr.Handle(key.Event{Code: keyA, State: key.StateRepeat}); got != tt.repeat {
				t.Errorf("repeat consumed = %v, want %v", got, tt.repeat)
			}
			tr.KeyUp(keyA)

			if len(rec.fired) != tt.wantFired {
				t.Errorf("fired %d times, want %d", len(rec.fired), tt.wantFired)
			}
		})
	}
}

func TestTrackerHeldModifierAutorepeat(t *testing.T) {
	tests := []struct {
		policy    RepeatPolicy
		wantFired []string
	}{
		{RepeatAdvance, nil},
		{RepeatIgnore, []string{"terminal"}},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			reg := NewRegistry()
			defer reg.Close()
			addCombo(t, reg, "leftctrl+leftalt+t", "terminal")

			rec := &recorder{}
			tr := NewTracker(reg, rec, WithRepeatPolicy(tt.policy))

			// A keyboard repeats the last held key until the next press.
			for _, ev := range []key.Event{
				{Code: key.CodeLeftCtrl, State: key.StatePress},
				{Code: key.CodeLeftCtrl, State: key.StateRepeat},
				{Code: key.CodeLeftCtrl, State: key.StateRepeat},
				{Code: key.CodeLeftAlt, State: key.StatePress},
				{Code: key.CodeLeftAlt, State: key.StateRepeat},
				{Code: 20, State: key.StatePress},
				{Code: 20, State: key.StateRelease},
				{Code: key.CodeLeftAlt, State: key.StateRelease},
				{Code: key.CodeLeftCtrl, State: key.StateRelease},
			} {
				tr.Handle(ev)
			}

			if len(rec.fired) != len(tt.wantFired) || (len(rec.fired) > 0 && rec.fired[0] != tt.wantFired[0]) {
				t.Errorf("fired = %v, want %v", rec.fired, tt.wantFired)
			}
			if !tr.AtRoot() {
				t.Error("tracker should be back at the root")
			}
		})
	}
}

func TestTrackerRepeatAdvanceMatchesDoubledKey(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a a", "double")

	rec := &recorder{}
	tr := NewTracker(reg, rec)

	runSteps(t, tr, []step{
		{true, keyA, true},
		{true, keyA, true},
		{false, keyA, false},
	})
	if len(rec.fired) != 1 || rec.fired[0] != "double" {
		t.Errorf("fired = %v, want [double]", rec.fired)
	}
}

func TestTrackerOverflow(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	codes := make(key.Sequence, PressedCapacity+1)
	for i := range codes {
		codes[i] = key.Code(200 + i)
	}
	ev := event.New("huge")
	if err := reg.Add(Combo{Keys: codes, Event: ev}); err != nil {
		t.Fatal(err)
	}

	tr := NewTracker(reg, &recorder{})
	for _, c := range codes[:PressedCapacity] {
		if !tr.KeyDown(c) {
			t.Fatalf("KeyDown(%s) should be consumed", c)
		}
	}
	if tr.KeyDown(codes[PressedCapacity]) {
		t.Error("press beyond capacity should not be consumed")
	}
	if !tr.AtRoot() {
		t.Error("overflow should reset the tracker")
	}
	if tr.Metrics().Snapshot().Overflows != 1 {
		t.Error("overflow not counted")
	}
}

func TestTrackerCursorPrunedMidCombo(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a+b", "foo")

	rec := &recorder{}
	tr := NewTracker(reg, rec)

	tr.KeyDown(keyA)
	if err := reg.Remove(Combo{Keys: key.Sequence{keyA, keyB}}); err != nil {
		t.Fatal(err)
	}

	runSteps(t, tr, []step{
		{true, keyB, false},
		{false, keyA, false},
		{false, keyB, false},
	})
	if len(rec.fired) != 0 {
		t.Errorf("removed combo fired: %v", rec.fired)
	}
}

func TestTrackerDispatchHoldsReference(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	foo := addCombo(t, reg, "a", "foo")

	rec := &recorder{}
	tr := NewTracker(reg, rec)
	tr.KeyDown(keyA)
	tr.KeyUp(keyA)

	if len(rec.refsAtDispatch) != 1 || rec.refsAtDispatch[0] != 2 {
		t.Errorf("refs during dispatch = %v, want [2]", rec.refsAtDispatch)
	}
	if foo.Refs() != 1 {
		t.Errorf("refs after dispatch = %d, want 1", foo.Refs())
	}
}

func TestTrackerDispatcherPanic(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	foo := addCombo(t, reg, "a", "foo")

	rec := &recorder{panicWith: "boom"}
	tr := NewTracker(reg, rec)
	tr.KeyDown(keyA)
	if tr.KeyUp(keyA) {
		t.Error("terminating release should not be consumed")
	}

	if tr.Metrics().Snapshot().Panics != 1 {
		t.Error("panic not counted")
	}
	if foo.Refs() != 1 {
		t.Errorf("refs after panic = %d, want 1", foo.Refs())
	}
	if !tr.AtRoot() {
		t.Error("tracker should be at the root")
	}
}

func TestTrackerNilDispatcher(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()
	addCombo(t, reg, "a", "foo")

	tr := NewTracker(reg, nil)
	tr.KeyDown(keyA)
	tr.KeyUp(keyA)

	if tr.Metrics().Snapshot().Fired != 1 {
		t.Error("fire should be counted without a dispatcher")
	}
}

func TestTrackerBoundaryCodes(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	ev := event.New("edges")
	if err := reg.Add(Combo{Keys: key.Sequence{0, key.CodeMax}, Event: ev}); err != nil {
		t.Fatal(err)
	}
	ev.Release()

	rec := &recorder{}
	tr := NewTracker(reg, rec)
	runSteps(t, tr, []step{
		{true, 0, true},
		{true, key.CodeMax, true},
		{false, 0, true},
		{false, key.CodeMax, false},
	})
	if len(rec.fired) != 1 || rec.fired[0] != "edges" {
		t.Errorf("fired = %v, want [edges]", rec.fired)
	}
}

func TestParseRepeatPolicy(t *testing.T) {
	for _, tt := range []struct {
		in      string
		want    RepeatPolicy
		wantErr bool
	}{
		{"advance", RepeatAdvance, false},
		{"", RepeatAdvance, false},
		{"IGNORE", RepeatIgnore, false},
		{"dedupe", RepeatAdvance, true},
	} {
		got, err := ParseRepeatPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRepeatPolicy(%q) = (%v, %v)", tt.in, got, err)
		}
	}
}
