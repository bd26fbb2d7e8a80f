package hotkey

import (
	"errors"
	"testing"

	"github.com/dshills/keychord/internal/hotkey/dag"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
)

func TestRegistryAddLookup(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	foo := addCombo(t, reg, "a+b", "foo")
	bar := addCombo(t, reg, "a+c", "bar")

	if got := reg.Lookup(key.Sequence{keyA, keyB}); got != foo {
		t.Errorf("Lookup(a+b) = %v, want foo", got)
	}
	if got := reg.Lookup(key.Sequence{keyA, keyC}); got != bar {
		t.Errorf("Lookup(a+c) = %v, want bar", got)
	}
	if got := reg.Lookup(key.Sequence{keyA}); got != nil {
		t.Errorf("Lookup(a) = %v, want nil", got)
	}
	if got := reg.Lookup(nil); got != nil {
		t.Errorf("Lookup(nil) = %v, want nil", got)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestRegistryAddErrors(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	tests := []struct {
		name  string
		combo Combo
		want  error
	}{
		{"empty keys", Combo{Event: event.New("x")}, ErrInvalidInput},
		{"nil event", Combo{Keys: key.Sequence{keyA}}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Add(tt.combo)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Add error = %v, want %v", err, tt.want)
			}
			var ce *ComboError
			if !errors.As(err, &ce) || ce.Op != "add" {
				t.Errorf("error should be a ComboError for add, got %T", err)
			}
		})
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	foo := addCombo(t, reg, "a+b", "foo")
	dup := event.New("dup")
	err := reg.Add(Combo{Keys: key.Sequence{keyA, keyB}, Event: dup})
	if !errors.Is(err, ErrDuplicateCombo) {
		t.Fatalf("Add duplicate error = %v, want ErrDuplicateCombo", err)
	}
	if reg.Lookup(key.Sequence{keyA, keyB}) != foo {
		t.Error("original binding should be untouched")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}

	rec := &recorder{}
	tr := NewTracker(reg, rec)
	tr.KeyDown(keyA)
	tr.KeyDown(keyB)
	tr.KeyUp(keyA)
	tr.KeyUp(keyB)
	if len(rec.fired) != 1 || rec.fired[0] != "foo" {
		t.Errorf("fired = %v, want [foo]", rec.fired)
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	foo := addCombo(t, reg, "a+b", "foo")
	if err := reg.Remove(Combo{Keys: key.Sequence{keyA, keyB}}); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if !foo.Released() {
		t.Error("registry reference should be released")
	}
	if reg.Len() != 0 || reg.Stats() != (dag.Stats{}) {
		t.Errorf("registry not empty: len=%d stats=%+v", reg.Len(), reg.Stats())
	}

	// Never inserted: succeeds by default.
	if err := reg.Remove(Combo{Keys: key.Sequence{keyC}}); err != nil {
		t.Errorf("Remove of unbound combo error = %v, want nil", err)
	}
	if err := reg.Remove(Combo{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Remove of empty combo error = %v, want ErrInvalidInput", err)
	}
}

func TestRegistryRemoveThenAdd(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	addCombo(t, reg, "a+b", "old")
	if err := reg.Remove(Combo{Keys: key.Sequence{keyA, keyB}}); err != nil {
		t.Fatal(err)
	}
	fresh := addCombo(t, reg, "a+b", "new")

	if reg.Lookup(key.Sequence{keyA, keyB}) != fresh {
		t.Error("terminal node should carry the new event")
	}
	combos := reg.Combos()
	if len(combos) != 1 || combos[0].Event != fresh {
		t.Errorf("Combos() = %v", combos)
	}
}

func TestRegistryRemoveMatchesEvent(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	foo := addCombo(t, reg, "a", "foo")
	other := event.New("other")

	if err := reg.Remove(Combo{Keys: key.Sequence{keyA}, Event: other}); err != nil {
		t.Fatal(err)
	}
	if reg.Lookup(key.Sequence{keyA}) != foo {
		t.Fatal("remove with a different event should not unbind")
	}
	if err := reg.Remove(Combo{Keys: key.Sequence{keyA}, Event: foo}); err != nil {
		t.Fatal(err)
	}
	if reg.Lookup(key.Sequence{keyA}) != nil {
		t.Error("remove with the bound event should unbind")
	}
}

func TestRegistryStrictRemove(t *testing.T) {
	reg := NewRegistry(WithStrictRemove(true))
	defer reg.Close()

	err := reg.Remove(Combo{Keys: key.Sequence{keyA}})
	if !errors.Is(err, ErrComboNotFound) {
		t.Errorf("strict Remove error = %v, want ErrComboNotFound", err)
	}

	addCombo(t, reg, "a", "foo")
	if err := reg.Remove(Combo{Keys: key.Sequence{keyA}}); err != nil {
		t.Errorf("strict Remove of bound combo error = %v", err)
	}
}

func TestRegistryAllocationFailure(t *testing.T) {
	reg := NewRegistry(WithMaxNodes(3))
	defer reg.Close()

	ev := event.New("long")
	err := reg.Add(Combo{Keys: key.MustParseSequence("a+b+c"), Event: ev})
	if !errors.Is(err, ErrAllocationFailure) {
		t.Fatalf("Add error = %v, want ErrAllocationFailure", err)
	}
	if ev.Refs() != 1 {
		t.Errorf("failed Add should not keep a reference, refs = %d", ev.Refs())
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistryCombosOrder(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	addCombo(t, reg, "leftctrl+t", "b")
	addCombo(t, reg, "esc", "a")
	addCombo(t, reg, "leftctrl+leftalt", "c")

	var got []string
	for _, c := range reg.Combos() {
		got = append(got, c.String())
	}
	want := []string{"esc=a", "leftctrl+t=b", "leftctrl+leftalt=c"}
	if len(got) != len(want) {
		t.Fatalf("Combos() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Combos()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryClose(t *testing.T) {
	counter := dag.NewCounter()
	reg := NewRegistry(WithAllocator(counter))

	foo := addCombo(t, reg, "a+b", "foo")
	held := event.New("held")
	if err := reg.Add(Combo{Keys: key.Sequence{keyC}, Event: held}); err != nil {
		t.Fatal(err)
	}

	reg.Close()
	reg.Close()

	if !foo.Released() {
		t.Error("Close should release registry-only events")
	}
	if held.Released() || held.Refs() != 1 {
		t.Errorf("externally held event refs = %d, want 1", held.Refs())
	}
	if counter.Live(dag.KindNode) != 0 || counter.Live(dag.KindTable) != 0 {
		t.Error("Close should free every table and node")
	}
	if err := reg.Add(Combo{Keys: key.Sequence{keyA}, Event: held}); !errors.Is(err, ErrClosed) {
		t.Errorf("Add after Close error = %v, want ErrClosed", err)
	}
	if err := reg.Remove(Combo{Keys: key.Sequence{keyA}}); !errors.Is(err, ErrClosed) {
		t.Errorf("Remove after Close error = %v, want ErrClosed", err)
	}
	if !reg.Closed() {
		t.Error("Closed() should be true")
	}
}
