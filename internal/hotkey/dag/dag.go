package dag

import (
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
)

// Stats reports the number of live table layers and combo nodes, excluding
// the root node.
type Stats struct {
	Tables int
	Nodes  int
}

// DAG is the combo trie rooted at a single entry node.
type DAG struct {
	root   Node
	alloc  Allocator
	tables int
	nodes  int
}

// New creates an empty DAG. A nil allocator counts without limits.
func New(alloc Allocator) *DAG {
	if alloc == nil {
		alloc = NewCounter()
	}
	return &DAG{alloc: alloc}
}

// Root returns the entry node.
func (d *DAG) Root() *Node {
	return &d.root
}

// Stats returns live allocation counts.
func (d *DAG) Stats() Stats {
	return Stats{Tables: d.tables, Nodes: d.nodes}
}

// Insert walks seq from the root, creating nodes and table layers as
// needed, and binds ev to the final node, acquiring a reference.
//
// Nodes created before an allocation failure stay attached and are reused
// by later inserts. A node that already carries an event is left untouched
// and ErrDuplicate is returned.
func (d *DAG) Insert(seq key.Sequence, ev *event.Event) error {
	if len(seq) == 0 || ev == nil {
		return ErrInvalidInput
	}

	n := &d.root
	for _, code := range seq {
		next, err := d.obtain(&n.next, code)
		if err != nil {
			return err
		}
		n = next
	}

	if n.event != nil {
		return ErrDuplicate
	}
	ev.Acquire()
	n.event = ev
	return nil
}

// Lookup returns the node reached by walking seq from the root, or nil.
func (d *DAG) Lookup(seq key.Sequence) *Node {
	n := &d.root
	for _, code := range seq {
		n = n.Next(code)
		if n == nil {
			return nil
		}
	}
	return n
}

// Remove unbinds the event at the end of seq and prunes nodes and layers
// left empty. If match is non-nil, the bound event is only removed when
// match returns true. Remove reports whether an event was unbound.
//
// Dead nodes along seq are pruned even when nothing was unbound.
func (d *DAG) Remove(seq key.Sequence, match func(*event.Event) bool) bool {
	if len(seq) == 0 {
		return false
	}
	return d.unbind(&d.root, seq, match)
}

func (d *DAG) unbind(n *Node, seq key.Sequence, match func(*event.Event) bool) bool {
	if len(seq) == 0 {
		if n.event == nil || (match != nil && !match(n.event)) {
			return false
		}
		ev := n.event
		n.event = nil
		ev.Release()
		return true
	}

	child := n.Next(seq[0])
	if child == nil {
		return false
	}
	found := d.unbind(child, seq[1:], match)
	if child.dead() {
		d.clear(&n.next, seq[0])
		d.freeNode(child)
	}
	return found
}

// Walk calls fn for every bound event in ascending code order. The
// sequence passed to fn is only valid during the call.
func (d *DAG) Walk(fn func(seq key.Sequence, ev *event.Event) bool) {
	var seq key.Sequence
	walk(&d.root, &seq, fn)
}

func walk(n *Node, seq *key.Sequence, fn func(key.Sequence, *event.Event) bool) bool {
	if n.event != nil && !fn(*seq, n.event) {
		return false
	}
	return n.next.each(func(code key.Code, child *Node) bool {
		*seq = append(*seq, code)
		ok := walk(child, seq, fn)
		*seq = (*seq)[:len(*seq)-1]
		return ok
	})
}

// Free tears down every node and layer below the root and releases every
// bound event. The DAG is empty and reusable afterwards.
func (d *DAG) Free() {
	if d.root.event != nil {
		d.root.event.Release()
		d.root.event = nil
	}
	d.dropTable(&d.root.next)
}

func (d *DAG) dropTable(t *Table) {
	if t.root != nil {
		d.dropLayer(t.root, t.depth)
	}
	*t = Table{}
}

func (d *DAG) dropLayer(l *layer, depth int) {
	for i := 0; i < Fanout; i++ {
		if depth > 0 {
			if s := l.sub[i]; s != nil {
				d.dropLayer(s, depth-1)
			}
			continue
		}
		if n := l.nodes[i]; n != nil {
			if n.event != nil {
				n.event.Release()
				n.event = nil
			}
			d.dropTable(&n.next)
			d.freeNode(n)
		}
	}
	d.freeLayer()
}

func (d *DAG) newLayer() (*layer, error) {
	if err := d.alloc.Alloc(KindTable); err != nil {
		return nil, wrapAlloc(err)
	}
	d.tables++
	return &layer{}, nil
}

func (d *DAG) newNode() (*Node, error) {
	if err := d.alloc.Alloc(KindNode); err != nil {
		return nil, wrapAlloc(err)
	}
	d.nodes++
	return &Node{}, nil
}

func (d *DAG) freeLayer() {
	d.alloc.Free(KindTable)
	d.tables--
}

func (d *DAG) freeNode(n *Node) {
	n.detached = true
	d.alloc.Free(KindNode)
	d.nodes--
}
