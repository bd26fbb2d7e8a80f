package dag

import (
	"fmt"

	"github.com/dshills/keychord/internal/input/key"
)

const (
	fanoutBits = 4

	// Fanout is the number of child slots per table layer.
	Fanout = 1 << fanoutBits

	// maxDepth is the depth at which one table spans every key code.
	maxDepth = 3
)

// layer is one 16-way level of a Table. Layers at depth 0 hold nodes,
// deeper layers hold sub-layers.
type layer struct {
	sub   [Fanout]*layer
	nodes [Fanout]*Node
	used  int
}

// Table maps key codes to combo nodes. The zero Table is empty.
type Table struct {
	depth int
	start uint32
	root  *layer
}

// Empty reports whether the table has no layers.
func (t *Table) Empty() bool {
	return t.root == nil
}

// Depth returns the number of layers above the node layer.
func (t *Table) Depth() int {
	return t.depth
}

// Start returns the first code covered by the table.
func (t *Table) Start() key.Code {
	return key.Code(t.start)
}

// Span returns how many consecutive codes the table covers, or 0 when empty.
func (t *Table) Span() int {
	if t.root == nil {
		return 0
	}
	return int(t.span())
}

func (t *Table) span() uint32 {
	return 1 << (fanoutBits * (t.depth + 1))
}

func (t *Table) covers(code key.Code) bool {
	c := uint32(code)
	return t.root != nil && c >= t.start && c-t.start < t.span()
}

// slot returns the child index of code in a layer at the given depth.
// Table starts are aligned to their span, so the index is a digit of code.
func slot(code key.Code, depth int) int {
	return int(code>>(fanoutBits*depth)) & (Fanout - 1)
}

// lookup returns the node stored for code, or nil. It never allocates.
func (t *Table) lookup(code key.Code) *Node {
	if !t.covers(code) {
		return nil
	}
	l := t.root
	for d := t.depth; d > 0; d-- {
		l = l.sub[slot(code, d)]
		if l == nil {
			return nil
		}
	}
	return l.nodes[slot(code, 0)]
}

// grow makes sure the table has a root layer and covers code, adding
// layers on top as needed.
func (d *DAG) grow(t *Table, code key.Code) error {
	if t.root == nil {
		l, err := d.newLayer()
		if err != nil {
			return err
		}
		t.root = l
		t.depth = 0
		t.start = uint32(code) &^ (Fanout - 1)
		return nil
	}

	for !t.covers(code) {
		if t.depth >= maxDepth {
			return fmt.Errorf("dag: table at depth %d does not cover code %d", t.depth, code)
		}
		l, err := d.newLayer()
		if err != nil {
			return err
		}
		oldSpan := t.span()
		newStart := t.start &^ (oldSpan<<fanoutBits - 1)
		l.sub[(t.start-newStart)/oldSpan] = t.root
		l.used = 1

		t.root = l
		t.depth++
		t.start = newStart
	}
	return nil
}

// obtain returns the node for code in t, creating intermediate layers and
// the node itself when absent.
func (d *DAG) obtain(t *Table, code key.Code) (*Node, error) {
	if err := d.grow(t, code); err != nil {
		return nil, err
	}

	l := t.root
	for depth := t.depth; depth > 0; depth-- {
		i := slot(code, depth)
		if l.sub[i] == nil {
			nl, err := d.newLayer()
			if err != nil {
				return nil, err
			}
			l.sub[i] = nl
			l.used++
		}
		l = l.sub[i]
	}

	i := slot(code, 0)
	if l.nodes[i] == nil {
		n, err := d.newNode()
		if err != nil {
			return nil, err
		}
		l.nodes[i] = n
		l.used++
	}
	return l.nodes[i], nil
}

// clear empties the slot for code and frees every layer left without
// children, bottom-up. An emptied table returns to its zero state.
func (d *DAG) clear(t *Table, code key.Code) {
	if !t.covers(code) {
		return
	}

	var path [maxDepth + 1]*layer
	l := t.root
	for depth := t.depth; depth > 0; depth-- {
		path[depth] = l
		l = l.sub[slot(code, depth)]
		if l == nil {
			return
		}
	}
	path[0] = l

	i := slot(code, 0)
	if l.nodes[i] == nil {
		return
	}
	l.nodes[i] = nil
	l.used--

	for depth := 0; depth <= t.depth; depth++ {
		if path[depth].used > 0 {
			return
		}
		d.freeLayer()
		if depth == t.depth {
			*t = Table{}
			return
		}
		parent := path[depth+1]
		parent.sub[slot(code, depth+1)] = nil
		parent.used--
	}
}

// each calls fn for every node in t in ascending code order.
func (t *Table) each(fn func(code key.Code, n *Node) bool) bool {
	if t.root == nil {
		return true
	}
	return eachLayer(t.root, t.depth, t.start, fn)
}

func eachLayer(l *layer, depth int, base uint32, fn func(key.Code, *Node) bool) bool {
	step := uint32(1) << (fanoutBits * depth)
	for i := 0; i < Fanout; i++ {
		code := base + uint32(i)*step
		if depth > 0 {
			if s := l.sub[i]; s != nil && !eachLayer(s, depth-1, code, fn) {
				return false
			}
			continue
		}
		if n := l.nodes[i]; n != nil && !fn(key.Code(code), n) {
			return false
		}
	}
	return true
}
