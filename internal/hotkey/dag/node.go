package dag

import (
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
)

// Node is a combo node: one per distinct registered prefix.
type Node struct {
	event    *event.Event
	next     Table
	detached bool
}

// Event returns the event bound to this node, or nil. The reference is
// borrowed; callers that keep it must Acquire.
func (n *Node) Event() *event.Event {
	return n.event
}

// Table returns the table mapping the next code to child nodes.
func (n *Node) Table() *Table {
	return &n.next
}

// Next returns the child reached by code, or nil. It never allocates.
func (n *Node) Next(code key.Code) *Node {
	if n == nil || n.detached {
		return nil
	}
	return n.next.lookup(code)
}

// Detached reports whether the node has been pruned or torn down.
func (n *Node) Detached() bool {
	return n.detached
}

// IsLeaf reports whether no registered sequence continues past this node.
func (n *Node) IsLeaf() bool {
	return n.next.root == nil
}

func (n *Node) dead() bool {
	return n.event == nil && n.next.root == nil
}
