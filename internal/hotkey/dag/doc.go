// Package dag stores hotkey combos in a trie of combo nodes indexed by
// sparse radix tables.
//
// Every combo node owns one Table mapping the next key code of a sequence
// to the next node. A Table is a stack of 16-way layers: a Table of depth d
// covers 16^(d+1) consecutive codes starting at an aligned base. Tables
// start as a single layer around the first code stored in them and grow
// upward (one more layer on top, base re-aligned) when a code outside the
// covered range arrives. Intermediate layers are created on the way down.
//
// Removal releases the bound event and prunes every node and layer left
// without an event or children, from the end of the sequence back towards
// the root. The root node is never freed.
//
// A DAG is not safe for concurrent use.
package dag
