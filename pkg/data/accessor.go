package data

import (
	"fmt"

	"github.com/goliatone/go-composite/pkg/path"
	"github.com/goliatone/go-composite/pkg/tree"
)

// Accessor is a read view on one node of the live accessor tree. Nodes of
// an immutable root are frozen and shared with history snapshots, so an
// accessor taken before a write keeps showing the old state. Fetch a new one
// from the Element to see later writes.
type Accessor struct {
	el   *Element
	node tree.Node
	path path.Path
}

func (a *Accessor) Path() path.Path { return a.path.Clone() }

// Node exposes the underlying tree node, for identity checks.
func (a *Accessor) Node() tree.Node { return a.node }

// Valid reports whether the accessor's node is still retained.
func (a *Accessor) Valid() bool { return a.node.Valid() }

func (a *Accessor) Keys() []string { return a.node.Tails() }

// Object composes the accessor's subtree into plain values.
func (a *Accessor) Object() (any, error) {
	if !a.node.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrStaleAccessor, a.path)
	}
	return a.node.Content(), nil
}

// Get returns the plain value under key.
func (a *Accessor) Get(key any) (any, error) {
	child, err := a.Select(key)
	if err != nil {
		return nil, err
	}
	return child.node.Content(), nil
}

// Select returns the accessor for the child under key.
func (a *Accessor) Select(key any) (*Accessor, error) {
	if !a.node.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrStaleAccessor, a.path)
	}
	segment, err := path.Segment(key)
	if err != nil {
		return nil, err
	}
	child, ok := a.node.Tail(segment)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, a.path.Append(segment))
	}
	return &Accessor{el: a.el, node: child, path: a.path.Append(segment)}, nil
}

// Set writes value under key through the data cursor, so descriptors
// apply. The accessor itself is not updated.
func (a *Accessor) Set(key, value any) error {
	cursor, err := a.el.Select(a.path)
	if err != nil {
		return err
	}
	return cursor.SetContentItem(value, key)
}
