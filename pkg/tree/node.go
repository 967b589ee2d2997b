package tree

import (
	"fmt"

	"github.com/goliatone/go-composite/pkg/path"
)

// Node is a handle on a live node. A handle goes stale once the node it
// points to is freed; methods on a stale handle fail with ErrStaleNode.
type Node struct {
	tree *Tree
	id   int
	gen  uint64
}

func (n Node) get() (*node, error) {
	if n.tree == nil || n.id < 0 || n.id >= len(n.tree.nodes) {
		return nil, ErrStaleNode
	}
	raw := n.tree.nodes[n.id]
	if raw == nil || raw.gen != n.gen {
		return nil, ErrStaleNode
	}
	return raw, nil
}

// Valid reports whether the handle still points to a live node.
func (n Node) Valid() bool {
	_, err := n.get()
	return err == nil
}

// ID is the arena index of the node. Two handles with the same ID and
// generation address the same, possibly shared, node.
func (n Node) ID() int { return n.id }

// Same reports whether both handles address the same node.
func (n Node) Same(other Node) bool {
	return n.tree == other.tree && n.id == other.id && n.gen == other.gen
}

// Key is the key the node was created under.
func (n Node) Key() string {
	raw, err := n.get()
	if err != nil {
		return ""
	}
	if raw.rooted {
		return raw.rootKey
	}
	return raw.key
}

// Kind reports how the node composes its content.
func (n Node) Kind() Kind {
	raw, err := n.get()
	if err != nil {
		return KindLeaf
	}
	return raw.kind
}

func (n Node) IsRoot() bool {
	raw, err := n.get()
	return err == nil && len(raw.heads) == 0
}

func (n Node) IsLeaf() bool {
	raw, err := n.get()
	return err == nil && len(raw.heads) > 0 && len(raw.order) == 0
}

// IsSingular reports a root with no tails.
func (n Node) IsSingular() bool {
	raw, err := n.get()
	return err == nil && len(raw.heads) == 0 && len(raw.order) == 0
}

// IsFrozen reports whether the node rejects further mutation.
func (n Node) IsFrozen() bool {
	raw, err := n.get()
	return err == nil && raw.frozen
}

// Owners is the number of heads holding the node, plus one when it is a
// root.
func (n Node) Owners() int {
	raw, err := n.get()
	if err != nil {
		return 0
	}
	count := len(raw.heads)
	if raw.rooted {
		count++
	}
	return count
}

// Head returns the node's primary head: the one it was created or first
// linked under.
func (n Node) Head() (Node, bool) {
	raw, err := n.get()
	if err != nil || len(raw.heads) == 0 {
		return Node{}, false
	}
	return n.tree.handle(raw.heads[0]), true
}

// Tail returns the child stored under key.
func (n Node) Tail(key string) (Node, bool) {
	raw, err := n.get()
	if err != nil {
		return Node{}, false
	}
	id, ok := raw.tails[key]
	if !ok {
		return Node{}, false
	}
	return n.tree.handle(id), true
}

// Tails lists child keys in insertion order.
func (n Node) Tails() []string {
	raw, err := n.get()
	if err != nil {
		return nil
	}
	return append([]string(nil), raw.order...)
}

// Path walks primary heads up to the owning root.
func (n Node) Path() path.Path {
	raw, err := n.get()
	if err != nil {
		return nil
	}
	var segments []string
	for {
		if raw.rooted && len(raw.heads) == 0 {
			segments = append(segments, raw.rootKey)
			break
		}
		if len(raw.heads) == 0 {
			return nil
		}
		segments = append(segments, raw.key)
		raw = n.tree.nodes[raw.heads[0]]
	}
	out := make(path.Path, len(segments))
	for i, segment := range segments {
		out[len(segments)-1-i] = segment
	}
	return out
}

// Content composes the node into a plain value: a map for objects, a slice
// for arrays, or a copy of the leaf value.
func (n Node) Content() any {
	if _, err := n.get(); err != nil {
		return nil
	}
	return n.tree.content(n.id)
}

// SetContent replaces a leaf node's value.
func (n Node) SetContent(value any) error {
	raw, err := n.get()
	if err != nil {
		return err
	}
	if raw.frozen {
		return ErrFrozen
	}
	if len(raw.order) > 0 {
		return fmt.Errorf("tree: node %q has tails", raw.key)
	}
	raw.kind = KindLeaf
	return n.tree.fill(n.id, value)
}

// Branch creates a tail under key seeded with content and returns it.
func (n Node) Branch(key string, content any) (Node, error) {
	if _, err := n.get(); err != nil {
		return Node{}, err
	}
	id, err := n.tree.attachNew(n.id, key, content)
	if err != nil {
		return Node{}, err
	}
	return n.tree.handle(id), nil
}

// Sprout is Branch returning the receiver, for chaining.
func (n Node) Sprout(key string, content any) (Node, error) {
	if _, err := n.Branch(key, content); err != nil {
		return Node{}, err
	}
	return n, nil
}

// AsArray marks a node as composing its tails into an array.
func (n Node) AsArray() error {
	raw, err := n.get()
	if err != nil {
		return err
	}
	if raw.frozen {
		return ErrFrozen
	}
	raw.kind = KindArray
	raw.value = nil
	return nil
}

// Link attaches target as a shared tail of n under key. target keeps every
// existing owner.
func (n Node) Link(key string, target Node) error {
	raw, err := n.get()
	if err != nil {
		return err
	}
	if _, err := target.get(); err != nil {
		return err
	}
	if raw.frozen {
		return ErrFrozen
	}
	if _, ok := raw.tails[key]; ok {
		return fmt.Errorf("%w: %q", ErrTailExists, key)
	}
	if n.tree.isAncestor(target.id, n.id) {
		return ErrCycle
	}
	shared := n.tree.nodes[target.id]
	shared.heads = append(shared.heads, n.id)
	n.tree.addTail(raw, key, target.id)
	return nil
}

// Refer shares into n every tail of the node at p that n lacks, recursing
// where both sides hold a container under the same key.
func (n Node) Refer(p path.Path) error {
	if _, err := n.get(); err != nil {
		return err
	}
	ref, err := n.tree.Select(p)
	if err != nil {
		return err
	}
	return n.refer(ref)
}

func (n Node) refer(ref Node) error {
	if n.Same(ref) {
		return nil
	}
	for _, key := range ref.Tails() {
		refTail, _ := ref.Tail(key)
		local, ok := n.Tail(key)
		if !ok {
			if err := n.Link(key, refTail); err != nil {
				return err
			}
			continue
		}
		if local.Kind() != KindLeaf && refTail.Kind() != KindLeaf {
			if err := local.refer(refTail); err != nil {
				return err
			}
		}
	}
	return nil
}

// Grafting moves a tail of one node onto another.
type Grafting struct {
	from Node
	key  string
}

// Graft starts moving the tail stored under key.
func (n Node) Graft(key string) Grafting {
	return Grafting{from: n, key: key}
}

// Onto detaches the tail and attaches it under the node at p, keeping its
// key.
func (g Grafting) Onto(p path.Path) error {
	raw, err := g.from.get()
	if err != nil {
		return err
	}
	id, ok := raw.tails[g.key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTailNotFound, g.key)
	}
	if raw.frozen {
		return ErrFrozen
	}
	target, err := g.from.tree.Select(p)
	if err != nil {
		return err
	}
	targetRaw, _ := target.get()
	if targetRaw.frozen {
		return ErrFrozen
	}
	if _, exists := targetRaw.tails[g.key]; exists {
		return fmt.Errorf("%w: %q", ErrTailExists, g.key)
	}
	if g.from.tree.isAncestor(id, target.id) {
		return ErrCycle
	}
	moved := g.from.tree.nodes[id]
	g.from.tree.removeTail(raw, g.key)
	for i, head := range moved.heads {
		if head == g.from.id {
			moved.heads[i] = target.id
			break
		}
	}
	g.from.tree.addTail(targetRaw, g.key, id)
	return nil
}

// Rootify detaches the tail under key and turns it into a root with the same
// key.
func (n Node) Rootify(key string) (Node, error) {
	raw, err := n.get()
	if err != nil {
		return Node{}, err
	}
	id, ok := raw.tails[key]
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrTailNotFound, key)
	}
	if raw.frozen {
		return Node{}, ErrFrozen
	}
	if n.tree.HasRoot(key) {
		return Node{}, fmt.Errorf("%w: %q", ErrRootExists, key)
	}
	moved := n.tree.nodes[id]
	if len(moved.heads) > 1 {
		return Node{}, fmt.Errorf("tree: cannot rootify shared node %q", key)
	}
	n.tree.removeTail(raw, key)
	moved.heads = nil
	moved.rooted = true
	moved.rootKey = key
	n.tree.roots[key] = id
	return n.tree.handle(id), nil
}

// FreezeContent marks the node and its whole subtree immutable.
func (n Node) FreezeContent() {
	raw, err := n.get()
	if err != nil {
		return
	}
	n.tree.freeze(raw)
}

func (t *Tree) freeze(raw *node) {
	if raw.frozen {
		return
	}
	raw.frozen = true
	for _, key := range raw.order {
		t.freeze(t.nodes[raw.tails[key]])
	}
}
