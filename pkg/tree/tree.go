package tree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/path"
)

var (
	ErrRootExists   = errors.New("tree: root already exists")
	ErrRootNotFound = errors.New("tree: root not found")
	ErrNodeNotFound = errors.New("tree: node not found")
	ErrStaleNode    = errors.New("tree: node handle is stale")
	ErrTailExists   = errors.New("tree: tail already exists")
	ErrTailNotFound = errors.New("tree: tail not found")
	ErrFrozen       = errors.New("tree: node content is frozen")
	ErrCycle        = errors.New("tree: graft would create a cycle")
)

// Kind describes how a node composes its content.
type Kind int

const (
	KindLeaf Kind = iota
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "leaf"
	}
}

const noNode = -1

type node struct {
	key     string
	rootKey string
	rooted  bool
	heads   []int
	tails   map[string]int
	order   []string
	kind    Kind
	value   any
	frozen  bool
	gen     uint64
}

func (n *node) alive() bool {
	return n != nil && (n.rooted || len(n.heads) > 0)
}

// Tree is a forest of arena-allocated nodes. It is not safe for concurrent
// use.
type Tree struct {
	nodes []*node
	free  []int
	roots map[string]int
	gen   uint64
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{roots: map[string]int{}}
}

// SproutRoot creates a root node under rootKey, optionally seeded with
// content, and returns it.
func (t *Tree) SproutRoot(rootKey string, content any) (Node, error) {
	if rootKey == "" {
		return Node{}, errors.New("tree: root key must not be empty")
	}
	if _, ok := t.roots[rootKey]; ok {
		return Node{}, fmt.Errorf("%w: %q", ErrRootExists, rootKey)
	}
	id := t.alloc(rootKey)
	n := t.nodes[id]
	n.rooted = true
	n.rootKey = rootKey
	t.roots[rootKey] = id
	if err := t.fill(id, content); err != nil {
		_ = t.CutRoot(rootKey)
		return Node{}, err
	}
	return t.handle(id), nil
}

// Select returns the node addressed by p, whose first segment is a root key.
func (t *Tree) Select(p path.Path) (Node, error) {
	if len(p) == 0 {
		return Node{}, path.ErrEmptyPath
	}
	id, ok := t.roots[p[0]]
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrRootNotFound, p[0])
	}
	for i, segment := range p[1:] {
		next, ok := t.nodes[id].tails[segment]
		if !ok {
			return Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, p[:i+2].String())
		}
		id = next
	}
	return t.handle(id), nil
}

// HasRoot reports whether rootKey names a root.
func (t *Tree) HasRoot(rootKey string) bool {
	_, ok := t.roots[rootKey]
	return ok
}

// RootKeys lists root keys in sorted order.
func (t *Tree) RootKeys() []string {
	keys := make([]string, 0, len(t.roots))
	for key := range t.roots {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RenameRoot moves a root to a new key. Node ids are unaffected.
func (t *Tree) RenameRoot(from, to string) error {
	id, ok := t.roots[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRootNotFound, from)
	}
	if _, exists := t.roots[to]; exists {
		return fmt.Errorf("%w: %q", ErrRootExists, to)
	}
	delete(t.roots, from)
	t.roots[to] = id
	t.nodes[id].rootKey = to
	return nil
}

// CutRoot removes a root. Descendants are freed unless another root still
// shares them.
func (t *Tree) CutRoot(rootKey string) error {
	id, ok := t.roots[rootKey]
	if !ok {
		return fmt.Errorf("%w: %q", ErrRootNotFound, rootKey)
	}
	delete(t.roots, rootKey)
	t.release(id, noNode)
	return nil
}

// Len returns the number of live nodes.
func (t *Tree) Len() int {
	return len(t.nodes) - len(t.free)
}

func (t *Tree) alloc(key string) int {
	t.gen++
	n := &node{key: key, tails: map[string]int{}, gen: t.gen}
	if len(t.free) > 0 {
		id := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// release drops the ownership of id held by owner (noNode for a root
// mapping) and frees the node once nothing owns it.
func (t *Tree) release(id, owner int) {
	n := t.nodes[id]
	if n == nil {
		return
	}
	if owner == noNode {
		n.rooted = false
		n.rootKey = ""
	} else {
		n.heads = removeOwner(n.heads, owner)
	}
	if n.alive() {
		return
	}
	for _, key := range n.order {
		t.release(n.tails[key], id)
	}
	t.nodes[id] = nil
	t.free = append(t.free, id)
}

func removeOwner(heads []int, owner int) []int {
	for i, head := range heads {
		if head == owner {
			return append(heads[:i:i], heads[i+1:]...)
		}
	}
	return heads
}

func (t *Tree) fill(id int, content any) error {
	n := t.nodes[id]
	switch typed := content.(type) {
	case map[string]any:
		n.kind = KindObject
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if _, err := t.attachNew(id, key, typed[key]); err != nil {
				return err
			}
		}
	case []any:
		n.kind = KindArray
		for i, item := range typed {
			if _, err := t.attachNew(id, fmt.Sprint(i), item); err != nil {
				return err
			}
		}
	default:
		if common.IsContainer(content) {
			return t.fill(id, common.Normalize(content))
		}
		n.kind = KindLeaf
		n.value = content
	}
	return nil
}

func (t *Tree) attachNew(headID int, key string, content any) (int, error) {
	head := t.nodes[headID]
	if head.frozen {
		return noNode, ErrFrozen
	}
	if _, ok := head.tails[key]; ok {
		return noNode, fmt.Errorf("%w: %q", ErrTailExists, key)
	}
	id := t.alloc(key)
	// alloc may grow the arena; re-read head.
	head = t.nodes[headID]
	t.nodes[id].heads = []int{headID}
	t.addTail(head, key, id)
	if err := t.fill(id, content); err != nil {
		return noNode, err
	}
	return id, nil
}

func (t *Tree) addTail(head *node, key string, id int) {
	if head.kind == KindLeaf {
		head.kind = KindObject
		head.value = nil
	}
	head.tails[key] = id
	head.order = append(head.order, key)
}

func (t *Tree) removeTail(head *node, key string) {
	delete(head.tails, key)
	for i, k := range head.order {
		if k == key {
			head.order = append(head.order[:i:i], head.order[i+1:]...)
			break
		}
	}
}

func (t *Tree) handle(id int) Node {
	return Node{tree: t, id: id, gen: t.nodes[id].gen}
}

func (t *Tree) content(id int) any {
	n := t.nodes[id]
	switch n.kind {
	case KindObject:
		out := make(map[string]any, len(n.order))
		for _, key := range n.order {
			out[key] = t.content(n.tails[key])
		}
		return out
	case KindArray:
		out := make([]any, 0, len(n.order))
		for _, key := range n.order {
			out = append(out, t.content(n.tails[key]))
		}
		return out
	default:
		return common.Clone(n.value)
	}
}

func (t *Tree) isAncestor(ancestor, id int) bool {
	if ancestor == id {
		return true
	}
	for _, head := range t.nodes[id].heads {
		if t.isAncestor(ancestor, head) {
			return true
		}
	}
	return false
}
