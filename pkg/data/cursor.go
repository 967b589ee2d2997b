package data

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/descriptor"
	"github.com/goliatone/go-composite/pkg/path"
)

// Cursor addresses one object or array of an Element. It holds no content
// of its own; every call reads the element's current state.
type Cursor struct {
	el   *Element
	path path.Path
}

func (c *Cursor) Path() path.Path { return c.path.Clone() }

// RootKey is the root the cursor belongs to.
func (c *Cursor) RootKey() string { return c.path.Root() }

// IsImmutable reports whether the cursor's root keeps history.
func (c *Cursor) IsImmutable() bool { return c.el.IsImmutable(c.path.Root()) }

// Keys lists the keys of the addressed container in order.
func (c *Cursor) Keys() ([]string, error) {
	ct, err := c.el.containerAt(c.path)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), ct.keys...), nil
}

// Select returns a cursor on the container stored under key.
func (c *Cursor) Select(key any) (*Cursor, error) {
	segment, err := path.Segment(key)
	if err != nil {
		return nil, err
	}
	return c.el.Select(c.path.Append(segment))
}

// GetAccessor returns the live accessor for the cursor's path.
func (c *Cursor) GetAccessor() (*Accessor, error) {
	return c.el.GetAccessor(c.path)
}

// SetContentItem creates or overwrites key with item. Container items are
// written key by key so nested descriptors apply. A write vetoed by a
// constraint is dropped without an error; use TrySetContentItem to observe
// it.
func (c *Cursor) SetContentItem(item, key any) error {
	_, err := c.TrySetContentItem(item, key)
	return err
}

// TrySetContentItem is SetContentItem reporting whether the whole write was
// accepted. Lenient elements log fatal errors instead of returning them.
func (c *Cursor) TrySetContentItem(item, key any) (bool, error) {
	applied, err := c.set(item, key)
	if err != nil {
		return false, c.el.reporter.Fail(err)
	}
	return applied, nil
}

func (c *Cursor) set(item, key any) (bool, error) {
	segment, err := path.Segment(key)
	if err != nil {
		return false, err
	}
	value := common.Normalize(item)
	if common.IsContainer(value) && common.IsEmpty(value) {
		return false, fmt.Errorf("%w: %s", ErrEmptyItem, c.path.Append(segment))
	}
	ct, err := c.el.containerAt(c.path)
	if err != nil {
		return false, err
	}
	target := c.path.Append(segment)
	if c.el.registry.IsComputable(target.String()) {
		return false, fmt.Errorf("%w: %s", descriptor.ErrComputableWrite, target)
	}
	slot, ok := ct.slots[segment]
	if !ok {
		if err := c.el.addKey(ct, c.path, segment, value); err != nil {
			return false, err
		}
		return true, nil
	}
	err = slot.Set(value)
	if errors.Is(err, descriptor.ErrRejected) {
		writesRejectedTotal.Inc()
		c.el.reporter.Warn0("write rejected", "path", target.String(), "reason", err.Error())
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetContentItem returns the value under key. Containers are returned as
// detached copies.
func (c *Cursor) GetContentItem(key any) (any, error) {
	slot, _, err := c.slot(key)
	if err != nil {
		return nil, err
	}
	return common.Clone(slot.Get()), nil
}

func (c *Cursor) slot(key any) (descriptor.Slot, path.Path, error) {
	segment, err := path.Segment(key)
	if err != nil {
		return nil, nil, err
	}
	target := c.path.Append(segment)
	parent, last, err := c.el.locate(target)
	if err != nil {
		return nil, nil, err
	}
	return parent.slots[last], target, nil
}

// RecallContentItem returns key as it was offset snapshots ago; offset 0 is
// the state before the most recent rebuild. Only immutable roots keep
// snapshots.
func (c *Cursor) RecallContentItem(key any, offset int) (any, error) {
	segment, err := path.Segment(key)
	if err != nil {
		return nil, err
	}
	st, err := c.history()
	if err != nil {
		return nil, err
	}
	index := st.timeIndex - 1 - offset
	if offset < 0 || index < st.oldest {
		return nil, fmt.Errorf("%w: %d", ErrNoSnapshot, offset)
	}
	node, err := c.el.mmap.Select(c.snapshotPath(historyKey(c.path.Root(), index), segment))
	if err != nil {
		return nil, fmt.Errorf("%w: %s at offset %d", ErrPathNotFound, c.path.Append(segment), offset)
	}
	return node.Content(), nil
}

// RecallAllContentItems returns key from every retained snapshot that holds
// it, oldest first. A freshly flushed root has none.
func (c *Cursor) RecallAllContentItems(key any) ([]any, error) {
	segment, err := path.Segment(key)
	if err != nil {
		return nil, err
	}
	st, err := c.history()
	if err != nil {
		return nil, err
	}
	items := []any{}
	for i := st.oldest; i < st.timeIndex; i++ {
		node, err := c.el.mmap.Select(c.snapshotPath(historyKey(c.path.Root(), i), segment))
		if err != nil {
			continue
		}
		items = append(items, node.Content())
	}
	return items, nil
}

func (c *Cursor) history() (*rootState, error) {
	rootKey := c.path.Root()
	st, err := c.el.root(rootKey)
	if err != nil {
		return nil, err
	}
	if !st.immutable {
		return nil, fmt.Errorf("%w: %q", ErrMutableRoot, rootKey)
	}
	if err := c.el.sync(rootKey); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Cursor) snapshotPath(snapshot, segment string) path.Path {
	p := path.Path{snapshot}
	p = append(p, c.path[1:]...)
	return p.Append(segment)
}

// GetSchema derives the structure of the addressed container: leaves map to
// their type name, or to "computable" / "observable" when described so.
func (c *Cursor) GetSchema() (any, error) {
	ct, err := c.el.containerAt(c.path)
	if err != nil {
		return nil, err
	}
	return c.el.schema(c.path, ct), nil
}

func (el *Element) schema(at path.Path, ct *container) any {
	entry := func(key string) any {
		id := at.Append(key)
		switch {
		case el.registry.IsComputable(id.String()):
			return string(descriptor.KindComputable)
		case el.registry.IsObservable(id.String()):
			return string(descriptor.KindObservable)
		}
		c, ok := ct.cell(key)
		if !ok {
			return "null"
		}
		if nested, ok := c.container(); ok {
			return el.schema(id, nested)
		}
		return common.TypeOf(c.value)
	}
	if ct.array {
		out := make([]any, 0, len(ct.keys))
		for _, key := range ct.keys {
			out = append(out, entry(key))
		}
		return out
	}
	out := make(map[string]any, len(ct.keys))
	for _, key := range ct.keys {
		out[key] = entry(key)
	}
	return out
}

// ToObject returns a detached plain copy of the addressed container.
func (c *Cursor) ToObject() (any, error) {
	ct, err := c.el.containerAt(c.path)
	if err != nil {
		return nil, err
	}
	return common.Clone(ct.plain()), nil
}

// String renders the addressed container as JSON.
func (c *Cursor) String() string {
	object, err := c.ToObject()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", c.path, err)
	}
	raw, err := json.Marshal(object)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", c.path, err)
	}
	return string(raw)
}
