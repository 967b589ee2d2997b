package data

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/descriptor"
	"github.com/goliatone/go-composite/pkg/path"
	"github.com/hashicorp/go-multierror"
)

// container holds the slots of one object or array. It is the Host that
// descriptors assign themselves to.
type container struct {
	array bool
	keys  []string
	slots map[string]descriptor.Slot
}

func newContainer(array bool) *container {
	return &container{array: array, slots: map[string]descriptor.Slot{}}
}

func (ct *container) Slot(key string) (descriptor.Slot, bool) {
	slot, ok := ct.slots[key]
	return slot, ok
}

func (ct *container) ReplaceSlot(key string, slot descriptor.Slot) error {
	if _, ok := ct.slots[key]; !ok {
		return fmt.Errorf("%w: %q", ErrPathNotFound, key)
	}
	ct.slots[key] = slot
	return nil
}

func (ct *container) put(key string, slot descriptor.Slot) {
	if _, ok := ct.slots[key]; !ok {
		ct.keys = append(ct.keys, key)
	}
	ct.slots[key] = slot
}

// truncate drops keys at and beyond n and returns them.
func (ct *container) truncate(n int) []string {
	if n >= len(ct.keys) {
		return nil
	}
	dropped := append([]string(nil), ct.keys[n:]...)
	for _, key := range dropped {
		delete(ct.slots, key)
	}
	ct.keys = ct.keys[:n]
	return dropped
}

// cell returns the base cell stored under key, looking through descriptors.
func (ct *container) cell(key string) (*cell, bool) {
	slot, ok := ct.slots[key]
	if !ok {
		return nil, false
	}
	c, ok := descriptor.Base(slot).(*cell)
	return c, ok
}

// plain composes the container into plain values, reading through every
// slot so computables are evaluated.
func (ct *container) plain() any {
	if ct.array {
		out := make([]any, 0, len(ct.keys))
		for _, key := range ct.keys {
			out = append(out, ct.slots[key].Get())
		}
		return out
	}
	out := make(map[string]any, len(ct.keys))
	for _, key := range ct.keys {
		out[key] = ct.slots[key].Get()
	}
	return out
}

// cell is the innermost slot for one key. Its value is a scalar or a
// nested *container.
type cell struct {
	el    *Element
	path  path.Path
	value any
}

func (c *cell) Get() any {
	if ct, ok := c.value.(*container); ok {
		return ct.plain()
	}
	return c.value
}

func (c *cell) Set(value any) error {
	return c.el.assign(c, common.Normalize(value))
}

func (c *cell) container() (*container, bool) {
	ct, ok := c.value.(*container)
	return ct, ok
}

// assign writes a normalized value into c. Containers of the same kind are
// overwritten key by key through each child's slot so nested descriptors
// intercept. Objects keep keys the value does not mention; arrays take the
// value's length.
func (el *Element) assign(c *cell, value any) error {
	current, isContainer := c.container()
	if isContainer && common.IsContainer(value) && current.array == common.IsArray(value) {
		return el.overwrite(c.path, current, value)
	}
	if isContainer {
		if err := el.dropDescendants(c.path, current.keys); err != nil {
			return err
		}
	}
	next, err := el.build(c.path, value)
	if err != nil {
		return err
	}
	c.value = next
	el.record(c.path)
	return nil
}

func (el *Element) overwrite(at path.Path, ct *container, value any) error {
	var rejected *multierror.Error
	write := func(key string, item any) error {
		id := at.Append(key)
		slot, ok := ct.slots[key]
		if !ok {
			return el.addKey(ct, at, key, item)
		}
		if el.registry.IsComputable(id.String()) {
			el.reporter.Warn1("skipping computable key", "path", id.String())
			return nil
		}
		err := slot.Set(item)
		if errors.Is(err, descriptor.ErrRejected) {
			rejected = multierror.Append(rejected, err)
			return nil
		}
		return err
	}
	if ct.array {
		items := value.([]any)
		for i, item := range items {
			if err := write(strconv.Itoa(i), item); err != nil {
				return err
			}
		}
		if dropped := ct.truncate(len(items)); len(dropped) > 0 {
			if err := el.dropDescendants(at, dropped); err != nil {
				return err
			}
			el.record(at)
		}
	} else {
		fields := value.(map[string]any)
		for _, key := range sortedKeys(fields) {
			if err := write(key, fields[key]); err != nil {
				return err
			}
		}
	}
	return rejected.ErrorOrNil()
}

// build turns a normalized value into cell content. Containers become
// nested containers of cells.
func (el *Element) build(at path.Path, value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		ct := newContainer(false)
		for _, key := range sortedKeys(typed) {
			child, err := el.build(at.Append(key), typed[key])
			if err != nil {
				return nil, err
			}
			ct.put(key, &cell{el: el, path: at.Append(key), value: child})
		}
		return ct, nil
	case []any:
		ct := newContainer(true)
		for i, item := range typed {
			key := strconv.Itoa(i)
			child, err := el.build(at.Append(key), item)
			if err != nil {
				return nil, err
			}
			ct.put(key, &cell{el: el, path: at.Append(key), value: child})
		}
		return ct, nil
	default:
		if common.IsFunction(value) {
			return nil, fmt.Errorf("data: %s: functions are not storable values", at)
		}
		return value, nil
	}
}

// addKey creates key under ct, which lives at at. Required and
// stronglyTyped constraints on at carry over to the new subtree.
func (el *Element) addKey(ct *container, at path.Path, key string, value any) error {
	if ct.array {
		if want := strconv.Itoa(len(ct.keys)); key != want {
			return fmt.Errorf("%w: %s expects index %s, got %s", ErrIndexOutOfRange, at, want, key)
		}
	}
	childPath := at.Append(key)
	content, err := el.build(childPath, value)
	if err != nil {
		return err
	}
	ct.put(key, &cell{el: el, path: childPath, value: content})
	el.record(childPath)
	return el.inherit(at, childPath)
}

// inherit copies the parent's required and stronglyTyped constraints onto
// child and, for containers, onto child's descendants.
func (el *Element) inherit(parent, child path.Path) error {
	c, err := el.registry.Constrainable(parent.String())
	if err != nil {
		return nil
	}
	var names []string
	for _, name := range []string{descriptor.ConstraintRequired, descriptor.ConstraintStronglyTyped} {
		if c.Has(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return el.constrainTree(child, names)
}

// constrainTree applies preset constraints to p and every descendant.
func (el *Element) constrainTree(p path.Path, names []string) error {
	for _, name := range names {
		if err := el.constrain(p, name, presetConstraint(name)); err != nil {
			return err
		}
	}
	parent, key, err := el.locate(p)
	if err != nil {
		return err
	}
	c, ok := parent.cell(key)
	if !ok {
		return nil
	}
	ct, ok := c.container()
	if !ok {
		return nil
	}
	for _, childKey := range ct.keys {
		if el.registry.IsComputable(p.Append(childKey).String()) {
			continue
		}
		if err := el.constrainTree(p.Append(childKey), names); err != nil {
			return err
		}
	}
	return nil
}

// dropDescendants removes descriptors registered beneath at for keys.
func (el *Element) dropDescendants(at path.Path, keys []string) error {
	var result *multierror.Error
	for _, key := range keys {
		result = multierror.Append(result, el.registry.RemoveUnder(at.Append(key).String()))
	}
	return result.ErrorOrNil()
}

// locate resolves p to the container holding its last segment.
func (el *Element) locate(p path.Path) (*container, string, error) {
	if len(p) == 0 {
		return nil, "", path.ErrEmptyPath
	}
	ct := el.content
	for i, segment := range p[:len(p)-1] {
		if el.registry.IsComputable(p[:i+1].String()) {
			return nil, "", fmt.Errorf("%w: %s", ErrComputableTarget, p[:i+1])
		}
		c, ok := ct.cell(segment)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrPathNotFound, p[:i+1])
		}
		next, ok := c.container()
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrNotContainer, p[:i+1])
		}
		ct = next
	}
	key := p[len(p)-1]
	if _, ok := ct.slots[key]; !ok {
		return ct, key, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}
	return ct, key, nil
}

// containerAt resolves p to the container stored there.
func (el *Element) containerAt(p path.Path) (*container, error) {
	parent, key, err := el.locate(p)
	if err != nil {
		return nil, err
	}
	if el.registry.IsComputable(p.String()) {
		return nil, fmt.Errorf("%w: %s", ErrComputableTarget, p)
	}
	c, ok := parent.cell(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
	}
	ct, ok := c.container()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotContainer, p)
	}
	return ct, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
