package composite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/data"
	"github.com/goliatone/go-composite/pkg/logging"
	"github.com/goliatone/go-composite/pkg/path"
	"github.com/hashicorp/go-multierror"
)

// Product is built by a Factory. Its members are fixed at construction and
// its state only changes through the state methods. A Product is not safe
// for concurrent use.
type Product struct {
	id       string
	el       *data.Element
	reporter *logging.Reporter
	members  map[string]any
	accessor *data.Accessor
	initial  map[string]any
}

// ID is the product's unique id.
func (p *Product) ID() string { return p.id }

// Element exposes the data element holding the product's state.
func (p *Product) Element() *data.Element { return p.el }

// Call invokes the method member name.
func (p *Product) Call(name string, args ...any) (any, error) {
	member, ok := p.members[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMember, name)
	}
	method, ok := asMethod(member)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotMethod, name, common.TypeOf(member))
	}
	return method(p, args...)
}

// Get returns the top-level state value or member under name. State keys
// shadow members. Plain values are returned as copies.
func (p *Product) Get(name string) (any, bool) {
	if p.accessor != nil {
		if value, err := p.accessor.Get(name); err == nil {
			return common.Clone(value), true
		}
	}
	member, ok := p.members[name]
	if !ok {
		return nil, false
	}
	if common.IsFunction(member) {
		return member, true
	}
	return common.Clone(member), true
}

// Has reports whether name is a state key or member.
func (p *Product) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Keys lists state keys and member names in sorted order.
func (p *Product) Keys() []string {
	all := make(map[string]any, len(p.members))
	for key := range p.members {
		all[key] = nil
	}
	if p.accessor != nil {
		for _, key := range p.accessor.Keys() {
			all[key] = nil
		}
	}
	return sortedKeys(all)
}

// GetStateCursor returns a cursor on the state root.
func (p *Product) GetStateCursor() (*data.Cursor, error) {
	return p.el.Select(StateRoot)
}

// GetStateAsObject returns a detached copy of the current state.
func (p *Product) GetStateAsObject() (map[string]any, error) {
	cursor, err := p.GetStateCursor()
	if err != nil {
		return nil, err
	}
	object, err := cursor.ToObject()
	if err != nil {
		return nil, err
	}
	state, ok := object.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrStateShape, common.TypeOf(object))
	}
	return state, nil
}

// ReduceState overwrites state entries present in reducer. Every reducer key
// must already exist with the same container shape. Computable and
// observable keys are skipped with a warning. The result reports whether no
// write was vetoed by a constraint.
func (p *Product) ReduceState(reducer map[string]any) (bool, error) {
	return p.mutate(nil, reducer, false)
}

// ReconfigState is ReduceState that may also replace a nil entry with a
// value of any shape.
func (p *Product) ReconfigState(reconfiguration map[string]any) error {
	_, err := p.mutate(nil, reconfiguration, true)
	return err
}

// ReduceStateAtPath reduces only the entry at pathID, relative to the state
// root.
func (p *Product) ReduceStateAtPath(reducer any, pathID any) (bool, error) {
	at, err := path.From(pathID)
	if err != nil {
		return false, err
	}
	return p.mutate(at, reducer, false)
}

// ReconfigStateAtPath reconfigures only the entry at pathID, relative to the
// state root.
func (p *Product) ReconfigStateAtPath(reconfiguration any, pathID any) error {
	at, err := path.From(pathID)
	if err != nil {
		return err
	}
	_, err = p.mutate(at, reconfiguration, true)
	return err
}

// ResetState writes back every top-level entry the product was built with.
// Computables are left alone and history is kept.
func (p *Product) ResetState() (bool, error) {
	cursor, err := p.GetStateCursor()
	if err != nil {
		return false, err
	}
	applied := true
	for _, key := range sortedKeys(p.initial) {
		if p.skipped(path.Path{key}) {
			continue
		}
		value := p.initial[key]
		if common.IsContainer(value) && common.IsEmpty(value) {
			p.reporter.Warn1("reset: skipping empty container", "key", key, "product", p.id)
			continue
		}
		ok, err := cursor.TrySetContentItem(common.Clone(value), key)
		if err != nil {
			return false, err
		}
		applied = applied && ok
	}
	return applied, p.UpdateStateAccessor()
}

// FlushState drops the state history.
func (p *Product) FlushState() error {
	return p.el.Flush(StateRoot)
}

// UpdateStateAccessor refreshes the accessor Get and Keys read state from.
// The state methods call it themselves; writes made directly through
// GetStateCursor are only visible after calling it.
func (p *Product) UpdateStateAccessor() error {
	accessor, err := p.el.GetAccessor(StateRoot)
	if err != nil {
		return err
	}
	p.accessor = accessor
	return nil
}

func (p *Product) mutate(at path.Path, mutator any, grow bool) (bool, error) {
	state, err := p.GetStateAsObject()
	if err != nil {
		return false, err
	}
	if len(at) > 0 && p.skipped(at) {
		return true, nil
	}
	mutator = p.filter(at, common.Normalize(mutator))
	var current any = state
	if len(at) > 0 {
		if current, err = common.Retrieve(at).From(state); err != nil {
			return false, p.reporter.Fail(err)
		}
	}
	opts := []common.MutateOption{common.Strict(), common.WithMutateReporter(p.reporter)}
	if grow {
		opts = append(opts, common.AllowNullGrowth())
	}
	if current != nil || !grow {
		if _, err := common.Mutate(current, opts...).By(mutator); err != nil {
			return false, p.reporter.Fail(err)
		}
	}

	var applied bool
	if len(at) > 0 && !common.IsContainer(current) {
		applied, err = p.write(at.Parent(), at.Last(), mutator)
	} else {
		applied, err = p.apply(at, current, mutator)
	}
	if err != nil {
		return false, err
	}
	return applied, p.UpdateStateAccessor()
}

// apply writes mutator onto the container at, descending into entries whose
// shape matches so untouched siblings and nested descriptors stay in place.
func (p *Product) apply(at path.Path, current, mutator any) (bool, error) {
	applied := true
	step := func(key string, existing, next any) error {
		var ok bool
		var err error
		if common.IsContainer(next) && sameContainer(existing, next) {
			ok, err = p.apply(at.Append(key), existing, next)
		} else {
			ok, err = p.write(at, key, next)
		}
		applied = applied && ok
		return err
	}
	switch mut := mutator.(type) {
	case map[string]any:
		cur, _ := current.(map[string]any)
		for _, key := range sortedKeys(mut) {
			existing, ok := cur[key]
			if !ok {
				continue
			}
			if err := step(key, existing, mut[key]); err != nil {
				return false, err
			}
		}
	case []any:
		cur, _ := current.([]any)
		for i := 0; i < len(mut) && i < len(cur); i++ {
			if err := step(strconv.Itoa(i), cur[i], mut[i]); err != nil {
				return false, err
			}
		}
	}
	return applied, nil
}

func (p *Product) write(parent path.Path, key string, value any) (bool, error) {
	cursor, err := p.el.Select(p.statePath(parent))
	if err != nil {
		return false, err
	}
	return cursor.TrySetContentItem(value, key)
}

// filter drops entries addressing computable or observable state.
func (p *Product) filter(at path.Path, mutator any) any {
	switch typed := mutator.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			child := at.Append(key)
			if p.skipped(child) {
				continue
			}
			out[key] = p.filter(child, value)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			out[i] = p.filter(at.Append(strconv.Itoa(i)), value)
		}
		return out
	default:
		return mutator
	}
}

func (p *Product) skipped(at path.Path) bool {
	id := p.statePath(at).String()
	registry := p.el.Registry()
	if registry.IsComputable(id) || registry.IsObservable(id) {
		p.reporter.Warn1("skipping descriptor-managed state", "path", id, "product", p.id)
		return true
	}
	return false
}

func (p *Product) statePath(at path.Path) path.Path {
	return path.Path{StateRoot}.Append(at...)
}

func (p *Product) initialize() error {
	var result *multierror.Error
	for _, name := range sortedKeys(p.members) {
		if !strings.HasPrefix(name, InitializerPrefix) {
			continue
		}
		if _, ok := asMethod(p.members[name]); !ok {
			continue
		}
		if _, err := p.Call(name); err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s: %v", ErrInitializer, name, err))
		}
	}
	return result.ErrorOrNil()
}

func asMethod(member any) (Method, bool) {
	switch fn := member.(type) {
	case Method:
		return fn, fn != nil
	case func(*Product, ...any) (any, error):
		return fn, fn != nil
	default:
		return nil, false
	}
}

func sameContainer(a, b any) bool {
	return (common.IsObject(a) && common.IsObject(b)) || (common.IsArray(a) && common.IsArray(b))
}
