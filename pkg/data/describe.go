package data

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-composite/pkg/descriptor"
	"github.com/goliatone/go-composite/pkg/path"
)

// ConditionSpec reroutes an observable's payload to EventID. Trigger wins
// over Expression, which is evaluated with the observed key as variable.
type ConditionSpec struct {
	EventID    string
	Trigger    descriptor.Trigger
	Expression string
}

// ObservableSpec describes an observable key.
type ObservableSpec struct {
	Conditions  []ConditionSpec
	Subscribers map[string]descriptor.Handler
}

// ComputableSpec describes a computable key. Contexts maps a variable name
// to a path relative to the root. Compute wins over Expression.
type ComputableSpec struct {
	Contexts   map[string]string
	Compute    descriptor.ComputeFunc
	Expression string
}

// Description attaches descriptors to one key of a cursor.
type Description struct {
	cursor *Cursor
	key    any
}

// DescribeItem starts describing the item stored under key.
func (c *Cursor) DescribeItem(key any) *Description {
	return &Description{cursor: c, key: key}
}

func (d *Description) apply(fn func(el *Element, target path.Path) error) error {
	el := d.cursor.el
	segment, err := path.Segment(d.key)
	if err != nil {
		return el.reporter.Fail(err)
	}
	target := d.cursor.path.Append(segment)
	if _, _, err := el.locate(target); err != nil {
		return el.reporter.Fail(err)
	}
	return el.reporter.Fail(fn(el, target))
}

// AsRequired constrains the item, and every item nested in it, to be
// defined and non-empty.
func (d *Description) AsRequired() error {
	return d.apply(func(el *Element, target path.Path) error {
		return el.constrainTree(target, []string{descriptor.ConstraintRequired})
	})
}

// AsStronglyTyped constrains the item, and every item nested in it, to keep
// its type.
func (d *Description) AsStronglyTyped() error {
	return d.apply(func(el *Element, target path.Path) error {
		return el.constrainTree(target, []string{descriptor.ConstraintStronglyTyped})
	})
}

func (d *Description) AsOneOf(values ...any) error {
	return d.AsConstrainable(descriptor.ConstraintOneOf, descriptor.OneOf(values...))
}

func (d *Description) AsOneTypeOf(types ...string) error {
	return d.AsConstrainable(descriptor.ConstraintOneTypeOf, descriptor.OneTypeOf(types...))
}

// AsBounded constrains numbers, and string lengths, to [lower, upper].
func (d *Description) AsBounded(lower, upper float64) error {
	if lower > upper {
		return d.cursor.el.reporter.Errorf("data: bounded lower %v exceeds upper %v", lower, upper)
	}
	return d.AsConstrainable(descriptor.ConstraintBounded, descriptor.Bounded(lower, upper))
}

// AsConstrainable adds, or replaces, a named constraint.
func (d *Description) AsConstrainable(name string, constraint descriptor.Constraint) error {
	return d.apply(func(el *Element, target path.Path) error {
		if name == "" {
			return fmt.Errorf("data: %s: constraint name must not be empty", target)
		}
		return el.constrain(target, name, constraint)
	})
}

// AsObservable makes the item observable, or adds conditions and
// subscribers to an existing observable.
func (d *Description) AsObservable(spec ObservableSpec) error {
	return d.apply(func(el *Element, target path.Path) error {
		return el.observe(target, spec)
	})
}

// AsComputable replaces the item with a value derived from other paths. A
// computable item cannot be described again.
func (d *Description) AsComputable(spec ComputableSpec) error {
	return d.apply(func(el *Element, target path.Path) error {
		return el.compute(target, spec)
	})
}

func presetConstraint(name string) descriptor.Constraint {
	switch name {
	case descriptor.ConstraintRequired:
		return descriptor.Required()
	case descriptor.ConstraintStronglyTyped:
		return descriptor.StronglyTyped()
	default:
		return nil
	}
}

func (el *Element) constrain(target path.Path, name string, constraint descriptor.Constraint) error {
	id := target.String()
	c, err := el.registry.Constrainable(id)
	if err != nil {
		parent, key, err := el.locate(target)
		if err != nil {
			return err
		}
		c = descriptor.NewConstrainable(id, key, el.descriptorOptions(target.Root())...)
		if err := el.registry.AddConstrainable(c); err != nil {
			return err
		}
		if err := c.AssignTo(parent); err != nil {
			_ = el.registry.RemoveConstrainable(id)
			return err
		}
	}
	if c.Has(name) {
		el.reporter.Warn1("constraint replaced", "path", id, "constraint", name)
	}
	c.Constrain(name, constraint)
	return nil
}

func (el *Element) observe(target path.Path, spec ObservableSpec) error {
	id := target.String()
	o, err := el.registry.Observable(id)
	if err != nil {
		parent, key, err := el.locate(target)
		if err != nil {
			return err
		}
		o = descriptor.NewObservable(id, key, el.registry.Subject(), el.descriptorOptions(target.Root())...)
		if err := el.registry.AddObservable(o); err != nil {
			return err
		}
		if err := o.AssignTo(parent); err != nil {
			_ = el.registry.RemoveObservable(id)
			return err
		}
	} else {
		el.reporter.Warn1("augmenting observable", "path", id)
	}
	for _, condition := range spec.Conditions {
		trigger := condition.Trigger
		if trigger == nil && condition.Expression != "" {
			trigger = descriptor.ExpressionTrigger(el.runner, condition.Expression, id+"#"+condition.EventID)
		}
		if err := o.AddCondition(condition.EventID, trigger); err != nil {
			return err
		}
	}
	handlerKeys := make([]string, 0, len(spec.Subscribers))
	for handlerKey := range spec.Subscribers {
		handlerKeys = append(handlerKeys, handlerKey)
	}
	sort.Strings(handlerKeys)
	for _, handlerKey := range handlerKeys {
		if err := o.Subscribe(handlerKey, spec.Subscribers[handlerKey]); err != nil {
			return err
		}
	}
	return nil
}

func (el *Element) compute(target path.Path, spec ComputableSpec) error {
	id := target.String()
	if el.registry.IsComputable(id) {
		return fmt.Errorf("%w: %s", descriptor.ErrDescriptorExists, id)
	}
	compute := spec.Compute
	if compute == nil {
		if spec.Expression == "" {
			return fmt.Errorf("data: %s: computable needs a compute function or expression", id)
		}
		compute = descriptor.ExpressionCompute(el.runner, spec.Expression, id)
	}
	root := path.Path{target.Root()}
	getters := make(map[string]descriptor.Getter, len(spec.Contexts))
	for name, raw := range spec.Contexts {
		rel, err := path.Parse(raw)
		if err != nil {
			return fmt.Errorf("data: %s: context %q: %w", id, name, err)
		}
		source := append(root.Clone(), rel...)
		if source.Equal(target) {
			return fmt.Errorf("data: %s: context %q refers to itself", id, name)
		}
		if _, _, err := el.locate(source); err != nil {
			return fmt.Errorf("data: %s: context %q: %w", id, name, err)
		}
		getters[name] = el.getter(source)
	}
	parent, key, err := el.locate(target)
	if err != nil {
		return err
	}
	c, err := descriptor.NewComputable(id, key, getters, compute, el.descriptorOptions(target.Root())...)
	if err != nil {
		return err
	}
	if err := el.registry.AddComputable(c); err != nil {
		return err
	}
	if err := c.AssignTo(parent); err != nil {
		_ = el.registry.RemoveComputable(id)
		return err
	}
	if nested, ok := parent.cell(key); ok {
		if ct, ok := nested.container(); ok {
			if err := el.dropDescendants(target, ct.keys); err != nil {
				return err
			}
		}
		nested.value = nil
	}
	el.record(target)
	return nil
}

// getter reads the live value at p, or nil once p no longer exists.
func (el *Element) getter(p path.Path) descriptor.Getter {
	return func() any {
		parent, key, err := el.locate(p)
		if err != nil {
			el.reporter.Warn1("computable context missing", "path", p.String(), "error", err)
			return nil
		}
		return parent.slots[key].Get()
	}
}
