// Package composite builds products from composable definitions. A product
// mixes shared template members with per-product enclosures and owns a
// private data element holding its state under the "state" root.
package composite

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/data"
)

// Composite is an immutable composition of enclosures, template members and
// an exclusion policy.
type Composite struct {
	enclosures map[string]any
	template   map[string]any
	exclusion  common.Exclusion
	override   common.Override
}

// New builds a Composite from def. Maps in def are copied.
func New(def Definition) *Composite {
	enclosures := make(map[string]any, len(def.Enclosures))
	for name, enclosure := range def.Enclosures {
		if enclosure != nil {
			enclosures[name] = enclosure
		}
	}
	template := make(map[string]any, len(def.Template))
	for key, value := range def.Template {
		template[key] = value
	}
	return &Composite{
		enclosures: enclosures,
		template:   template,
		exclusion:  common.MergeExclusions(def.Exclusion),
		override:   def.Override,
	}
}

func (c *Composite) mixing() []common.MixOption {
	return []common.MixOption{common.WithOverride(c.override)}
}

// Compose folds others left to right and then c itself into a new
// Composite. Later composites win member collisions, subject to c's
// override precedence. Exclusion policies are merged.
func (c *Composite) Compose(others ...*Composite) *Composite {
	enclosures := map[string]any{}
	template := map[string]any{}
	exclusions := make([]common.Exclusion, 0, len(others)+1)
	for _, other := range append(append([]*Composite(nil), others...), c) {
		if other == nil {
			continue
		}
		enclosures = common.Mix(enclosures, c.mixing()...).With(other.enclosures)
		template = common.Mix(template, c.mixing()...).With(other.template)
		exclusions = append(exclusions, other.exclusion)
	}
	return &Composite{
		enclosures: enclosures,
		template:   template,
		exclusion:  common.MergeExclusions(exclusions...),
		override:   c.override,
	}
}

// Mixin folds sources into a copy of c's template. A source is a plain
// object, an Enclosure, or any closure accepted by common.Reveal.
func (c *Composite) Mixin(sources ...any) (*Composite, error) {
	template := c.template
	for i, source := range sources {
		if enclosure, ok := source.(Enclosure); ok {
			source = (func() map[string]any)(enclosure)
		}
		members, err := common.Reveal(source)
		if err != nil {
			return nil, fmt.Errorf("%w: source %d: %v", ErrInvalidSource, i, err)
		}
		template = common.Mix(template, c.mixing()...).With(members)
	}
	return &Composite{
		enclosures: c.enclosures,
		template:   template,
		exclusion:  c.exclusion,
		override:   c.override,
	}, nil
}

// EnclosureNames lists enclosure names in sorted order.
func (c *Composite) EnclosureNames() []string {
	return sortedKeys(c.enclosures)
}

// TemplateKeys lists template member names in sorted order.
func (c *Composite) TemplateKeys() []string {
	return sortedKeys(c.template)
}

// Exclusion returns the merged exclusion policy.
func (c *Composite) Exclusion() common.Exclusion {
	return c.exclusion
}

// Resolve returns a Factory building products whose state starts from
// initialState. The bundle is validated once here; every product reads it
// into its own data element.
func (c *Composite) Resolve(initialState data.Bundle, opts ...Option) (Factory, error) {
	if _, err := data.FormatBundle(initialState); err != nil {
		return nil, err
	}
	cfg := applyOptions(opts)
	frozen := &Composite{
		enclosures: c.enclosures,
		template:   c.template,
		exclusion:  c.exclusion,
		override:   c.override,
	}
	return func(state map[string]any) (*Product, error) {
		return frozen.build(initialState, state, cfg)
	}, nil
}

func (c *Composite) build(initialState data.Bundle, override map[string]any, cfg resolveConfig) (*Product, error) {
	id := cfg.newID()
	el, err := data.New(cfg.dataOptions(id)...)
	if err != nil {
		return nil, err
	}
	reading, err := el.Read(initialState, StateRoot)
	if err != nil {
		return nil, err
	}
	if err := reading.AsImmutable(); err != nil {
		return nil, err
	}
	p := &Product{
		id:       id,
		el:       el,
		reporter: el.Reporter(),
	}
	members, err := c.members()
	if err != nil {
		return nil, err
	}
	p.members = members
	if len(override) > 0 {
		if _, err := p.ReduceState(override); err != nil {
			return nil, err
		}
	}
	if err := p.UpdateStateAccessor(); err != nil {
		return nil, err
	}
	for _, key := range p.accessor.Keys() {
		if _, shadowed := p.members[key]; shadowed {
			p.reporter.Warn1("state key shadows member", "key", key, "product", p.id)
		}
	}
	if err := p.FlushState(); err != nil {
		return nil, err
	}
	if err := p.initialize(); err != nil {
		return nil, err
	}
	if p.initial, err = p.GetStateAsObject(); err != nil {
		return nil, err
	}
	p.reporter.Info("product built", "product", p.id, "members", len(p.members))
	return p, nil
}

// members reveals every enclosure in name order, adds the state methods
// and mixes the result over the template. Exclusion applies to the whole
// product.
func (c *Composite) members() (map[string]any, error) {
	private := map[string]any{}
	for _, name := range sortedKeys(c.enclosures) {
		enclosure, ok := c.enclosures[name].(Enclosure)
		if !ok {
			return nil, fmt.Errorf("%w: enclosure %q is %T", ErrInvalidSource, name, c.enclosures[name])
		}
		revealed, err := common.Reveal((func() map[string]any)(enclosure))
		if err != nil {
			return nil, fmt.Errorf("%w: enclosure %q: %v", ErrInvalidSource, name, err)
		}
		private = common.Mix(private, c.mixing()...).With(revealed)
	}
	private = common.Mix(private).With(stateMethods())
	mixed := common.Mix(c.template, c.mixing()...).With(private)
	return common.Mix(mixed, common.WithExclusion(c.exclusion)).With(map[string]any{}), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Compose folds composites into a new Composite with default override
// precedence.
func Compose(composites ...*Composite) *Composite {
	return New(Definition{}).Compose(composites...)
}
