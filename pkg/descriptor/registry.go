package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

type table[D Descriptor] struct {
	kind  Kind
	items map[string]D
}

func newTable[D Descriptor](kind Kind) *table[D] {
	return &table[D]{kind: kind, items: map[string]D{}}
}

func (t *table[D]) add(d D) error {
	if _, exists := t.items[d.ID()]; exists {
		return fmt.Errorf("%w: %s %s", ErrDescriptorExists, t.kind, d.ID())
	}
	t.items[d.ID()] = d
	return nil
}

func (t *table[D]) get(id string) (D, error) {
	d, ok := t.items[id]
	if !ok {
		var zero D
		return zero, fmt.Errorf("%w: %s %s", ErrDescriptorMissing, t.kind, id)
	}
	return d, nil
}

func (t *table[D]) has(id string) bool {
	_, ok := t.items[id]
	return ok
}

// remove unassigns the descriptor before dropping it.
func (t *table[D]) remove(id string) error {
	d, err := t.get(id)
	if err != nil {
		return err
	}
	if d.Assigned() {
		if err := d.Unassign(); err != nil {
			return err
		}
	}
	delete(t.items, id)
	return nil
}

func (t *table[D]) ids() []string {
	ids := make([]string, 0, len(t.items))
	for id := range t.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Registry keeps the descriptors of one data element, one table per kind,
// keyed by path id.
type Registry struct {
	constrainables *table[*Constrainable]
	computables    *table[*Computable]
	observables    *table[*Observable]
	subject        *Subject
	opts           []Option
}

// NewRegistry builds an empty registry. opts are handed to descriptors
// created through Options.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		constrainables: newTable[*Constrainable](KindConstrainable),
		computables:    newTable[*Computable](KindComputable),
		observables:    newTable[*Observable](KindObservable),
		subject:        NewSubject(),
		opts:           append([]Option(nil), opts...),
	}
}

// Options returns the settings new descriptors of this registry should use.
func (r *Registry) Options() []Option {
	return append([]Option(nil), r.opts...)
}

// Subject is the stream shared by the registry's observables.
func (r *Registry) Subject() *Subject { return r.subject }

func (r *Registry) AddConstrainable(d *Constrainable) error {
	if r.computables.has(d.ID()) {
		return fmt.Errorf("%w: %s", ErrConflict, d.ID())
	}
	return r.constrainables.add(d)
}

func (r *Registry) Constrainable(id string) (*Constrainable, error) {
	return r.constrainables.get(id)
}

func (r *Registry) RemoveConstrainable(id string) error {
	return r.constrainables.remove(id)
}

func (r *Registry) AddComputable(d *Computable) error {
	if r.constrainables.has(d.ID()) || r.observables.has(d.ID()) {
		return fmt.Errorf("%w: %s", ErrConflict, d.ID())
	}
	return r.computables.add(d)
}

func (r *Registry) Computable(id string) (*Computable, error) {
	return r.computables.get(id)
}

func (r *Registry) RemoveComputable(id string) error {
	return r.computables.remove(id)
}

func (r *Registry) AddObservable(d *Observable) error {
	if r.computables.has(d.ID()) {
		return fmt.Errorf("%w: %s", ErrConflict, d.ID())
	}
	return r.observables.add(d)
}

func (r *Registry) Observable(id string) (*Observable, error) {
	return r.observables.get(id)
}

func (r *Registry) RemoveObservable(id string) error {
	return r.observables.remove(id)
}

func (r *Registry) IsConstrainable(id string) bool { return r.constrainables.has(id) }
func (r *Registry) IsComputable(id string) bool    { return r.computables.has(id) }
func (r *Registry) IsObservable(id string) bool    { return r.observables.has(id) }

// Kinds lists the descriptor kinds registered for id.
func (r *Registry) Kinds(id string) []Kind {
	var kinds []Kind
	if r.constrainables.has(id) {
		kinds = append(kinds, KindConstrainable)
	}
	if r.computables.has(id) {
		kinds = append(kinds, KindComputable)
	}
	if r.observables.has(id) {
		kinds = append(kinds, KindObservable)
	}
	return kinds
}

// IDs lists registered ids of one kind in sorted order.
func (r *Registry) IDs(kind Kind) []string {
	switch kind {
	case KindConstrainable:
		return r.constrainables.ids()
	case KindComputable:
		return r.computables.ids()
	case KindObservable:
		return r.observables.ids()
	default:
		return nil
	}
}

// RemoveUnder removes every descriptor whose id equals prefix or lies
// beneath it. An empty prefix matches everything.
func (r *Registry) RemoveUnder(prefix string) error {
	var result *multierror.Error
	under := func(id string) bool {
		return prefix == "" || id == prefix || strings.HasPrefix(id, prefix+".")
	}
	// Observables first so their streams stop before constraints unwind.
	for _, id := range r.observables.ids() {
		if under(id) {
			result = multierror.Append(result, r.observables.remove(id))
		}
	}
	for _, id := range r.constrainables.ids() {
		if under(id) {
			result = multierror.Append(result, r.constrainables.remove(id))
		}
	}
	for _, id := range r.computables.ids() {
		if under(id) {
			result = multierror.Append(result, r.computables.remove(id))
		}
	}
	return result.ErrorOrNil()
}

// Reset removes every descriptor, collecting unassignment failures.
func (r *Registry) Reset() error {
	return r.RemoveUnder("")
}
