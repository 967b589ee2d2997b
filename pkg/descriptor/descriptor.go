// Package descriptor attaches behaviour to individual state slots. A
// descriptor wraps the slot a Host stores under a key: constrainables veto
// writes, observables publish them, computables replace the slot with a
// derived read-only value. Descriptors chain, and unassigning one restores
// whatever it wrapped.
package descriptor

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/logging"
)

var (
	// ErrRejected marks a write vetoed by a constraint. It is a policy
	// outcome, not a failure.
	ErrRejected = errors.New("descriptor: write rejected")

	ErrComputableWrite   = errors.New("descriptor: computable values are read-only")
	ErrDescriptorExists  = errors.New("descriptor: already registered")
	ErrDescriptorMissing = errors.New("descriptor: not registered")
	ErrAlreadyAssigned   = errors.New("descriptor: already assigned")
	ErrNotAssigned       = errors.New("descriptor: not assigned")
	ErrSlotNotFound      = errors.New("descriptor: slot not found")
	ErrConflict          = errors.New("descriptor: computable cannot share a key with other descriptors")
)

// Kind names a descriptor family.
type Kind string

const (
	KindConstrainable Kind = "constrainable"
	KindComputable    Kind = "computable"
	KindObservable    Kind = "observable"
)

// Slot is one interceptable state value.
type Slot interface {
	Get() any
	Set(value any) error
}

// Host stores slots by key. Descriptors replace a host's slot with
// themselves on assignment.
type Host interface {
	Slot(key string) (Slot, bool)
	ReplaceSlot(key string, slot Slot) error
}

// Wrapper is a slot layered over another slot.
type Wrapper interface {
	Slot
	Unwrap() Slot
}

// Descriptor is the behaviour common to every descriptor kind.
type Descriptor interface {
	ID() string
	Key() string
	Kind() Kind
	Assigned() bool
	Unassign() error
}

// Base returns the innermost slot beneath any descriptor wrappers.
func Base(slot Slot) Slot {
	for {
		w, ok := slot.(Wrapper)
		if !ok || w.Unwrap() == nil {
			return slot
		}
		slot = w.Unwrap()
	}
}

// Option configures descriptors and registries.
type Option func(*settings)

type settings struct {
	reporter *logging.Reporter
	emitter  *activity.Emitter
	rootKey  string
}

// WithReporter routes diagnostics through reporter.
func WithReporter(reporter *logging.Reporter) Option {
	return func(s *settings) {
		s.reporter = reporter
	}
}

// WithEmitter makes observables emit activity events for committed writes.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(s *settings) {
		s.emitter = emitter
	}
}

// WithRootKey tags emitted events with the owning root.
func WithRootKey(rootKey string) Option {
	return func(s *settings) {
		s.rootKey = rootKey
	}
}

func applySettings(opts []Option) settings {
	s := settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

type layered interface {
	Wrapper
	setInner(Slot)
}

// base carries the assignment state shared by all descriptor kinds.
type base struct {
	id       string
	key      string
	host     Host
	next     Slot
	assigned bool
	settings settings
}

func newBase(id, key string, opts []Option) base {
	return base{id: id, key: key, settings: applySettings(opts)}
}

func (b *base) ID() string     { return b.id }
func (b *base) Key() string    { return b.key }
func (b *base) Assigned() bool { return b.assigned }
func (b *base) Unwrap() Slot   { return b.next }

func (b *base) setInner(slot Slot) { b.next = slot }

func (b *base) reporter() *logging.Reporter { return b.settings.reporter }

func (b *base) attach(host Host, self layered) error {
	if b.assigned {
		return fmt.Errorf("%w: %s", ErrAlreadyAssigned, b.id)
	}
	if host == nil {
		return fmt.Errorf("%w: %s has no host", ErrSlotNotFound, b.id)
	}
	slot, ok := host.Slot(b.key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, b.id)
	}
	if err := host.ReplaceSlot(b.key, self); err != nil {
		return err
	}
	b.next = slot
	b.host = host
	b.assigned = true
	return nil
}

// detach removes self from the host's slot chain wherever it sits.
func (b *base) detach(self layered) error {
	if !b.assigned {
		return fmt.Errorf("%w: %s", ErrNotAssigned, b.id)
	}
	current, ok := b.host.Slot(b.key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, b.id)
	}
	if current == Slot(self) {
		if err := b.host.ReplaceSlot(b.key, b.next); err != nil {
			return err
		}
	} else if err := unlink(current, self, b.next); err != nil {
		return fmt.Errorf("%w: %s", err, b.id)
	}
	b.host = nil
	b.assigned = false
	return nil
}

func unlink(current Slot, target layered, replacement Slot) error {
	for {
		w, ok := current.(layered)
		if !ok {
			return ErrNotAssigned
		}
		next := w.Unwrap()
		if next == Slot(target) {
			w.setInner(replacement)
			return nil
		}
		current = next
	}
}
