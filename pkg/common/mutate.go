package common

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-composite/pkg/logging"
	"github.com/goliatone/go-composite/pkg/path"
)

// ErrShapeMismatch is returned by strict mutations when a mutator entry does
// not match the container shape of its source.
var ErrShapeMismatch = errors.New("common: mutator shape does not match source")

// ErrUnknownKey is returned by strict mutations when a mutator key does not
// exist in the source.
var ErrUnknownKey = errors.New("common: mutator key not present in source")

// MutateOption configures a Mutation.
type MutateOption func(*Mutation)

// WithMutateReporter routes advisory warnings.
func WithMutateReporter(reporter *logging.Reporter) MutateOption {
	return func(m *Mutation) {
		m.reporter = reporter
	}
}

// Strict makes unknown keys and shape mismatches fail instead of being
// skipped.
func Strict() MutateOption {
	return func(m *Mutation) {
		m.strict = true
	}
}

// AllowNullGrowth lets a mutator populate a source key holding nil with a
// value of any shape.
func AllowNullGrowth() MutateOption {
	return func(m *Mutation) {
		m.allowNull = true
	}
}

// Mutation derives a new value from source.
type Mutation struct {
	source    any
	reporter  *logging.Reporter
	strict    bool
	allowNull bool
}

// Mutate prepares a mutation of source. source is never modified.
func Mutate(source any, opts ...MutateOption) Mutation {
	m := Mutation{source: source}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// By returns a copy of source where every entry also present in mutator is
// overwritten. Entries missing from mutator are left untouched. Array
// mutators apply index-wise: extra mutator elements are ignored and a shorter
// mutator leaves the tail untouched.
func (m Mutation) By(mutator any) (any, error) {
	if !sameShape(m.source, mutator) {
		return nil, fmt.Errorf("%w: %s by %s", ErrShapeMismatch, TypeOf(m.source), TypeOf(mutator))
	}
	return m.mutate(m.source, mutator, nil)
}

// AtPathBy mutates only the entry at pathID, returning a copy of the whole
// source.
func (m Mutation) AtPathBy(mutator any, pathID any) (any, error) {
	p, err := path.From(pathID)
	if err != nil {
		return nil, err
	}
	current, err := Retrieve(p).From(m.source)
	if err != nil {
		return nil, err
	}
	if !sameShape(current, mutator) {
		return nil, fmt.Errorf("%w at %q", ErrShapeMismatch, p.String())
	}
	mutated, err := m.mutate(current, mutator, p)
	if err != nil {
		return nil, err
	}
	return replaceAt(Clone(m.source), p, mutated)
}

func (m Mutation) mutate(source, mutator any, at path.Path) (any, error) {
	switch src := source.(type) {
	case map[string]any:
		mut := mutator.(map[string]any)
		out := make(map[string]any, len(src))
		for key, value := range src {
			out[key] = Clone(value)
		}
		for key, next := range mut {
			current, ok := src[key]
			if !ok {
				if m.strict {
					return nil, fmt.Errorf("%w: %q", ErrUnknownKey, at.Append(key).String())
				}
				m.reporter.Warn1("mutate: ignoring unknown key", "path", at.Append(key).String())
				continue
			}
			value, skip, err := m.entry(current, next, at.Append(key))
			if err != nil {
				return nil, err
			}
			if !skip {
				out[key] = value
			}
		}
		return out, nil
	case []any:
		mut := mutator.([]any)
		out := Clone(src).([]any)
		if len(mut) > len(src) {
			m.reporter.Warn1("mutate: ignoring extra array elements", "path", at.String(), "source", len(src), "mutator", len(mut))
		}
		for i := 0; i < len(mut) && i < len(src); i++ {
			value, skip, err := m.entry(src[i], mut[i], at.Append(fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			if !skip {
				out[i] = value
			}
		}
		return out, nil
	default:
		return Clone(mutator), nil
	}
}

func (m Mutation) entry(current, next any, at path.Path) (any, bool, error) {
	switch {
	case sameShape(current, next) && IsContainer(next):
		value, err := m.mutate(current, next, at)
		return value, false, err
	case !IsContainer(current) && !IsContainer(next):
		return Clone(next), false, nil
	case current == nil && m.allowNull:
		return Clone(next), false, nil
	case m.strict:
		return nil, false, fmt.Errorf("%w at %q: %s by %s", ErrShapeMismatch, at.String(), TypeOf(current), TypeOf(next))
	default:
		m.reporter.Warn1("mutate: skipping shape mismatch", "path", at.String())
		return nil, true, nil
	}
}

func sameShape(a, b any) bool {
	switch {
	case IsObject(a):
		return IsObject(b)
	case IsArray(a):
		return IsArray(b)
	default:
		return !IsContainer(b)
	}
}

func replaceAt(root any, p path.Path, value any) (any, error) {
	if len(p) == 0 {
		return value, nil
	}
	parent := root
	for _, segment := range p[:len(p)-1] {
		next, ok := Child(parent, segment)
		if !ok {
			return nil, fmt.Errorf("common: path %q not found", p.String())
		}
		parent = next
	}
	switch typed := parent.(type) {
	case map[string]any:
		typed[p.Last()] = value
	case []any:
		idx, ok := p.Index(len(p) - 1)
		if !ok || idx >= len(typed) {
			return nil, fmt.Errorf("common: index %q out of range", p.String())
		}
		typed[idx] = value
	default:
		return nil, fmt.Errorf("common: path %q does not address a container", p.String())
	}
	return root, nil
}
