package common

import (
	"fmt"
	"strconv"

	"github.com/goliatone/go-composite/pkg/path"
)

// RetrieveOption configures a Retrieval.
type RetrieveOption func(*Retrieval)

// WithDelimiter sets the delimiter used when the path is a string.
func WithDelimiter(delimiter string) RetrieveOption {
	return func(r *Retrieval) {
		r.delimiter = delimiter
	}
}

// AsNestedObject returns a skeleton mirroring only the walked path instead of
// the bare value.
func AsNestedObject() RetrieveOption {
	return func(r *Retrieval) {
		r.nested = true
	}
}

// Retrieval walks a path into nested content.
type Retrieval struct {
	pathID    any
	delimiter string
	nested    bool
}

// Retrieve prepares a path walk. pathID accepts any form path.From accepts.
func Retrieve(pathID any, opts ...RetrieveOption) Retrieval {
	r := Retrieval{pathID: pathID, delimiter: path.Delimiter}
	for _, opt := range opts {
		if opt != nil {
			opt(&r)
		}
	}
	return r
}

// From walks target. Every intermediate segment must exist.
func (r Retrieval) From(target any) (any, error) {
	p, err := r.resolvePath()
	if err != nil {
		return nil, err
	}
	current := target
	for i, segment := range p {
		next, ok := Child(current, segment)
		if !ok {
			return nil, fmt.Errorf("common: retrieve %q: segment %q not found", p.String(), p[:i+1].String())
		}
		current = next
	}
	if !r.nested {
		return current, nil
	}
	return skeleton(target, p, current), nil
}

func (r Retrieval) resolvePath() (path.Path, error) {
	if raw, ok := r.pathID.(string); ok && r.delimiter != path.Delimiter {
		return path.ParseWith(raw, r.delimiter)
	}
	return path.From(r.pathID)
}

// Child returns the entry of container under segment.
func Child(container any, segment string) (any, bool) {
	switch typed := container.(type) {
	case map[string]any:
		value, ok := typed[segment]
		return value, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(typed) {
			return nil, false
		}
		return typed[idx], true
	default:
		return nil, false
	}
}

func skeleton(target any, p path.Path, leaf any) any {
	if len(p) == 0 {
		return Clone(leaf)
	}
	child, _ := Child(target, p[0])
	inner := skeleton(child, p[1:], leaf)
	if _, ok := target.([]any); ok {
		idx, _ := strconv.Atoi(p[0])
		out := make([]any, idx+1)
		out[idx] = inner
		return out
	}
	return map[string]any{p[0]: inner}
}
