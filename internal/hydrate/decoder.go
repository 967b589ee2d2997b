// Package hydrate decodes the plain state a data cursor addresses into typed
// Go values.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/path"
)

// ErrNotObject is returned when the addressed state is not an object.
var ErrNotObject = errors.New("hydrate: state is not an object")

// Source is read once per Decode. *data.Cursor implements it.
type Source interface {
	Path() path.Path
	ToObject() (any, error)
}

// Context names the state being decoded.
type Context struct {
	ProductID string
	Path      path.Path
}

// Normalizer rewrites the plain state before decoding. Returning nil keeps
// the input.
type Normalizer func(Context, map[string]any) (map[string]any, error)

// Check inspects or adjusts the decoded value.
type Check[T any] func(Context, *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// Decoder turns cursor state into T.
type Decoder[T any] struct {
	normalizers []Normalizer
	checks      []Check[T]
	strict      bool
	numbers     bool
}

// WithNormalizer appends a normalizer; normalizers run in order.
func WithNormalizer[T any](fn Normalizer) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.normalizers = append(d.normalizers, fn)
		}
	}
}

// WithCheck appends a check run on the decoded value.
func WithCheck[T any](fn Check[T]) Option[T] {
	return func(d *Decoder[T]) {
		if fn != nil {
			d.checks = append(d.checks, fn)
		}
	}
}

// WithStrictFields rejects state keys T has no field for.
func WithStrictFields[T any]() Option[T] {
	return func(d *Decoder[T]) { d.strict = true }
}

// WithNumbers keeps numbers as json.Number where T leaves the type open.
func WithNumbers[T any]() Option[T] {
	return func(d *Decoder[T]) { d.numbers = true }
}

// WithValidation runs `validate` struct tags on the decoded value. It is a
// no-op for non-struct T.
func WithValidation[T any]() Option[T] {
	validate := validator.New()
	return WithCheck(func(ctx Context, value *T) error {
		rv := reflect.Indirect(reflect.ValueOf(value))
		if rv.Kind() != reflect.Struct {
			return nil
		}
		return validate.Struct(value)
	})
}

// NewDecoder builds a Decoder.
func NewDecoder[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode reads src and decodes it into T.
func (d *Decoder[T]) Decode(productID string, src Source) (T, error) {
	var zero T
	if src == nil {
		return zero, fmt.Errorf("hydrate: nil source")
	}
	ctx := Context{ProductID: productID, Path: src.Path()}
	object, err := src.ToObject()
	if err != nil {
		return zero, fmt.Errorf("hydrate: %s: %w", ctx.Path, err)
	}
	state, ok := object.(map[string]any)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %s", ErrNotObject, ctx.Path, common.TypeOf(object))
	}
	for i, normalize := range d.normalizers {
		next, err := normalize(ctx, state)
		if err != nil {
			return zero, fmt.Errorf("hydrate: %s: normalizer %d: %w", ctx.Path, i, err)
		}
		if next != nil {
			state = next
		}
	}
	result, err := d.unmarshal(state)
	if err != nil {
		return zero, fmt.Errorf("hydrate: %s: %w", ctx.Path, err)
	}
	for i, check := range d.checks {
		if err := check(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: %s: check %d: %w", ctx.Path, i, err)
		}
	}
	return result, nil
}

func (d *Decoder[T]) unmarshal(state map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(state)
	if err != nil {
		return out, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if d.numbers {
		dec.UseNumber()
	}
	err = dec.Decode(&out)
	return out, err
}
