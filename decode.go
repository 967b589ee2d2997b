package composite

import "github.com/goliatone/go-composite/internal/hydrate"

// DecodeContext names the product and state path being decoded.
type DecodeContext = hydrate.Context

// DecodeOption configures DecodeState.
type DecodeOption[T any] = hydrate.Option[T]

// WithStatePreHook rewrites the plain state before it is decoded.
func WithStatePreHook[T any](hook func(DecodeContext, map[string]any) (map[string]any, error)) DecodeOption[T] {
	return hydrate.WithNormalizer[T](hook)
}

// WithStatePostHook adjusts or validates the decoded value.
func WithStatePostHook[T any](hook func(DecodeContext, *T) error) DecodeOption[T] {
	return hydrate.WithCheck[T](hook)
}

// WithUnknownStateRejected fails decoding when state holds keys T has no
// field for.
func WithUnknownStateRejected[T any]() DecodeOption[T] {
	return hydrate.WithStrictFields[T]()
}

// WithStateNumbers decodes numbers into json.Number where T leaves the type
// open.
func WithStateNumbers[T any]() DecodeOption[T] {
	return hydrate.WithNumbers[T]()
}

// WithStateValidation checks `validate` struct tags on the decoded value.
func WithStateValidation[T any]() DecodeOption[T] {
	return hydrate.WithValidation[T]()
}

// DecodeState decodes the product's current state into T.
func DecodeState[T any](p *Product, opts ...DecodeOption[T]) (T, error) {
	var zero T
	cursor, err := p.GetStateCursor()
	if err != nil {
		return zero, err
	}
	return hydrate.NewDecoder[T](opts...).Decode(p.ID(), cursor)
}

// DecodeStateAt decodes the object stored under key in the product's state.
func DecodeStateAt[T any](p *Product, key any, opts ...DecodeOption[T]) (T, error) {
	var zero T
	cursor, err := p.GetStateCursor()
	if err != nil {
		return zero, err
	}
	nested, err := cursor.Select(key)
	if err != nil {
		return zero, err
	}
	return hydrate.NewDecoder[T](opts...).Decode(p.ID(), nested)
}
