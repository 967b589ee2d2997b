package composite

import "errors"

var (
	// ErrUnknownMember is returned when a product has no member by that name.
	ErrUnknownMember = errors.New("composite: unknown member")
	// ErrNotMethod is returned by Call when the member is not a Method.
	ErrNotMethod = errors.New("composite: member is not a method")
	// ErrInvalidSource is returned by Mixin for sources it cannot reveal.
	ErrInvalidSource = errors.New("composite: invalid mixin source")
	// ErrInitializer wraps failures of $-prefixed initializers.
	ErrInitializer = errors.New("composite: initializer failed")
	// ErrStateShape is returned when the state root is not an object.
	ErrStateShape = errors.New("composite: state must be an object")
)
