package common

import (
	"errors"
)

// Fn is a composable function over plain values.
type Fn func(args ...any) any

// ErrComposeArity is returned when fewer than two functions are composed.
var ErrComposeArity = errors.New("common: compose requires at least two functions")

// Compose chains fns left to right. Each function receives the previous
// result, or no argument when the previous result was nil.
func Compose(fns ...Fn) (Fn, error) {
	if len(fns) < 2 {
		return nil, ErrComposeArity
	}
	for _, fn := range fns {
		if fn == nil {
			return nil, errors.New("common: compose received a nil function")
		}
	}
	return func(args ...any) any {
		result := fns[0](args...)
		for _, fn := range fns[1:] {
			if result == nil {
				result = fn()
				continue
			}
			result = fn(result)
		}
		return result
	}, nil
}

// Collect retrieves the value at each path from target.
func Collect(target any, paths ...any) ([]any, error) {
	out := make([]any, 0, len(paths))
	for _, p := range paths {
		value, err := Retrieve(p).From(target)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}
