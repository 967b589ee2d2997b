package composite

import "github.com/goliatone/go-composite/pkg/common"

// StateRoot is the root key product state is read under.
const StateRoot = "state"

// InitializerPrefix marks members invoked once, in name order, when a
// product is built.
const InitializerPrefix = "$"

// Method is a callable product member. self is the product the method was
// called on.
type Method func(self *Product, args ...any) (any, error)

// Enclosure returns the members of one product-private scope. It runs once
// per product, so variables it captures are private to that product.
type Enclosure func() map[string]any

// Definition is the input to New.
type Definition struct {
	// Enclosures are keyed by name; composing replaces same-named ones.
	Enclosures map[string]Enclosure
	// Template holds Methods and plain values shared by every product.
	Template  map[string]any
	Exclusion common.Exclusion
	// Override decides which Method wins when composed members collide.
	Override common.Override
}

// Factory builds products. A non-empty state override is applied with
// Product.ReduceState before the product is returned.
type Factory func(state map[string]any) (*Product, error)

