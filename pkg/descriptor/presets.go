package descriptor

import (
	"fmt"
	"reflect"
	"slices"
	"unicode/utf8"

	"github.com/goliatone/go-composite/pkg/common"
)

// Names of the preset constraints as stored on a Constrainable.
const (
	ConstraintRequired      = "required"
	ConstraintStronglyTyped = "stronglyTyped"
	ConstraintOneOf         = "oneOf"
	ConstraintOneTypeOf     = "oneTypeOf"
	ConstraintBounded       = "bounded"
)

// Required verifies values that are defined and, for strings, objects and
// arrays, not empty.
func Required() Constraint {
	return func(ctx Context) Verdict {
		value := ctx.NewValue
		if value == nil {
			return Deny("value is required")
		}
		if (common.IsString(value) || common.IsContainer(value)) && common.IsEmpty(value) {
			return Deny("value must not be empty")
		}
		return Accept()
	}
}

// StronglyTyped verifies writes that keep the stored value's type. An
// undefined old value skips the check.
func StronglyTyped() Constraint {
	return func(ctx Context) Verdict {
		if ctx.OldValue == nil {
			return Verdict{Verified: true, Reason: "old value undefined, type check skipped"}
		}
		oldType, newType := common.TypeOf(ctx.OldValue), common.TypeOf(ctx.NewValue)
		if oldType != newType {
			return Deny(fmt.Sprintf("expected %s, got %s", oldType, newType))
		}
		return Accept()
	}
}

// OneOf verifies values, or every element of an array value, found in
// values.
func OneOf(values ...any) Constraint {
	allowed := append([]any(nil), values...)
	member := func(value any) bool {
		return slices.ContainsFunc(allowed, func(candidate any) bool {
			return common.Equal(candidate, value)
		})
	}
	return func(ctx Context) Verdict {
		if common.IsArray(ctx.NewValue) {
			rv := reflect.ValueOf(ctx.NewValue)
			for i := 0; i < rv.Len(); i++ {
				if item := rv.Index(i).Interface(); !member(item) {
					return Deny(fmt.Sprintf("%v is not one of %v", item, allowed))
				}
			}
			return Accept()
		}
		if !member(ctx.NewValue) {
			return Deny(fmt.Sprintf("%v is not one of %v", ctx.NewValue, allowed))
		}
		return Accept()
	}
}

// OneTypeOf verifies writes where both the old and new type names are in
// types.
func OneTypeOf(types ...string) Constraint {
	allowed := append([]string(nil), types...)
	return func(ctx Context) Verdict {
		oldType, newType := common.TypeOf(ctx.OldValue), common.TypeOf(ctx.NewValue)
		if !slices.Contains(allowed, oldType) || !slices.Contains(allowed, newType) {
			return Deny(fmt.Sprintf("types %s -> %s not in %v", oldType, newType, allowed))
		}
		return Accept()
	}
}

// Bounded verifies numbers within [lower, upper] and strings whose length
// is within the same range. Other values pass.
func Bounded(lower, upper float64) Constraint {
	return func(ctx Context) Verdict {
		var (
			measure float64
			what    string
		)
		switch {
		case common.IsNumeric(ctx.NewValue):
			measure, _ = common.ToFloat(ctx.NewValue)
			what = "value"
		case common.IsString(ctx.NewValue):
			measure = float64(utf8.RuneCountInString(ctx.NewValue.(string)))
			what = "length"
		default:
			return Accept()
		}
		if measure < lower || measure > upper {
			return Deny(fmt.Sprintf("%s %v outside [%v, %v]", what, measure, lower, upper))
		}
		return Accept()
	}
}
