package common

import (
	"math"
	"reflect"
	"regexp"
	"time"
)

// IsObject reports whether value is a keyed container.
func IsObject(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.(map[string]any); ok {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

// IsArray reports whether value is an ordered container.
func IsArray(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]any); ok {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

// IsContainer reports whether value is an object or an array.
func IsContainer(value any) bool {
	return IsObject(value) || IsArray(value)
}

func IsString(value any) bool {
	_, ok := value.(string)
	return ok
}

// IsNumeric reports whether value is any Go numeric kind.
func IsNumeric(value any) bool {
	if value == nil {
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// IsInteger reports whether value is numeric with no fractional part.
func IsInteger(value any) bool {
	f, ok := ToFloat(value)
	if !ok {
		return false
	}
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

// IsFloat reports whether value is numeric with a fractional part.
func IsFloat(value any) bool {
	f, ok := ToFloat(value)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}
	return f != math.Trunc(f)
}

func IsBoolean(value any) bool {
	_, ok := value.(bool)
	return ok
}

func IsFunction(value any) bool {
	return value != nil && reflect.ValueOf(value).Kind() == reflect.Func
}

func IsDate(value any) bool {
	switch value.(type) {
	case time.Time, *time.Time:
		return true
	default:
		return false
	}
}

func IsRegEx(value any) bool {
	_, ok := value.(*regexp.Regexp)
	return ok
}

// IsEmpty is true for empty objects, arrays and strings, and for every value
// that is not an object, array or string.
func IsEmpty(value any) bool {
	switch {
	case IsString(value):
		return value.(string) == ""
	case IsObject(value), IsArray(value):
		return reflect.ValueOf(value).Len() == 0
	default:
		return true
	}
}

func IsDefined(value any) bool {
	return value != nil
}

// TypeOf returns the canonical lowercase type name of value.
func TypeOf(value any) string {
	switch {
	case value == nil:
		return "null"
	case IsString(value):
		return "string"
	case IsBoolean(value):
		return "boolean"
	case IsNumeric(value):
		return "number"
	case IsDate(value):
		return "date"
	case IsRegEx(value):
		return "regex"
	case IsFunction(value):
		return "function"
	case IsArray(value):
		return "array"
	default:
		return "object"
	}
}

// ToFloat converts any numeric kind to float64.
func ToFloat(value any) (float64, bool) {
	if !IsNumeric(value) {
		return 0, false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	default:
		return rv.Float(), true
	}
}

// Equal compares plain values, treating numbers of different kinds as equal
// when they hold the same quantity.
func Equal(a, b any) bool {
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}
