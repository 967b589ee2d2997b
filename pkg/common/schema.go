package common

import (
	"fmt"
	"strings"
)

// SchemaCheck is returned by IsSchema; call Of to test a target.
type SchemaCheck struct {
	schema any
}

// IsSchema starts a structural type check. Schema leaves are pipe-delimited
// type names ("string|undefined"); nested objects describe nested objects and
// single-element arrays describe the type of every array element.
func IsSchema(schema any) SchemaCheck {
	return SchemaCheck{schema: schema}
}

// Of reports whether target matches the schema. A mismatch is not an error;
// an error is returned only when schema itself is malformed or cannot be
// paired with target.
func (c SchemaCheck) Of(target any) (bool, error) {
	schema, ok := c.schema.(map[string]any)
	if !ok {
		return false, fmt.Errorf("common: schema must be an object, got %s", TypeOf(c.schema))
	}
	object, ok := target.(map[string]any)
	if !ok {
		return false, fmt.Errorf("common: schema target must be an object, got %s", TypeOf(target))
	}
	return matchObject(schema, object)
}

func matchObject(schema, target map[string]any) (bool, error) {
	for key, spec := range schema {
		value, present := target[key]
		ok, err := matchEntry(spec, value, present)
		if err != nil {
			return false, fmt.Errorf("common: schema key %q: %w", key, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchEntry(spec, value any, present bool) (bool, error) {
	switch typed := spec.(type) {
	case string:
		return matchTypeNames(typed, value, present), nil
	case map[string]any:
		object, ok := value.(map[string]any)
		if !ok {
			return false, nil
		}
		return matchObject(typed, object)
	case []any:
		if len(typed) != 1 {
			return false, fmt.Errorf("array schema must have exactly one element, got %d", len(typed))
		}
		items, ok := value.([]any)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			ok, err := matchEntry(typed[0], item, true)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("unsupported schema entry %s", TypeOf(spec))
	}
}

func matchTypeNames(spec string, value any, present bool) bool {
	actual := TypeOf(value)
	for _, name := range strings.Split(spec, "|") {
		name = strings.TrimSpace(name)
		switch {
		case name == "any":
			return true
		case name == "undefined" && !present:
			return true
		case name == actual && present:
			return true
		}
	}
	return false
}
