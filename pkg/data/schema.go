package data

import (
	"sort"
	"strings"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/path"
)

// FieldDescriptor describes a path and the inferred type.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// FieldDescriptors flattens the addressed container into leaf paths,
// relative to the cursor, and their type names. Arrays are reported once
// as "[]" plus the type of their first element.
func (c *Cursor) FieldDescriptors() ([]FieldDescriptor, error) {
	schema, err := c.GetSchema()
	if err != nil {
		return nil, err
	}
	descriptors := deriveFieldDescriptors(schema, "")
	if descriptors == nil {
		descriptors = []FieldDescriptor{}
	}
	return descriptors, nil
}

func deriveFieldDescriptors(schema any, prefix string) []FieldDescriptor {
	switch typed := schema.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{Path: prefix, Type: "object"}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, deriveFieldDescriptors(typed[key], joinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = schemaTypeName(typed[0])
		}
		return []FieldDescriptor{{Path: prefix, Type: "[]" + elementType}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: schemaTypeName(typed)}}
	}
}

func schemaTypeName(schema any) string {
	switch typed := schema.(type) {
	case string:
		return typed
	case []any:
		return "[]" + schemaTypeName(firstOrNil(typed))
	default:
		return common.TypeOf(schema)
	}
}

func firstOrNil(items []any) any {
	if len(items) == 0 {
		return "any"
	}
	return items[0]
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}

// ConstraintNames lists the constraints bound to the entry at pathID,
// relative to the cursor, in sorted order.
func (c *Cursor) ConstraintNames(pathID any) ([]string, error) {
	rel, err := path.From(pathID)
	if err != nil {
		return nil, err
	}
	id := c.path.Append(rel...).String()
	if !c.el.registry.IsConstrainable(id) {
		return nil, nil
	}
	constrainable, err := c.el.registry.Constrainable(id)
	if err != nil {
		return nil, err
	}
	names := constrainable.Names()
	sort.Strings(names)
	return names, nil
}
