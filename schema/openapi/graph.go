package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/descriptor"
	"github.com/goliatone/go-composite/pkg/path"
)

// Source is the state a document is generated from. *data.Cursor
// implements it.
type Source interface {
	GetSchema() (any, error)
	ToObject() (any, error)
	ConstraintNames(pathID any) ([]string, error)
}

type schemaNode struct {
	Type       string
	Format     string
	Nullable   bool
	ReadOnly   bool
	Example    any
	Properties map[string]*schemaNode
	Required   []string
	Items      *schemaNode
	extensions map[string]any
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) extend(key string, value any) {
	if n.extensions == nil {
		n.extensions = map[string]any{}
	}
	n.extensions[key] = value
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Nullable {
		result["nullable"] = true
	}
	if n.ReadOnly {
		result["readOnly"] = true
	}
	if n.Example != nil {
		result["example"] = n.Example
	}
	if len(n.Required) > 0 {
		required := append([]string(nil), n.Required...)
		sort.Strings(required)
		result["required"] = required
	}
	for key, value := range n.extensions {
		result[key] = value
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()
	if n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for name, child := range n.Properties {
			props[name] = child.inlineOpenAPI()
		}
		result["properties"] = props
	}
	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}
	return result
}

// Digest identifies structurally equal schemas. Examples are left out so
// objects with the same shape share a component.
func (n *schemaNode) Digest() string {
	payload, err := json.Marshal(n.shapeOnly())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (n *schemaNode) shapeOnly() map[string]any {
	result := n.baseMap()
	delete(result, "example")
	if n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for name, child := range n.Properties {
			props[name] = child.shapeOnly()
		}
		result["properties"] = props
	}
	if n.Items != nil {
		result["items"] = n.Items.shapeOnly()
	}
	return result
}

// buildSchemaGraph walks the source schema alongside its values. Values
// supply leaf types and examples; the schema marks computable and
// observable leaves.
func buildSchemaGraph(src Source) (*schemaNode, error) {
	if src == nil {
		return nil, fmt.Errorf("openapi: source is nil")
	}
	schema, err := src.GetSchema()
	if err != nil {
		return nil, err
	}
	value, err := src.ToObject()
	if err != nil {
		return nil, err
	}
	return buildNode(src, nil, schema, value)
}

func buildNode(src Source, at path.Path, schema, value any) (*schemaNode, error) {
	switch typed := schema.(type) {
	case map[string]any:
		node := newObjectNode()
		object, _ := value.(map[string]any)
		for key, childSchema := range typed {
			childPath := at.Append(key)
			child, err := buildNode(src, childPath, childSchema, object[key])
			if err != nil {
				return nil, err
			}
			names, err := src.ConstraintNames(childPath)
			if err != nil {
				return nil, fmt.Errorf("openapi: constraints of %s: %w", childPath, err)
			}
			if len(names) > 0 {
				child.extend("x-constraints", names)
			}
			if slices.Contains(names, descriptor.ConstraintRequired) {
				node.Required = append(node.Required, key)
			}
			node.Properties[key] = child
		}
		return node, nil
	case []any:
		node := &schemaNode{Type: "array", Items: &schemaNode{}}
		items, _ := value.([]any)
		if len(typed) > 0 && len(items) > 0 {
			child, err := buildNode(src, at.Append("0"), typed[0], items[0])
			if err != nil {
				return nil, err
			}
			child.Example = nil
			node.Items = child
		}
		return node, nil
	case string:
		return leafNode(typed, value), nil
	default:
		return nil, fmt.Errorf("openapi: unexpected schema entry %T at %s", schema, at)
	}
}

func leafNode(kind string, value any) *schemaNode {
	node := &schemaNode{}
	switch kind {
	case string(descriptor.KindComputable):
		node = leafNode(common.TypeOf(value), value)
		node.ReadOnly = true
		node.extend("x-computable", true)
		return node
	case string(descriptor.KindObservable):
		node = leafNode(common.TypeOf(value), value)
		node.extend("x-observable", true)
		return node
	case "null", "undefined":
		node.Nullable = true
		return node
	case "number":
		node.Type = "number"
		if common.IsInteger(value) {
			node.Type = "integer"
		}
	case "string", "boolean":
		node.Type = kind
	case "date":
		node.Type = "string"
		node.Format = "date-time"
	default:
		node.Type = "string"
		node.Format = "go:" + kind
		return node
	}
	node.Example = value
	return node
}
