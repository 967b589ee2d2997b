package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-composite/pkg/common"
)

type documentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	root     *schemaNode
}

func newDocumentBuilder(config generatorConfig, root *schemaNode) *documentBuilder {
	return &documentBuilder{
		config:   config,
		registry: newComponentRegistry(),
		root:     root,
	}
}

func (b *documentBuilder) build() (map[string]any, error) {
	if b.root == nil {
		return nil, fmt.Errorf("openapi: root schema node cannot be nil")
	}
	var body map[string]any
	if name := b.config.rootComponent; name != "" {
		ref := b.registry.register(name, b.root, true)
		b.registerDescendants(name, b.root)
		body = map[string]any{"$ref": ref}
	} else {
		body = b.schemaFor(b.root, "State")
	}

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.buildPaths(body),
	}
	if components := b.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{"schemas": components}
	}
	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *documentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *documentBuilder) buildPaths(body map[string]any) map[string]any {
	responses := make(map[string]any, len(b.config.responses))
	for status, description := range b.config.responses {
		responses[status] = map[string]any{"description": description}
	}
	operation := map[string]any{
		"operationId": b.operationID(),
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{"schema": body},
			},
		},
		"responses": responses,
	}
	if summary := strings.TrimSpace(b.config.operation.Summary); summary != "" {
		operation["summary"] = summary
	}
	return map[string]any{
		b.config.operation.Path: map[string]any{
			b.method(): operation,
		},
	}
}

func (b *documentBuilder) method() string {
	if method := strings.ToLower(b.config.operation.Method); method != "" {
		return method
	}
	return "patch"
}

func (b *documentBuilder) operationID() string {
	if b.config.operation.OperationID != "" {
		return b.config.operation.OperationID
	}
	return fmt.Sprintf("%s:%s", b.method(), b.config.operation.Path)
}

// schemaFor renders node, replacing repeated object and array shapes with
// component references.
func (b *documentBuilder) schemaFor(node *schemaNode, nameHint string) map[string]any {
	if node.Type == "object" || node.Type == "array" {
		if ref := b.registry.register(nameHint, node, false); ref != "" {
			return map[string]any{"$ref": ref}
		}
	}
	result := node.baseMap()
	if node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range sortedNames(node.Properties) {
			props[key] = b.schemaFor(node.Properties[key], combineComponentName(nameHint, key))
		}
		result["properties"] = props
	}
	if node.Items != nil {
		result["items"] = b.schemaFor(node.Items, combineComponentName(nameHint, "item"))
	}
	return result
}

func (b *documentBuilder) registerDescendants(nameHint string, node *schemaNode) {
	for _, key := range sortedNames(node.Properties) {
		b.schemaFor(node.Properties[key], combineComponentName(nameHint, key))
	}
	if node.Items != nil {
		b.schemaFor(node.Items, combineComponentName(nameHint, "item"))
	}
}

func sortedNames(nodes map[string]*schemaNode) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var documentShape = map[string]any{
	"openapi": "string",
	"info": map[string]any{
		"title":       "string",
		"version":     "string",
		"description": "string|undefined",
	},
	"paths":      "object",
	"components": "object|undefined",
}

func validateDocument(document map[string]any) error {
	ok, err := common.IsSchema(documentShape).Of(document)
	if err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	if !ok {
		return fmt.Errorf("openapi: document does not have the expected shape")
	}
	if document["openapi"] == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info := document["info"].(map[string]any)
	if info["title"] == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if info["version"] == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	for pathKey := range document["paths"].(map[string]any) {
		if !strings.HasPrefix(pathKey, "/") {
			return fmt.Errorf("openapi: path %q must start with '/'", pathKey)
		}
	}
	return nil
}
