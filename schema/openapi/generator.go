// Package openapi documents the shape of state held by a data cursor as an
// OpenAPI 3 document. Constraint names, computable and observable entries
// are carried as schema extensions; required constraints populate the
// object's required list.
package openapi

import "encoding/json"

// Generate builds the document for src.
func Generate(src Source, opts ...GeneratorOption) (map[string]any, error) {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := cfg.applySettings(); err != nil {
		return nil, err
	}
	root, err := buildSchemaGraph(src)
	if err != nil {
		return nil, err
	}
	return newDocumentBuilder(cfg, root).build()
}

// GenerateJSON is Generate encoded as indented JSON.
func GenerateJSON(src Source, opts ...GeneratorOption) ([]byte, error) {
	document, err := Generate(src, opts...)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(document, "", "  ")
}
