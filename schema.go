package composite

import (
	"fmt"

	"github.com/goliatone/go-composite/schema/openapi"
)

// SchemaFormat identifies the representation a state schema is rendered in.
type SchemaFormat string

const (
	// SchemaFormatDescriptors renders flattened data.FieldDescriptor entries.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatOpenAPI renders an OpenAPI document describing the reducer
	// body ReduceState accepts.
	SchemaFormatOpenAPI SchemaFormat = "openapi"
)

// SchemaDocument pairs a rendered schema with its format. Document is
// JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
}

// StateSchema renders the current state shape. Generator options only
// apply to SchemaFormatOpenAPI.
func (p *Product) StateSchema(format SchemaFormat, opts ...openapi.GeneratorOption) (SchemaDocument, error) {
	cursor, err := p.GetStateCursor()
	if err != nil {
		return SchemaDocument{}, err
	}
	switch format {
	case SchemaFormatDescriptors, "":
		fields, err := cursor.FieldDescriptors()
		if err != nil {
			return SchemaDocument{}, err
		}
		return SchemaDocument{Format: SchemaFormatDescriptors, Document: fields}, nil
	case SchemaFormatOpenAPI:
		document, err := openapi.Generate(cursor, opts...)
		if err != nil {
			return SchemaDocument{}, err
		}
		return SchemaDocument{Format: SchemaFormatOpenAPI, Document: document}, nil
	default:
		return SchemaDocument{}, fmt.Errorf("composite: unknown schema format %q", format)
	}
}
