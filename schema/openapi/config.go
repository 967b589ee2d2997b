package openapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/hashicorp/go-multierror"
)

// ErrInvalidSettings is returned when a settings entry has the wrong type.
var ErrInvalidSettings = errors.New("openapi: invalid settings")

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	operation      operationConfig
	contentType    string
	responses      map[string]string
	rootComponent  string
	settings       map[string]any
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

type operationConfig struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
}

// The default operation describes a reducer body: the payload a host
// forwards to Product.ReduceState.
func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info: openapiInfo{
			Title:   "State Schema",
			Version: "1.0.0",
		},
		operation: operationConfig{
			Path:   "/state",
			Method: "patch",
		},
		contentType: "application/json",
		responses:   map[string]string{"204": "State reduced"},
	}
}

// GeneratorOption configures Generate.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the version string (default 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.openAPIVersion = version
		}
	}
}

// WithInfo sets the info block. Empty strings keep the defaults.
func WithInfo(title, version, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.info.Title = title
		}
		if version != "" {
			cfg.info.Version = version
		}
		cfg.info.Description = description
	}
}

// WithOperation sets the path, method and summary of the documented
// operation. Empty strings keep the defaults.
func WithOperation(path, method, summary string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if path != "" {
			cfg.operation.Path = path
		}
		if method != "" {
			cfg.operation.Method = strings.ToLower(method)
		}
		cfg.operation.Summary = summary
	}
}

// WithOperationID overrides the derived "method:path" operation id.
func WithOperationID(id string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.operation.OperationID = id
	}
}

// WithResponse adds or replaces the description of a response status.
func WithResponse(status, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if status != "" {
			cfg.responses[status] = description
		}
	}
}

// WithRootComponent publishes the root schema under components with name.
func WithRootComponent(name string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.rootComponent = name
	}
}

// WithSettings layers a plain settings object, such as one decoded from a
// YAML or JSON file, over the configuration once every other option has
// run. Repeated calls deep-merge. Recognized keys are openapi, info (title,
// version, description), operation (path, method, operation_id, summary),
// content_type, responses and root_component; absent keys keep the
// configured value.
func WithSettings(settings map[string]any) GeneratorOption {
	return func(cfg *generatorConfig) {
		merged, _ := common.Merge(cfg.settings).With(common.Normalize(settings)).(map[string]any)
		cfg.settings = merged
	}
}

func (cfg generatorConfig) plain() map[string]any {
	responses := make(map[string]any, len(cfg.responses))
	for status, description := range cfg.responses {
		responses[status] = description
	}
	return map[string]any{
		"openapi": cfg.openAPIVersion,
		"info": map[string]any{
			"title":       cfg.info.Title,
			"version":     cfg.info.Version,
			"description": cfg.info.Description,
		},
		"operation": map[string]any{
			"path":         cfg.operation.Path,
			"method":       cfg.operation.Method,
			"operation_id": cfg.operation.OperationID,
			"summary":      cfg.operation.Summary,
		},
		"content_type":   cfg.contentType,
		"responses":      responses,
		"root_component": cfg.rootComponent,
	}
}

// applySettings resolves cfg.settings against the configured values. A
// settings entry whose type differs from the configured one is an error.
func (cfg *generatorConfig) applySettings() error {
	if cfg.settings == nil {
		return nil
	}
	var replaced []string
	defaults := cfg.plain()
	resolved, _ := common.Fallback(defaults, common.WithNotify(func(key string) {
		replaced = append(replaced, key)
	})).Of(cfg.settings).(map[string]any)

	var result *multierror.Error
	sort.Strings(replaced)
	for _, key := range replaced {
		given, err := common.Retrieve(key).From(cfg.settings)
		if err != nil {
			continue
		}
		want, _ := common.Retrieve(key).From(defaults)
		result = multierror.Append(result, fmt.Errorf("%w: %s is %s, want %s",
			ErrInvalidSettings, key, common.TypeOf(given), common.TypeOf(want)))
	}

	fields := []struct {
		key string
		dst *string
	}{
		{"openapi", &cfg.openAPIVersion},
		{"info.title", &cfg.info.Title},
		{"info.version", &cfg.info.Version},
		{"info.description", &cfg.info.Description},
		{"operation.path", &cfg.operation.Path},
		{"operation.method", &cfg.operation.Method},
		{"operation.operation_id", &cfg.operation.OperationID},
		{"operation.summary", &cfg.operation.Summary},
		{"content_type", &cfg.contentType},
		{"root_component", &cfg.rootComponent},
	}
	keys := make([]any, len(fields))
	for i, field := range fields {
		keys[i] = field.key
	}
	values, err := common.Collect(resolved, keys...)
	if err != nil {
		return err
	}
	for i, value := range values {
		*fields[i].dst, _ = value.(string)
	}
	cfg.operation.Method = strings.ToLower(cfg.operation.Method)

	responses, _ := resolved["responses"].(map[string]any)
	cfg.responses = make(map[string]string, len(responses))
	for status, description := range responses {
		text, ok := description.(string)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%w: responses.%s is %s, want string",
				ErrInvalidSettings, status, common.TypeOf(description)))
			continue
		}
		cfg.responses[status] = text
	}
	return result.ErrorOrNil()
}
