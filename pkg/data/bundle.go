package data

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/descriptor"
	"github.com/goliatone/go-composite/pkg/path"
	"gopkg.in/yaml.v3"
)

// Bundle is the raw input of Read. Values are plain values, Entry values,
// or maps in entry form: a "value" or "computable" key plus only the entry
// keys below.
//
//	value, required, stronglyTyped, oneOf, oneTypeOf, bounded,
//	constrainable, observable, computable
type Bundle map[string]any

// Entry is one described bundle value.
type Entry struct {
	Value         any
	Required      bool
	StronglyTyped bool
	OneOf         []any
	OneTypeOf     []string
	Bounded       *Bounds
	Constraints   map[string]descriptor.Constraint
	Observable    *ObservableSpec
	Computable    *ComputableSpec
}

// Bounds is an inclusive range.
type Bounds struct {
	Lower float64
	Upper float64
}

// NamedEntry pairs a formatted entry with its key.
type NamedEntry struct {
	Key   string
	Entry Entry
}

var entryKeys = map[string]bool{
	"value":         true,
	"required":      true,
	"stronglyTyped": true,
	"oneOf":         true,
	"oneTypeOf":     true,
	"bounded":       true,
	"constrainable": true,
	"observable":    true,
	"computable":    true,
}

// ParseBundle decodes a YAML or JSON bundle document. Computables and
// conditions in documents are expressions.
func ParseBundle(raw []byte) (Bundle, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedBundle)
	}
	return Bundle(doc), nil
}

// FormatBundle turns a bundle into entries sorted by key.
func FormatBundle(bundle Bundle) ([]NamedEntry, error) {
	keys := make([]string, 0, len(bundle))
	for key := range bundle {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	entries := make([]NamedEntry, 0, len(keys))
	for _, key := range keys {
		if key == "" || strings.Contains(key, path.Delimiter) {
			return nil, fmt.Errorf("%w: invalid key %q", ErrMalformedBundle, key)
		}
		entry, err := toEntry(key, bundle[key])
		if err != nil {
			return nil, err
		}
		entries = append(entries, NamedEntry{Key: key, Entry: entry})
	}
	return entries, nil
}

func toEntry(key string, raw any) (Entry, error) {
	switch typed := raw.(type) {
	case Entry:
		return typed, typed.validate(key)
	case *Entry:
		if typed == nil {
			return Entry{}, nil
		}
		return *typed, typed.validate(key)
	}
	fields, ok := common.Normalize(raw).(map[string]any)
	if !ok || !isEntryForm(fields) {
		return Entry{Value: raw}, nil
	}
	entry, err := parseEntry(key, fields)
	if err != nil {
		return Entry{}, err
	}
	return entry, entry.validate(key)
}

func isEntryForm(fields map[string]any) bool {
	_, hasValue := fields["value"]
	_, hasComputable := fields["computable"]
	if !hasValue && !hasComputable {
		return false
	}
	for key := range fields {
		if !entryKeys[key] {
			return false
		}
	}
	return true
}

func (e Entry) validate(key string) error {
	if e.Computable == nil {
		return nil
	}
	if e.Required || e.StronglyTyped || e.OneOf != nil || e.OneTypeOf != nil ||
		e.Bounded != nil || len(e.Constraints) > 0 || e.Observable != nil {
		return fmt.Errorf("%w: %q: %v", ErrMalformedBundle, key, descriptor.ErrConflict)
	}
	return nil
}

// describe applies every descriptor the entry names.
func (e Entry) describe(d *Description) error {
	if e.Required {
		if err := d.AsRequired(); err != nil {
			return err
		}
	}
	if e.StronglyTyped {
		if err := d.AsStronglyTyped(); err != nil {
			return err
		}
	}
	if e.OneOf != nil {
		if err := d.AsOneOf(e.OneOf...); err != nil {
			return err
		}
	}
	if e.OneTypeOf != nil {
		if err := d.AsOneTypeOf(e.OneTypeOf...); err != nil {
			return err
		}
	}
	if e.Bounded != nil {
		if err := d.AsBounded(e.Bounded.Lower, e.Bounded.Upper); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(e.Constraints))
	for name := range e.Constraints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := d.AsConstrainable(name, e.Constraints[name]); err != nil {
			return err
		}
	}
	if e.Observable != nil {
		if err := d.AsObservable(*e.Observable); err != nil {
			return err
		}
	}
	return nil
}

func parseEntry(key string, fields map[string]any) (Entry, error) {
	malformed := func(field string, value any) error {
		return fmt.Errorf("%w: %q.%s: unexpected %T", ErrMalformedBundle, key, field, value)
	}
	entry := Entry{Value: fields["value"]}
	for field, raw := range fields {
		switch field {
		case "value":
		case "required", "stronglyTyped":
			flag, ok := raw.(bool)
			if !ok {
				return Entry{}, malformed(field, raw)
			}
			if field == "required" {
				entry.Required = flag
			} else {
				entry.StronglyTyped = flag
			}
		case "oneOf":
			values, ok := raw.([]any)
			if !ok {
				return Entry{}, malformed(field, raw)
			}
			entry.OneOf = values
		case "oneTypeOf":
			types, err := stringList(raw)
			if err != nil {
				return Entry{}, malformed(field, raw)
			}
			entry.OneTypeOf = types
		case "bounded":
			bounds, err := parseBounds(raw)
			if err != nil {
				return Entry{}, malformed(field, raw)
			}
			entry.Bounded = bounds
		case "constrainable":
			constraints, err := parseConstraints(raw)
			if err != nil {
				return Entry{}, fmt.Errorf("%w: %q.%s: %v", ErrMalformedBundle, key, field, err)
			}
			entry.Constraints = constraints
		case "observable":
			spec, err := parseObservable(raw)
			if err != nil {
				return Entry{}, fmt.Errorf("%w: %q.%s: %v", ErrMalformedBundle, key, field, err)
			}
			entry.Observable = spec
		case "computable":
			spec, err := parseComputable(raw)
			if err != nil {
				return Entry{}, fmt.Errorf("%w: %q.%s: %v", ErrMalformedBundle, key, field, err)
			}
			entry.Computable = spec
		}
	}
	return entry, nil
}

func stringList(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected strings, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseBounds(raw any) (*Bounds, error) {
	switch typed := raw.(type) {
	case Bounds:
		return &typed, nil
	case *Bounds:
		return typed, nil
	case []any:
		if len(typed) != 2 {
			return nil, fmt.Errorf("expected [lower, upper]")
		}
		lower, okLower := common.ToFloat(typed[0])
		upper, okUpper := common.ToFloat(typed[1])
		if !okLower || !okUpper {
			return nil, fmt.Errorf("bounds must be numbers")
		}
		return &Bounds{Lower: lower, Upper: upper}, nil
	case map[string]any:
		lower, okLower := common.ToFloat(typed["lower"])
		upper, okUpper := common.ToFloat(typed["upper"])
		if !okLower || !okUpper {
			return nil, fmt.Errorf("bounds must be numbers")
		}
		return &Bounds{Lower: lower, Upper: upper}, nil
	default:
		return nil, fmt.Errorf("unexpected %T", raw)
	}
}

func parseConstraints(raw any) (map[string]descriptor.Constraint, error) {
	switch typed := raw.(type) {
	case map[string]any:
		out := make(map[string]descriptor.Constraint, len(typed))
		for name, fn := range typed {
			switch constraint := fn.(type) {
			case descriptor.Constraint:
				out[name] = constraint
			case func(descriptor.Context) descriptor.Verdict:
				out[name] = constraint
			default:
				return nil, fmt.Errorf("constraint %q: unexpected %T", name, fn)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected %T", raw)
	}
}

func parseObservable(raw any) (*ObservableSpec, error) {
	switch typed := raw.(type) {
	case ObservableSpec:
		return &typed, nil
	case *ObservableSpec:
		return typed, nil
	case map[string]any:
		spec := &ObservableSpec{}
		for field, value := range typed {
			switch field {
			case "condition", "conditions":
				conditions, err := parseConditions(value)
				if err != nil {
					return nil, err
				}
				spec.Conditions = append(spec.Conditions, conditions...)
			case "subscriber", "subscribers":
				subscribers, err := parseSubscribers(value)
				if err != nil {
					return nil, err
				}
				spec.Subscribers = subscribers
			default:
				return nil, fmt.Errorf("unknown field %q", field)
			}
		}
		return spec, nil
	default:
		return nil, fmt.Errorf("unexpected %T", raw)
	}
}

// parseConditions reads eventID -> trigger maps, sorted by event id, or
// lists of ConditionSpec or {event, expression} maps, kept in order.
func parseConditions(raw any) ([]ConditionSpec, error) {
	switch typed := raw.(type) {
	case map[string]any:
		ids := sortedKeys(typed)
		out := make([]ConditionSpec, 0, len(ids))
		for _, eventID := range ids {
			condition, err := conditionOf(eventID, typed[eventID])
			if err != nil {
				return nil, err
			}
			out = append(out, condition)
		}
		return out, nil
	case []any:
		out := make([]ConditionSpec, 0, len(typed))
		for _, item := range typed {
			if condition, ok := item.(ConditionSpec); ok {
				out = append(out, condition)
				continue
			}
			fields, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("condition: unexpected %T", item)
			}
			eventID, _ := fields["event"].(string)
			condition, err := conditionOf(eventID, fields["expression"])
			if err != nil {
				return nil, err
			}
			out = append(out, condition)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("conditions: unexpected %T", raw)
	}
}

func conditionOf(eventID string, raw any) (ConditionSpec, error) {
	condition := ConditionSpec{EventID: eventID}
	switch trigger := raw.(type) {
	case string:
		condition.Expression = trigger
	case descriptor.Trigger:
		condition.Trigger = trigger
	case func(map[string]any) (bool, error):
		condition.Trigger = trigger
	default:
		return ConditionSpec{}, fmt.Errorf("condition %q: unexpected %T", eventID, raw)
	}
	return condition, nil
}

func parseSubscribers(raw any) (map[string]descriptor.Handler, error) {
	switch typed := raw.(type) {
	case map[string]any:
		out := make(map[string]descriptor.Handler, len(typed))
		for handlerKey, fn := range typed {
			switch handler := fn.(type) {
			case descriptor.Handler:
				out[handlerKey] = handler
			case func(any):
				out[handlerKey] = handler
			default:
				return nil, fmt.Errorf("subscriber %q: unexpected %T", handlerKey, fn)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("subscribers: unexpected %T", raw)
	}
}

func parseComputable(raw any) (*ComputableSpec, error) {
	switch typed := raw.(type) {
	case ComputableSpec:
		return &typed, nil
	case *ComputableSpec:
		return typed, nil
	case map[string]any:
		spec := &ComputableSpec{Contexts: map[string]string{}}
		for field, value := range typed {
			switch field {
			case "contexts":
				contexts, err := parseContexts(value)
				if err != nil {
					return nil, err
				}
				spec.Contexts = contexts
			case "compute":
				switch compute := value.(type) {
				case string:
					spec.Expression = compute
				case descriptor.ComputeFunc:
					spec.Compute = compute
				case func(map[string]any) (any, error):
					spec.Compute = compute
				default:
					return nil, fmt.Errorf("compute: unexpected %T", value)
				}
			default:
				return nil, fmt.Errorf("unknown field %q", field)
			}
		}
		return spec, nil
	default:
		return nil, fmt.Errorf("unexpected %T", raw)
	}
}

// parseContexts accepts a list of paths, each bound under its last
// segment, or a name -> path map.
func parseContexts(raw any) (map[string]string, error) {
	out := map[string]string{}
	switch typed := raw.(type) {
	case []any:
		for _, item := range typed {
			p, err := path.From(item)
			if err != nil {
				return nil, err
			}
			name := p.Last()
			if _, dup := out[name]; dup {
				return nil, fmt.Errorf("contexts: %q bound twice", name)
			}
			out[name] = p.String()
		}
	case map[string]any:
		for name, item := range typed {
			p, err := path.From(item)
			if err != nil {
				return nil, err
			}
			out[name] = p.String()
		}
	default:
		return nil, fmt.Errorf("contexts: unexpected %T", raw)
	}
	return out, nil
}
