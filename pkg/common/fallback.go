package common

import (
	"slices"
)

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallbacking)

// WithNotify registers a callback invoked with the dotted key of every
// substituted entry.
func WithNotify(notify func(key string)) FallbackOption {
	return func(f *Fallbacking) {
		f.notify = notify
	}
}

// WithExpectedTypes declares the accepted type names for key (dotted for
// nested entries) instead of inferring a single type from the default.
func WithExpectedTypes(key string, types ...string) FallbackOption {
	return func(f *Fallbacking) {
		if f.expected == nil {
			f.expected = map[string][]string{}
		}
		f.expected[key] = append([]string(nil), types...)
	}
}

// Fallbacking substitutes defaults for missing or mistyped entries.
type Fallbacking struct {
	source   any
	notify   func(string)
	expected map[string][]string
}

// Fallback prepares defaulting with source holding the defaults.
func Fallback(source any, opts ...FallbackOption) Fallbacking {
	f := Fallbacking{source: source}
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}

// Of returns a copy of target where every entry that is absent from target,
// or whose type differs from the default, is replaced by the default.
// Entries only present in target are kept.
func (f Fallbacking) Of(target any) any {
	return f.apply(f.source, target, "")
}

func (f Fallbacking) apply(defaults, target any, prefix string) any {
	defs, ok := defaults.(map[string]any)
	if !ok {
		if f.accepts(prefix, defaults, target) {
			return Clone(target)
		}
		f.substituted(prefix)
		return Clone(defaults)
	}
	tgt, ok := target.(map[string]any)
	if !ok {
		f.substituted(prefix)
		return Clone(defaults)
	}
	out := make(map[string]any, len(tgt)+len(defs))
	for key, value := range tgt {
		out[key] = Clone(value)
	}
	for key, def := range defs {
		full := joinKey(prefix, key)
		value, present := tgt[key]
		if !present {
			f.substituted(full)
			out[key] = Clone(def)
			continue
		}
		if IsObject(def) && IsObject(value) {
			out[key] = f.apply(def, value, full)
			continue
		}
		if !f.accepts(full, def, value) {
			f.substituted(full)
			out[key] = Clone(def)
		}
	}
	return out
}

func (f Fallbacking) accepts(key string, def, value any) bool {
	if types, ok := f.expected[key]; ok {
		return slices.Contains(types, TypeOf(value))
	}
	return TypeOf(def) == TypeOf(value)
}

func (f Fallbacking) substituted(key string) {
	if f.notify != nil {
		f.notify(key)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
