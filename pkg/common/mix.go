package common

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Override selects which side wins when both mixed objects define the same
// function-valued key. Non-function keys always resolve to the target.
type Override int

const (
	// PreferTarget lets the target's function replace the source's.
	PreferTarget Override = iota
	// PreferSource keeps the source's function.
	PreferSource
)

// Exclusion filters keys out of a mix. A Keys entry of "*" excludes every
// key; Exception force-includes keys regardless of exclusion.
type Exclusion struct {
	Prefixes  []string
	Postfixes []string
	Keys      []string
	Exception *Exception
}

// Exception force-includes keys by prefix, postfix or exact name.
type Exception struct {
	Prefixes  []string
	Postfixes []string
	Keys      []string
}

// MixOption configures a Mixing.
type MixOption func(*Mixing)

// WithExclusion applies an exclusion policy.
func WithExclusion(exclusion Exclusion) MixOption {
	return func(m *Mixing) {
		m.exclusion = exclusion
	}
}

// WithOverride sets function override precedence.
func WithOverride(override Override) MixOption {
	return func(m *Mixing) {
		m.override = override
	}
}

// Mixing combines the members of two objects.
type Mixing struct {
	source    map[string]any
	exclusion Exclusion
	override  Override
}

// Mix prepares a mix with source as the first contributor.
func Mix(source map[string]any, opts ...MixOption) Mixing {
	m := Mixing{source: source}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// With builds a new object from source then target members, honouring the
// exclusion policy and override precedence. Inputs are not modified.
func (m Mixing) With(target map[string]any) map[string]any {
	out := make(map[string]any, len(m.source)+len(target))
	for _, key := range sortedKeys(m.source) {
		if m.exclusion.excludes(key) {
			continue
		}
		out[key] = m.source[key]
	}
	for _, key := range sortedKeys(target) {
		if m.exclusion.excludes(key) {
			continue
		}
		value := target[key]
		if existing, ok := out[key]; ok && m.override == PreferSource && IsFunction(existing) && IsFunction(value) {
			continue
		}
		out[key] = value
	}
	return out
}

func (e Exclusion) excludes(key string) bool {
	if e.Exception != nil && e.Exception.includes(key) {
		return false
	}
	if slices.Contains(e.Keys, "*") || slices.Contains(e.Keys, key) {
		return true
	}
	return hasAnyPrefix(key, e.Prefixes) || hasAnyPostfix(key, e.Postfixes)
}

func (e Exception) includes(key string) bool {
	return slices.Contains(e.Keys, key) || hasAnyPrefix(key, e.Prefixes) || hasAnyPostfix(key, e.Postfixes)
}

// MergeExclusions folds several policies into one. Lists are deep-merged
// with Merge, so entries keep first-seen order and repeats are dropped.
func MergeExclusions(exclusions ...Exclusion) Exclusion {
	merged := Exclusion{}.plain()
	for _, e := range exclusions {
		if _, ok := merged["exception"]; !ok && e.Exception != nil {
			merged["exception"] = exclusionLists(nil, nil, nil)
		}
		merged, _ = Merge(merged).With(e.plain()).(map[string]any)
	}
	return exclusionFrom(merged)
}

func (e Exclusion) plain() map[string]any {
	out := exclusionLists(e.Prefixes, e.Postfixes, e.Keys)
	if e.Exception != nil {
		out["exception"] = exclusionLists(e.Exception.Prefixes, e.Exception.Postfixes, e.Exception.Keys)
	}
	return out
}

func exclusionLists(prefixes, postfixes, keys []string) map[string]any {
	return map[string]any{
		"prefixes":  anyStrings(prefixes),
		"postfixes": anyStrings(postfixes),
		"keys":      anyStrings(keys),
	}
}

func exclusionFrom(m map[string]any) Exclusion {
	out := Exclusion{
		Prefixes:  stringsOf(m["prefixes"]),
		Postfixes: stringsOf(m["postfixes"]),
		Keys:      stringsOf(m["keys"]),
	}
	if exception, ok := m["exception"].(map[string]any); ok {
		out.Exception = &Exception{
			Prefixes:  stringsOf(exception["prefixes"]),
			Postfixes: stringsOf(exception["postfixes"]),
			Keys:      stringsOf(exception["keys"]),
		}
	}
	return out
}

func anyStrings(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}

func stringsOf(value any) []string {
	items, _ := value.([]any)
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Reveal flattens a closure into a plain object. closure may be an object,
// a func() map[string]any, or a func() (map[string]any, error).
func Reveal(closure any, opts ...MixOption) (map[string]any, error) {
	var members map[string]any
	switch typed := closure.(type) {
	case map[string]any:
		members = typed
	case func() map[string]any:
		members = typed()
	case func() (map[string]any, error):
		revealed, err := typed()
		if err != nil {
			return nil, err
		}
		members = revealed
	default:
		return nil, fmt.Errorf("common: cannot reveal %T", closure)
	}
	return Mix(members, opts...).With(map[string]any{}), nil
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func hasAnyPostfix(key string, postfixes []string) bool {
	for _, postfix := range postfixes {
		if postfix != "" && strings.HasSuffix(key, postfix) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
