// Package common holds the helpers shared by every other package: type
// predicates over plain values, structural schema checks, and the
// clone/mutate/merge/fallback/mix family used to derive new values without
// touching their inputs.
//
// Plain values are the JSON-compatible forms map[string]any, []any, string,
// bool, nil and the Go numeric kinds. Normalize converts typed maps and
// slices into these forms.
package common
