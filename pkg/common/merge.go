package common

// Merging deep-merges two values into a new one.
type Merging struct {
	source any
}

// Merge prepares a deep merge with source as the base.
func Merge(source any) Merging {
	return Merging{source: source}
}

// With merges target over source. Objects merge key-wise with target
// winning on conflicts. Arrays merge index-wise: containers at the same index
// merge recursively, scalar items are appended when not already present and
// everything past the end of source is appended.
func (m Merging) With(target any) any {
	return mergeValues(m.source, target)
}

func mergeValues(source, target any) any {
	switch src := source.(type) {
	case map[string]any:
		tgt, ok := target.(map[string]any)
		if !ok {
			return Clone(target)
		}
		out := make(map[string]any, len(src)+len(tgt))
		for key, value := range src {
			out[key] = Clone(value)
		}
		for key, value := range tgt {
			if existing, ok := out[key]; ok && IsContainer(existing) && IsContainer(value) {
				out[key] = mergeValues(existing, value)
				continue
			}
			out[key] = Clone(value)
		}
		return out
	case []any:
		tgt, ok := target.([]any)
		if !ok {
			return Clone(target)
		}
		out := Clone(src).([]any)
		for i, item := range tgt {
			if IsContainer(item) {
				if i < len(out) && sameShape(out[i], item) && IsContainer(out[i]) {
					out[i] = mergeValues(out[i], item)
					continue
				}
				out = append(out, Clone(item))
				continue
			}
			if !containsScalar(out, item) {
				out = append(out, item)
			}
		}
		return out
	default:
		if target == nil {
			return Clone(source)
		}
		return Clone(target)
	}
}

func containsScalar(items []any, value any) bool {
	for _, item := range items {
		if !IsContainer(item) && Equal(item, value) {
			return true
		}
	}
	return false
}
