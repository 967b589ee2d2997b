package path

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates segments in the string form of a Path.
const Delimiter = "."

var (
	// ErrEmptyPath indicates a path without any segment.
	ErrEmptyPath = errors.New("path: must contain at least one segment")
	// ErrEmptySegment indicates a path segment with no characters.
	ErrEmptySegment = errors.New("path: segments must not be empty")
)

// Path addresses a location inside nested content. Integer segments are
// stored in their decimal form so array indexes and object keys share one
// representation.
type Path []string

// Parse splits a dot-delimited string into a Path.
func Parse(raw string) (Path, error) {
	return ParseWith(raw, Delimiter)
}

// ParseWith splits raw using delimiter.
func ParseWith(raw, delimiter string) (Path, error) {
	if raw == "" {
		return nil, ErrEmptyPath
	}
	if delimiter == "" {
		delimiter = Delimiter
	}
	segments := strings.Split(raw, delimiter)
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptySegment, raw)
		}
	}
	return Path(segments), nil
}

// MustParse is Parse for static paths; it panics on malformed input.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// From accepts any of the path forms used at API boundaries: a Path, a
// dot-delimited string, or a slice of string/integer segments.
func From(value any) (Path, error) {
	switch typed := value.(type) {
	case Path:
		if len(typed) == 0 {
			return nil, ErrEmptyPath
		}
		return typed.Clone(), nil
	case string:
		return Parse(typed)
	case []string:
		return fromSegments(len(typed), func(i int) any { return typed[i] })
	case []int:
		return fromSegments(len(typed), func(i int) any { return typed[i] })
	case []any:
		return fromSegments(len(typed), func(i int) any { return typed[i] })
	default:
		return nil, fmt.Errorf("path: unsupported path type %T", value)
	}
}

func fromSegments(n int, at func(int) any) (Path, error) {
	if n == 0 {
		return nil, ErrEmptyPath
	}
	out := make(Path, 0, n)
	for i := 0; i < n; i++ {
		segment, err := segmentString(at(i))
		if err != nil {
			return nil, err
		}
		out = append(out, segment)
	}
	return out, nil
}

// Segment converts a single key, string or integer, into a path segment.
// Unlike From it never splits on the delimiter.
func Segment(value any) (string, error) {
	return segmentString(value)
}

func segmentString(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		if typed == "" {
			return "", ErrEmptySegment
		}
		return typed, nil
	case int:
		return strconv.Itoa(typed), nil
	case int64:
		return strconv.FormatInt(typed, 10), nil
	case int32:
		return strconv.FormatInt(int64(typed), 10), nil
	default:
		return "", fmt.Errorf("path: unsupported segment type %T", value)
	}
}

// String renders the path in its dot-delimited form.
func (p Path) String() string {
	return strings.Join(p, Delimiter)
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p)
}

// Root returns the first segment, or "" for an empty path.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Last returns the final segment, or "" for an empty path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1].Clone()
}

// Append returns a new path with segments added.
func (p Path) Append(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Clone returns a detached copy.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports whether both paths hold the same segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Index parses segment i as an array index.
func (p Path) Index(i int) (int, bool) {
	if i < 0 || i >= len(p) {
		return 0, false
	}
	n, err := strconv.Atoi(p[i])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
