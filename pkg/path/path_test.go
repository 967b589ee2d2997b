package path

import (
	"errors"
	"testing"
)

func TestParseAndString(t *testing.T) {
	p, err := Parse("state.items.2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Len() != 3 || p.Root() != "state" || p.Last() != "2" {
		t.Fatalf("unexpected segments: %#v", p)
	}
	if p.String() != "state.items.2" {
		t.Fatalf("expected round trip, got %q", p.String())
	}
	if idx, ok := p.Index(2); !ok || idx != 2 {
		t.Fatalf("expected index 2, got %d (%t)", idx, ok)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse(""); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
	if _, err := Parse("a..b"); !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("expected ErrEmptySegment, got %v", err)
	}
}

func TestFromAcceptsInterchangeableForms(t *testing.T) {
	cases := []struct {
		name  string
		input any
	}{
		{name: "string", input: "a.b.0"},
		{name: "strings", input: []string{"a", "b", "0"}},
		{name: "mixed", input: []any{"a", "b", 0}},
		{name: "path", input: Path{"a", "b", "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := From(tc.input)
			if err != nil {
				t.Fatalf("from: %v", err)
			}
			if p.String() != "a.b.0" {
				t.Fatalf("expected a.b.0, got %q", p.String())
			}
		})
	}
	if _, err := From(3.5); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestParentAppendPrefix(t *testing.T) {
	p := MustParse("a.b.c")
	if got := p.Parent().String(); got != "a.b" {
		t.Fatalf("expected parent a.b, got %q", got)
	}
	child := p.Append("d")
	if child.String() != "a.b.c.d" || p.String() != "a.b.c" {
		t.Fatalf("append must not alias: %q %q", child, p)
	}
	if !child.HasPrefix(p) || p.HasPrefix(child) {
		t.Fatalf("unexpected prefix relation")
	}
	if got := parseWithOrFail(t, "a/b", "/"); got.String() != "a.b" {
		t.Fatalf("expected custom delimiter to parse, got %q", got)
	}
}

func parseWithOrFail(t *testing.T, raw, delimiter string) Path {
	t.Helper()
	p, err := ParseWith(raw, delimiter)
	if err != nil {
		t.Fatalf("parse with %q: %v", delimiter, err)
	}
	return p
}
