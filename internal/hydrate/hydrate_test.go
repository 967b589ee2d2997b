package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-composite/pkg/data"
	"github.com/goliatone/go-composite/pkg/logging"
	"github.com/goliatone/go-composite/pkg/path"
)

type counterState struct {
	Count  int      `json:"count" validate:"gte=0"`
	Label  string   `json:"label"`
	Window window   `json:"window"`
	Tags   []string `json:"tags"`
}

type window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type staticSource struct {
	at     path.Path
	object any
	err    error
}

func (s staticSource) Path() path.Path         { return s.at }
func (s staticSource) ToObject() (any, error) { return s.object, s.err }

func source(object any) staticSource {
	return staticSource{at: path.Path{"state"}, object: object}
}

func TestDecoderCases(t *testing.T) {
	cases := []struct {
		name      string
		input     any
		options   []Option[counterState]
		expect    counterState
		expectErr string
	}{
		{
			name:   "plain",
			input:  map[string]any{"count": 2, "label": "clicks", "tags": []any{"a"}},
			expect: counterState{Count: 2, Label: "clicks", Tags: []string{"a"}},
		},
		{
			name:    "normalizer splits window",
			input:   map[string]any{"count": 1, "window": "08:00-10:00"},
			options: []Option[counterState]{WithNormalizer[counterState](splitWindow)},
			expect:  counterState{Count: 1, Window: window{Start: "08:00", End: "10:00"}},
		},
		{
			name:      "normalizer failure",
			input:     map[string]any{"window": "broken"},
			options:   []Option[counterState]{WithNormalizer[counterState](splitWindow)},
			expectErr: "state: normalizer 0",
		},
		{
			name:    "check tags",
			input:   map[string]any{"count": 3},
			options: []Option[counterState]{WithCheck[counterState](tagWithProduct)},
			expect:  counterState{Count: 3, Tags: []string{"state:p-1"}},
		},
		{
			name:      "unknown fields rejected",
			input:     map[string]any{"count": 3, "extra": true},
			options:   []Option[counterState]{WithStrictFields[counterState]()},
			expectErr: "unknown field",
		},
		{
			name:      "validation",
			input:     map[string]any{"count": -1},
			options:   []Option[counterState]{WithValidation[counterState]()},
			expectErr: "gte",
		},
		{
			name:      "not an object",
			input:     []any{1, 2},
			expectErr: "state is array",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := NewDecoder[counterState](tc.options...).Decode("p-1", source(tc.input))
			if tc.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, result) {
				t.Fatalf("decoded state mismatch:\nwant: %#v\n got: %#v", tc.expect, result)
			}
		})
	}
}

func TestDecoderSourceErrors(t *testing.T) {
	if _, err := NewDecoder[counterState]().Decode("p-1", nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
	failing := staticSource{at: path.Path{"state"}, err: errors.New("no container")}
	if _, err := NewDecoder[counterState]().Decode("p-1", failing); err == nil || !strings.Contains(err.Error(), "no container") {
		t.Fatalf("expected source error, got %v", err)
	}
	if _, err := NewDecoder[counterState]().Decode("p-1", source("x")); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestDecoderNumbers(t *testing.T) {
	result, err := NewDecoder[map[string]any](WithNumbers[map[string]any]()).Decode("p-1", source(map[string]any{"count": 2}))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if _, ok := result["count"].(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", result["count"])
	}
}

func TestDecoderReadsCursor(t *testing.T) {
	el, err := data.New(data.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("data.New error: %v", err)
	}
	if _, err := el.Read(data.Bundle{
		"count":  4,
		"window": map[string]any{"start": "a", "end": "b"},
	}, "state"); err != nil {
		t.Fatalf("Read error: %v", err)
	}
	cursor, err := el.Select("state")
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	got, err := NewDecoder[counterState]().Decode("p-1", cursor)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got.Count != 4 || got.Window.End != "b" {
		t.Fatalf("unexpected state %+v", got)
	}

	nested, err := cursor.Select("window")
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	var seen Context
	w, err := NewDecoder[window](WithCheck[window](func(ctx Context, _ *window) error {
		seen = ctx
		return nil
	})).Decode("p-1", nested)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if w.Start != "a" || seen.Path.String() != "state.window" {
		t.Fatalf("unexpected nested decode %+v at %s", w, seen.Path)
	}
}

func splitWindow(_ Context, state map[string]any) (map[string]any, error) {
	value, ok := state["window"].(string)
	if !ok || value == "" {
		return nil, nil
	}
	parts := strings.Split(value, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid window %q", value)
	}
	state["window"] = map[string]any{
		"start": strings.TrimSpace(parts[0]),
		"end":   strings.TrimSpace(parts[1]),
	}
	return state, nil
}

func tagWithProduct(ctx Context, state *counterState) error {
	if len(state.Tags) == 0 {
		state.Tags = []string{fmt.Sprintf("%s:%s", ctx.Path, ctx.ProductID)}
	}
	return nil
}
