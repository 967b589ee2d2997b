package eval

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunnerEvaluatesAgainstSnapshot(t *testing.T) {
	runner := NewRunner()

	tests := []struct {
		name string
		expr string
		snap map[string]any
		want any
	}{
		{name: "arithmetic", expr: "count * 2", snap: map[string]any{"count": 21}, want: 42},
		{name: "key named max", expr: "max - min", snap: map[string]any{"max": 9, "min": 4}, want: 5},
		{name: "key named len", expr: "len > 2", snap: map[string]any{"len": 3}, want: true},
		{name: "builtin still callable", expr: "len(items) + count", snap: map[string]any{"items": []any{1, 2}, "count": 1}, want: 3},
		{name: "nested", expr: "user.name + '!'", snap: map[string]any{"user": map[string]any{"name": "ada"}}, want: "ada!"},
		{name: "comparison", expr: "newValue > oldValue", snap: map[string]any{"oldValue": 1, "newValue": 2}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runner.Evaluate(RuleContext{Snapshot: tt.snap}, tt.expr)
			if err != nil {
				t.Fatalf("Evaluate error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
	if runner.Engine() != "expr" {
		t.Fatalf("expected default expr engine, got %q", runner.Engine())
	}
}

func TestRunnerCachesPrograms(t *testing.T) {
	cache := NewMemoryCache()
	runner := NewRunner(WithProgramCache(cache))

	for i := 0; i < 3; i++ {
		if _, err := runner.Evaluate(RuleContext{Snapshot: map[string]any{"n": i}}, "n + 1"); err != nil {
			t.Fatalf("Evaluate error: %v", err)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected a single cached program, got %d", cache.Len())
	}
}

func TestRunnerCustomFunctionsAndClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	runner := NewRunner(
		WithClock(func() time.Time { return fixed }),
		WithCustomFunction("double", func(args ...any) (any, error) {
			return args[0].(int) * 2, nil
		}),
	)

	got, err := runner.Evaluate(RuleContext{Snapshot: map[string]any{"x": 4}}, "double(x)")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if got != 8 {
		t.Fatalf("expected 8, got %v", got)
	}
	now, err := runner.Evaluate(RuleContext{}, "now")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if ts, ok := now.(time.Time); !ok || !ts.Equal(fixed) {
		t.Fatalf("expected clock time %v, got %v", fixed, now)
	}
}

func TestRunnerLogsFailures(t *testing.T) {
	var events []LogEvent
	runner := NewRunner(WithLogger(LoggerFunc(func(event LogEvent) {
		events = append(events, event)
	})))

	_, err := runner.Evaluate(RuleContext{Label: "store.total"}, "1 +")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T %v", err, err)
	}
	if evalErr.Label != "store.total" || evalErr.Engine != "expr" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
	if len(events) != 1 || events[0].Err == nil {
		t.Fatalf("expected one failed log event, got %+v", events)
	}
	if !strings.Contains(err.Error(), "store.total") {
		t.Fatalf("error should carry label, got %q", err.Error())
	}

	if _, err := runner.Evaluate(RuleContext{}, ""); !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
}

func TestRunnerEvaluateBool(t *testing.T) {
	runner := NewRunner()
	ok, err := runner.EvaluateBool(RuleContext{Snapshot: map[string]any{"v": 3}}, "v > 2")
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
	if _, err := runner.EvaluateBool(RuleContext{}, "1 + 1"); err == nil {
		t.Fatalf("expected non-bool result to fail")
	}
}

func TestCELEvaluator(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("greet", func(args ...any) (any, error) {
		return "hi " + args[0].(string), nil
	}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	runner := NewRunner(WithEvaluator(NewCELEvaluator(
		CELWithProgramCache(NewMemoryCache()),
		CELWithFunctionRegistry(registry),
	)))

	got, err := runner.Evaluate(RuleContext{Snapshot: map[string]any{"count": 3}}, "count > 2")
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %v", got)
	}
	greeting, err := runner.Evaluate(RuleContext{Snapshot: map[string]any{"who": "ada"}}, `call("greet", [who])`)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if greeting != "hi ada" {
		t.Fatalf("unexpected greeting %v", greeting)
	}
	if runner.Engine() != "cel" {
		t.Fatalf("expected cel engine, got %q", runner.Engine())
	}
}

func TestRunnerSeparatesProgramsByVariables(t *testing.T) {
	cache := NewMemoryCache()
	runner := NewRunner(WithProgramCache(cache))

	// Without a sum key the name resolves to the builtin.
	got, err := runner.Evaluate(RuleContext{Snapshot: map[string]any{"xs": []any{1, 2, 3}}}, "sum(xs)")
	if err != nil || got != 6 {
		t.Fatalf("builtin sum = %v, %v", got, err)
	}
	got, err = runner.Evaluate(RuleContext{Snapshot: map[string]any{"sum": 10}}, "sum + 1")
	if err != nil || got != 11 {
		t.Fatalf("sum key = %v, %v", got, err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected one program per variable set, got %d", cache.Len())
	}
	if _, err := runner.Evaluate(RuleContext{Snapshot: map[string]any{}}, "missing + 1"); err == nil {
		t.Fatalf("expected undeclared names to fail")
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	fn := func(args ...any) (any, error) { return len(args), nil }
	if err := registry.Register("tally", fn); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	for _, name := range []string{"tally", "", "call", "two words", "9lives"} {
		if err := registry.Register(name, fn); err == nil {
			t.Fatalf("expected Register(%q) to fail", name)
		}
	}
	if err := registry.Register("Tally", fn); err != nil {
		t.Fatalf("names are case sensitive: %v", err)
	}
	got, err := registry.Clone().Call("tally", 1, 2, 3)
	if err != nil || got != 3 {
		t.Fatalf("unexpected call result %v %v", got, err)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected missing function to fail")
	}
	if names := registry.Names(); len(names) != 2 || names[0] != "Tally" {
		t.Fatalf("unexpected names %v", names)
	}
}
