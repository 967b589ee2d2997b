package descriptor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-composite/pkg/eval"
)

func TestComputableDerivesOnEveryRead(t *testing.T) {
	host := newHost(map[string]any{"a": 1, "b": 2, "sum": nil})
	contexts := map[string]Getter{
		"a": func() any { return host.get("a") },
		"b": func() any { return host.get("b") },
	}
	c, err := NewComputable("r.sum", "sum", contexts, func(ctx map[string]any) (any, error) {
		return ctx["a"].(int) + ctx["b"].(int), nil
	})
	if err != nil {
		t.Fatalf("NewComputable error: %v", err)
	}
	if err := c.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}
	if got := host.get("sum"); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	_ = host.set("a", 10)
	if got := host.get("sum"); got != 12 {
		t.Fatalf("expected recompute to 12, got %v", got)
	}
	if err := host.set("sum", 1); !errors.Is(err, ErrComputableWrite) {
		t.Fatalf("expected ErrComputableWrite, got %v", err)
	}
	if got := c.Contexts(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected contexts %v", got)
	}
	if _, err := NewComputable("r.x", "x", nil, nil); err == nil {
		t.Fatalf("missing compute should fail")
	}
}

func TestExpressionCompute(t *testing.T) {
	host := newHost(map[string]any{"price": 4, "qty": 3, "total": nil})
	runner := eval.NewRunner()
	c, err := NewComputable("r.total", "total", map[string]Getter{
		"price": func() any { return host.get("price") },
		"qty":   func() any { return host.get("qty") },
	}, ExpressionCompute(runner, "price * qty", "r.total"))
	if err != nil {
		t.Fatalf("NewComputable error: %v", err)
	}
	if err := c.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}
	if got := host.get("total"); got != 12 {
		t.Fatalf("expected 12, got %v", got)
	}

	broken, _ := NewComputable("r.bad", "total", nil, ExpressionCompute(runner, "1 +", "r.bad"))
	_, err = broken.Value()
	var evalErr *eval.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
}

func TestRegistryAddGetRemove(t *testing.T) {
	host := newHost(map[string]any{"a": 1, "b": 2})
	r := NewRegistry()

	c := NewConstrainable("r.a", "a", r.Options()...).Constrain(ConstraintRequired, Required())
	if err := r.AddConstrainable(c); err != nil {
		t.Fatalf("AddConstrainable error: %v", err)
	}
	if err := r.AddConstrainable(c); !errors.Is(err, ErrDescriptorExists) {
		t.Fatalf("expected ErrDescriptorExists, got %v", err)
	}
	if _, err := r.Observable("r.a"); !errors.Is(err, ErrDescriptorMissing) {
		t.Fatalf("expected ErrDescriptorMissing, got %v", err)
	}
	if err := c.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}

	comp, _ := NewComputable("r.a", "a", nil, func(map[string]any) (any, error) { return 0, nil })
	if err := r.AddComputable(comp); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := r.RemoveConstrainable("r.a"); err != nil {
		t.Fatalf("RemoveConstrainable error: %v", err)
	}
	if c.Assigned() {
		t.Fatalf("remove should unassign")
	}
	if err := host.set("a", nil); err != nil {
		t.Fatalf("constraint should be gone, got %v", err)
	}
	if err := r.RemoveConstrainable("r.a"); !errors.Is(err, ErrDescriptorMissing) {
		t.Fatalf("expected ErrDescriptorMissing, got %v", err)
	}
}

func TestRegistryRemoveUnderAndReset(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"r.a", "r.a.x", "r.ab", "r.b"} {
		if err := r.AddConstrainable(NewConstrainable(id, id)); err != nil {
			t.Fatalf("AddConstrainable error: %v", err)
		}
	}
	if err := r.AddObservable(NewObservable("r.a.y", "y", r.Subject())); err != nil {
		t.Fatalf("AddObservable error: %v", err)
	}
	if got := r.Kinds("r.a"); !reflect.DeepEqual(got, []Kind{KindConstrainable}) {
		t.Fatalf("unexpected kinds %v", got)
	}

	if err := r.RemoveUnder("r.a"); err != nil {
		t.Fatalf("RemoveUnder error: %v", err)
	}
	if got := r.IDs(KindConstrainable); !reflect.DeepEqual(got, []string{"r.ab", "r.b"}) {
		t.Fatalf("unexpected remaining ids %v", got)
	}
	if r.IsObservable("r.a.y") {
		t.Fatalf("nested observable should be removed")
	}

	if err := r.Reset(); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if len(r.IDs(KindConstrainable)) != 0 {
		t.Fatalf("reset should clear all tables")
	}
}
