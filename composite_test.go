package composite

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/common"
	"github.com/goliatone/go-composite/pkg/data"
	"github.com/goliatone/go-composite/pkg/logging"
)

func quiet() Option {
	return WithLogger(logging.Discard())
}

func increment(self *Product, _ ...any) (any, error) {
	state, err := self.GetStateAsObject()
	if err != nil {
		return nil, err
	}
	count, _ := state["count"].(int)
	return self.ReduceState(map[string]any{"count": count + 1})
}

func counterFactory(t *testing.T, opts ...Option) Factory {
	t.Helper()
	counter := New(Definition{
		Template: map[string]any{"increment": Method(increment)},
	})
	factory, err := counter.Resolve(data.Bundle{"count": map[string]any{"value": 0}}, append([]Option{quiet()}, opts...)...)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	return factory
}

func build(t *testing.T, factory Factory, state map[string]any) *Product {
	t.Helper()
	product, err := factory(state)
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}
	return product
}

func stateOf(t *testing.T, p *Product) map[string]any {
	t.Helper()
	state, err := p.GetStateAsObject()
	if err != nil {
		t.Fatalf("GetStateAsObject error: %v", err)
	}
	return state
}

func TestFactoryCounterIncrements(t *testing.T) {
	product := build(t, counterFactory(t), nil)
	for i := 0; i < 2; i++ {
		if _, err := product.Call("increment"); err != nil {
			t.Fatalf("increment error: %v", err)
		}
	}
	if got := stateOf(t, product)["count"]; got != 2 {
		t.Fatalf("expected count 2, got %v", got)
	}
	if got, _ := product.Get("count"); got != 2 {
		t.Fatalf("expected state property 2, got %v", got)
	}
	if keys := product.Element().HistoryKeys(StateRoot); !reflect.DeepEqual(keys, []string{"state{0}", "state{1}"}) {
		t.Fatalf("unexpected history %v", keys)
	}
	if err := product.FlushState(); err != nil {
		t.Fatalf("FlushState error: %v", err)
	}
	if keys := product.Element().HistoryKeys(StateRoot); len(keys) != 0 {
		t.Fatalf("expected empty history after flush, got %v", keys)
	}
}

func TestFactoryProductsAreIndependent(t *testing.T) {
	ids := []string{"p-1", "p-2"}
	factory := counterFactory(t, WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	first := build(t, factory, nil)
	second := build(t, factory, map[string]any{"count": 5})
	if _, err := first.Call("increment"); err != nil {
		t.Fatalf("increment error: %v", err)
	}
	if first.ID() != "p-1" || second.ID() != "p-2" {
		t.Fatalf("unexpected ids %q %q", first.ID(), second.ID())
	}
	if stateOf(t, first)["count"] != 1 || stateOf(t, second)["count"] != 5 {
		t.Fatalf("products share state: %v %v", stateOf(t, first), stateOf(t, second))
	}
	if index, _ := second.Element().TimeIndex(StateRoot); index != 0 {
		t.Fatalf("construction history should be flushed, time index %d", index)
	}
}

func TestFactoryRejectsUnknownOverride(t *testing.T) {
	_, err := counterFactory(t)(map[string]any{"missing": 1})
	if !errors.Is(err, common.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestResolveRejectsMalformedBundle(t *testing.T) {
	_, err := New(Definition{}).Resolve(data.Bundle{"a.b": 1}, quiet())
	if !errors.Is(err, data.ErrMalformedBundle) {
		t.Fatalf("expected ErrMalformedBundle, got %v", err)
	}
}

func TestComposeOverrideOrder(t *testing.T) {
	named := func(name string) Method {
		return func(*Product, ...any) (any, error) { return name, nil }
	}
	a := New(Definition{Template: map[string]any{"greet": named("a"), "onlyA": 1}})
	b := New(Definition{Template: map[string]any{"greet": named("b"), "onlyB": 2}})
	keepSource := New(Definition{Template: map[string]any{"greet": named("a")}, Override: common.PreferSource})

	cases := []struct {
		name      string
		composite *Composite
		want      string
	}{
		{name: "later composite wins", composite: Compose(a, b), want: "b"},
		{name: "self wins over others", composite: a.Compose(b), want: "a"},
		{name: "source kept when override disabled", composite: keepSource.Compose(b), want: "b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory, err := tc.composite.Resolve(data.Bundle{}, quiet())
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			product := build(t, factory, nil)
			got, err := product.Call("greet")
			if err != nil {
				t.Fatalf("Call error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, got)
			}
		})
	}

	merged := Compose(a, b)
	if keys := merged.TemplateKeys(); !reflect.DeepEqual(keys, []string{"greet", "onlyA", "onlyB"}) {
		t.Fatalf("unexpected template keys %v", keys)
	}
}

func TestComposeMergesExclusions(t *testing.T) {
	a := New(Definition{
		Template:  map[string]any{"_a": 1, "shown": 2},
		Exclusion: common.Exclusion{Prefixes: []string{"_"}},
	})
	b := New(Definition{
		Template:  map[string]any{"b_": 3, "_kept": 4},
		Exclusion: common.Exclusion{Postfixes: []string{"_"}, Exception: &common.Exception{Keys: []string{"_kept"}}},
	})
	factory, err := a.Compose(b).Resolve(data.Bundle{}, quiet())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	product := build(t, factory, nil)
	for key, want := range map[string]bool{"_a": false, "b_": false, "shown": true, "_kept": true, "reduceState": true} {
		if got := product.Has(key); got != want {
			t.Fatalf("Has(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestEnclosuresKeepPrivateState(t *testing.T) {
	clicks := New(Definition{
		Enclosures: map[string]Enclosure{
			"clicks": func() map[string]any {
				count := 0
				return map[string]any{
					"click": Method(func(*Product, ...any) (any, error) {
						count++
						return count, nil
					}),
				}
			},
		},
	})
	factory, err := clicks.Resolve(data.Bundle{}, quiet())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	first, second := build(t, factory, nil), build(t, factory, nil)
	_, _ = first.Call("click")
	got, _ := first.Call("click")
	other, _ := second.Call("click")
	if got != 2 || other != 1 {
		t.Fatalf("enclosure state leaked: %v %v", got, other)
	}
}

func TestMixin(t *testing.T) {
	base := New(Definition{Template: map[string]any{"kind": "base"}})
	mixed, err := base.Mixin(
		map[string]any{"kind": "mixed", "size": 3},
		Enclosure(func() map[string]any { return map[string]any{"extra": true} }),
	)
	if err != nil {
		t.Fatalf("Mixin error: %v", err)
	}
	if keys := mixed.TemplateKeys(); !reflect.DeepEqual(keys, []string{"extra", "kind", "size"}) {
		t.Fatalf("unexpected template keys %v", keys)
	}
	if keys := base.TemplateKeys(); !reflect.DeepEqual(keys, []string{"kind"}) {
		t.Fatalf("Mixin must not modify the receiver, got %v", keys)
	}
	if _, err := base.Mixin(42); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestInitializersRunInNameOrder(t *testing.T) {
	var order []string
	record := func(name string) Method {
		return func(self *Product, _ ...any) (any, error) {
			order = append(order, name)
			return self.ReduceState(map[string]any{"ready": true})
		}
	}
	def := New(Definition{Template: map[string]any{"$b": record("b"), "$a": record("a"), "$value": 1}})
	factory, err := def.Resolve(data.Bundle{"ready": false}, quiet())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	product := build(t, factory, nil)
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Fatalf("unexpected initializer order %v", order)
	}
	if ready, _ := product.Get("ready"); ready != true {
		t.Fatalf("initializers should see state, got %v", ready)
	}
}

func TestInitializerErrorsAreAggregated(t *testing.T) {
	failing := func(msg string) Method {
		return func(*Product, ...any) (any, error) { return nil, errors.New(msg) }
	}
	def := New(Definition{Template: map[string]any{"$one": failing("first"), "$two": failing("second")}})
	factory, err := def.Resolve(data.Bundle{}, quiet())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	_, err = factory(nil)
	if err == nil || !strings.Contains(err.Error(), "first") || !strings.Contains(err.Error(), "second") {
		t.Fatalf("expected both initializer errors, got %v", err)
	}
	if !errors.Is(err, ErrInitializer) {
		t.Fatalf("expected ErrInitializer, got %v", err)
	}
}

func profileFactory(t *testing.T) Factory {
	t.Helper()
	factory, err := New(Definition{}).Resolve(data.Bundle{
		"profile":  map[string]any{"name": "ada", "tags": []any{"x", "y"}},
		"settings": map[string]any{"value": nil},
		"count":    map[string]any{"value": 1, "stronglyTyped": true},
		"a":        1,
		"b":        2,
		"sum":      map[string]any{"computable": map[string]any{"contexts": []any{"a", "b"}, "compute": "a + b"}},
		"level":    data.Entry{Value: 1, Observable: &data.ObservableSpec{}},
	}, quiet())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	return factory
}

func TestReduceStateKeepsUnmentionedKeys(t *testing.T) {
	product := build(t, profileFactory(t), nil)
	applied, err := product.ReduceState(map[string]any{"profile": map[string]any{"name": "grace"}})
	if err != nil || !applied {
		t.Fatalf("ReduceState = %v, %v", applied, err)
	}
	want := map[string]any{"name": "grace", "tags": []any{"x", "y"}}
	if got := stateOf(t, product)["profile"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected profile %v", got)
	}
}

func TestReduceStateErrors(t *testing.T) {
	cases := []struct {
		name    string
		reducer map[string]any
		want    error
	}{
		{name: "unknown key", reducer: map[string]any{"nope": 1}, want: common.ErrUnknownKey},
		{name: "shape mismatch", reducer: map[string]any{"profile": "flat"}, want: common.ErrShapeMismatch},
		{name: "null growth needs reconfig", reducer: map[string]any{"settings": map[string]any{"theme": "dark"}}, want: common.ErrShapeMismatch},
	}
	product := build(t, profileFactory(t), nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := product.ReduceState(tc.reducer); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if got := stateOf(t, product)["profile"].(map[string]any)["name"]; got != "ada" {
		t.Fatalf("failed reduce must not write, got %v", got)
	}
}

func TestReduceStateReportsRejection(t *testing.T) {
	product := build(t, profileFactory(t), nil)
	applied, err := product.ReduceState(map[string]any{"count": "many"})
	if err != nil {
		t.Fatalf("rejection must not be an error: %v", err)
	}
	if applied {
		t.Fatalf("expected the strongly typed write to be rejected")
	}
	if got := stateOf(t, product)["count"]; got != 1 {
		t.Fatalf("rejected write changed count to %v", got)
	}
}

func TestReduceStateSkipsDescriptorManagedKeys(t *testing.T) {
	product := build(t, profileFactory(t), nil)
	applied, err := product.ReduceState(map[string]any{"sum": 10, "level": 9, "a": 5})
	if err != nil || !applied {
		t.Fatalf("ReduceState = %v, %v", applied, err)
	}
	state := stateOf(t, product)
	if fmt.Sprint(state["sum"]) != "7" || state["level"] != 1 {
		t.Fatalf("descriptor-managed keys written: sum=%v level=%v", state["sum"], state["level"])
	}
}

func TestReconfigStateGrowsFromNull(t *testing.T) {
	product := build(t, profileFactory(t), nil)
	if err := product.ReconfigState(map[string]any{"settings": map[string]any{"theme": "dark"}}); err != nil {
		t.Fatalf("ReconfigState error: %v", err)
	}
	if got := stateOf(t, product)["settings"]; !reflect.DeepEqual(got, map[string]any{"theme": "dark"}) {
		t.Fatalf("unexpected settings %v", got)
	}
	if err := product.ReconfigState(map[string]any{"profile": "flat"}); !errors.Is(err, common.ErrShapeMismatch) {
		t.Fatalf("reconfig only grows from null, got %v", err)
	}
}

func TestStateAtPath(t *testing.T) {
	product := build(t, profileFactory(t), nil)
	if _, err := product.ReduceStateAtPath("grace", "profile.name"); err != nil {
		t.Fatalf("ReduceStateAtPath leaf error: %v", err)
	}
	if _, err := product.ReduceStateAtPath([]any{"q"}, []any{"profile", "tags"}); err != nil {
		t.Fatalf("ReduceStateAtPath array error: %v", err)
	}
	if err := product.ReconfigStateAtPath(map[string]any{"theme": "light"}, "settings"); err != nil {
		t.Fatalf("ReconfigStateAtPath error: %v", err)
	}
	state := stateOf(t, product)
	want := map[string]any{"name": "grace", "tags": []any{"q", "y"}}
	if !reflect.DeepEqual(state["profile"], want) {
		t.Fatalf("unexpected profile %v", state["profile"])
	}
	if !reflect.DeepEqual(state["settings"], map[string]any{"theme": "light"}) {
		t.Fatalf("unexpected settings %v", state["settings"])
	}
	if _, err := product.ReduceStateAtPath(1, "profile.missing"); err == nil {
		t.Fatalf("expected error for a missing path")
	}
}

func TestResetState(t *testing.T) {
	product := build(t, counterFactory(t), map[string]any{"count": 4})
	for i := 0; i < 3; i++ {
		_, _ = product.Call("increment")
	}
	applied, err := product.ResetState()
	if err != nil || !applied {
		t.Fatalf("ResetState = %v, %v", applied, err)
	}
	if got := stateOf(t, product)["count"]; got != 4 {
		t.Fatalf("expected count reset to 4, got %v", got)
	}
}

func TestCallStateMethods(t *testing.T) {
	product := build(t, counterFactory(t), nil)
	if _, err := product.Call("reduceState", map[string]any{"count": 3}); err != nil {
		t.Fatalf("Call reduceState error: %v", err)
	}
	state, err := product.Call("getStateAsObject")
	if err != nil {
		t.Fatalf("Call getStateAsObject error: %v", err)
	}
	if state.(map[string]any)["count"] != 3 {
		t.Fatalf("unexpected state %v", state)
	}
	if _, err := product.Call("reduceState", "bad"); err == nil {
		t.Fatalf("expected an argument error")
	}
	if _, err := product.Call("missing"); !errors.Is(err, ErrUnknownMember) {
		t.Fatalf("expected ErrUnknownMember, got %v", err)
	}
}

func TestProductMembers(t *testing.T) {
	def := New(Definition{Template: map[string]any{
		"increment": Method(increment),
		"label":     map[string]any{"text": "clicks"},
	}})
	factory, err := def.Resolve(data.Bundle{"count": 0}, quiet())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	product := build(t, factory, nil)

	if _, err := product.Call("label"); !errors.Is(err, ErrNotMethod) {
		t.Fatalf("expected ErrNotMethod, got %v", err)
	}
	label, _ := product.Get("label")
	label.(map[string]any)["text"] = "changed"
	if again, _ := product.Get("label"); again.(map[string]any)["text"] != "clicks" {
		t.Fatalf("members must not be mutable through Get")
	}
	keys := product.Keys()
	for _, key := range []string{"count", "increment", "label", "reduceState", "updateStateAccessor"} {
		if !slices.Contains(keys, key) {
			t.Fatalf("expected key %q in %v", key, keys)
		}
	}
}

func TestUpdateStateAccessorAfterCursorWrite(t *testing.T) {
	product := build(t, counterFactory(t), nil)
	cursor, err := product.GetStateCursor()
	if err != nil {
		t.Fatalf("GetStateCursor error: %v", err)
	}
	if err := cursor.SetContentItem(9, "count"); err != nil {
		t.Fatalf("SetContentItem error: %v", err)
	}
	if got, _ := product.Get("count"); got != 0 {
		t.Fatalf("accessor should not refresh on its own, got %v", got)
	}
	if err := product.UpdateStateAccessor(); err != nil {
		t.Fatalf("UpdateStateAccessor error: %v", err)
	}
	if got, _ := product.Get("count"); got != 9 {
		t.Fatalf("expected refreshed count 9, got %v", got)
	}
}

func TestActivityHooksReachProducts(t *testing.T) {
	capture := &activity.CaptureHook{}
	actor := activity.Actor{ID: "worker"}
	product := build(t, counterFactory(t,
		WithActivityHooks(activity.Hooks{nil, capture}),
		WithActivityActor(actor),
	), nil)
	_, _ = product.Call("increment")
	if err := product.FlushState(); err != nil {
		t.Fatalf("FlushState error: %v", err)
	}
	verbs := capture.Verbs()
	if len(verbs) == 0 || verbs[len(verbs)-1] != activity.VerbStateFlushed {
		t.Fatalf("expected a flush event, got %v", verbs)
	}
	for _, event := range capture.Events {
		if event.Metadata["product_id"] != product.ID() {
			t.Fatalf("expected product id on %s, got %+v", event.Verb, event.Metadata)
		}
		if event.Actor != actor {
			t.Fatalf("expected actor on %s, got %+v", event.Verb, event.Actor)
		}
	}
}

func TestDecodeState(t *testing.T) {
	type counter struct {
		Count int `json:"count"`
	}
	product := build(t, counterFactory(t), map[string]any{"count": 7})
	decoded, err := DecodeState[counter](product, WithUnknownStateRejected[counter]())
	if err != nil {
		t.Fatalf("DecodeState error: %v", err)
	}
	if decoded.Count != 7 {
		t.Fatalf("unexpected decoded state %+v", decoded)
	}
	_, err = DecodeState[counter](product, WithStatePostHook[counter](func(ctx DecodeContext, c *counter) error {
		if ctx.ProductID != product.ID() || ctx.Path.String() != StateRoot {
			return fmt.Errorf("unexpected context %+v", ctx)
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("post hook error: %v", err)
	}
	type bounded struct {
		Count int `json:"count" validate:"lte=5"`
	}
	if _, err := DecodeState[bounded](product, WithStateValidation[bounded]()); err == nil {
		t.Fatalf("expected validation to reject count 7")
	}
}

func TestDecodeStateAt(t *testing.T) {
	type profile struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
	}
	product := build(t, profileFactory(t), nil)
	got, err := DecodeStateAt[profile](product, "profile", WithUnknownStateRejected[profile]())
	if err != nil {
		t.Fatalf("DecodeStateAt error: %v", err)
	}
	if got.Name != "ada" || !reflect.DeepEqual(got.Tags, []string{"x", "y"}) {
		t.Fatalf("unexpected profile %+v", got)
	}
	if _, err := DecodeStateAt[profile](product, "missing"); err == nil {
		t.Fatalf("expected an error for a missing key")
	}
}

func TestStateSchema(t *testing.T) {
	product := build(t, counterFactory(t), nil)
	descriptors, err := product.StateSchema(SchemaFormatDescriptors)
	if err != nil {
		t.Fatalf("StateSchema descriptors error: %v", err)
	}
	want := []data.FieldDescriptor{{Path: "count", Type: "number"}}
	if !reflect.DeepEqual(descriptors.Document, want) {
		t.Fatalf("unexpected descriptors %v", descriptors.Document)
	}

	document, err := product.StateSchema(SchemaFormatOpenAPI)
	if err != nil {
		t.Fatalf("StateSchema openapi error: %v", err)
	}
	paths := document.Document.(map[string]any)["paths"].(map[string]any)
	if _, ok := paths["/state"]; !ok {
		t.Fatalf("expected the reducer path, got %v", paths)
	}

	if _, err := product.StateSchema("yaml"); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}
