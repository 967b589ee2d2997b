package descriptor

import (
	"errors"
	"testing"

	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/eval"
)

func TestObservablePublishesCommittedWrites(t *testing.T) {
	host := newHost(map[string]any{"count": 0})
	subject := NewSubject()
	o := NewObservable("r.count", "count", subject)
	var seen []any
	if err := o.Subscribe("log", func(value any) { seen = append(seen, value) }); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	if err := o.Subscribe("log", func(any) {}); err == nil {
		t.Fatalf("duplicate handler key should fail")
	}
	if err := o.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}

	for _, v := range []int{1, 2} {
		if err := host.set("count", v); err != nil {
			t.Fatalf("Set error: %v", err)
		}
	}
	if len(seen) != 2 || seen[1] != 2 {
		t.Fatalf("unexpected published values %v", seen)
	}

	if err := o.Unassign(); err != nil {
		t.Fatalf("Unassign error: %v", err)
	}
	if subject.Count("r.count") != 0 {
		t.Fatalf("unassign should unsubscribe handlers")
	}
	if err := host.set("count", 3); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("no publication expected after unassign")
	}
}

func TestObservableLastMatchingConditionWins(t *testing.T) {
	host := newHost(map[string]any{"n": 0})
	o := NewObservable("r.n", "n", nil)
	above := func(limit int) Trigger {
		return func(ctx map[string]any) (bool, error) {
			return ctx["n"].(int) > limit, nil
		}
	}
	if err := o.AddCondition("n.positive", above(0)); err != nil {
		t.Fatalf("AddCondition error: %v", err)
	}
	if err := o.AddCondition("n.large", above(10)); err != nil {
		t.Fatalf("AddCondition error: %v", err)
	}
	got := map[string][]any{}
	for _, id := range []string{"r.n", "n.positive", "n.large"} {
		eventID := id
		if err := o.SubscribeTo(eventID, "h", func(v any) { got[eventID] = append(got[eventID], v) }); err != nil {
			t.Fatalf("SubscribeTo error: %v", err)
		}
	}
	if err := o.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}

	for _, v := range []int{-1, 5, 20} {
		if err := host.set("n", v); err != nil {
			t.Fatalf("Set error: %v", err)
		}
	}
	if len(got["r.n"]) != 1 || got["r.n"][0] != -1 {
		t.Fatalf("default event should only see -1, got %v", got["r.n"])
	}
	if len(got["n.positive"]) != 1 || got["n.positive"][0] != 5 {
		t.Fatalf("positive event should only see 5, got %v", got["n.positive"])
	}
	// 20 matches both conditions; the later registration wins.
	if len(got["n.large"]) != 1 || got["n.large"][0] != 20 {
		t.Fatalf("large event should see 20, got %v", got["n.large"])
	}
	if ids := o.Conditions(); len(ids) != 2 || ids[1] != "n.large" {
		t.Fatalf("unexpected condition order %v", ids)
	}
}

func TestObservableSkipsRejectedWrites(t *testing.T) {
	host := newHost(map[string]any{"n": 1})
	c := NewConstrainable("r.n", "n").Constrain(ConstraintBounded, Bounded(0, 5))
	o := NewObservable("r.n", "n", nil)
	var published int
	_ = o.Subscribe("h", func(any) { published++ })
	if err := o.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}
	// Constrainable assigned second sits outside the observable.
	if err := c.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}
	if err := host.set("n", 9); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if published != 0 {
		t.Fatalf("rejected write must not publish")
	}
	if err := host.set("n", 4); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected one publication, got %d", published)
	}
}

func TestObservableExpressionTriggerAndActivity(t *testing.T) {
	capture := &activity.CaptureHook{}
	emitter := activity.NewEmitter(activity.Hooks{capture}, activity.Config{Enabled: true})
	runner := eval.NewRunner()
	host := newHost(map[string]any{"temp": 10})
	o := NewObservable("r.temp", "temp", nil, WithEmitter(emitter), WithRootKey("r"))
	if err := o.AddCondition("temp.hot", ExpressionTrigger(runner, "temp > 30", "r.temp")); err != nil {
		t.Fatalf("AddCondition error: %v", err)
	}
	var hot []any
	_ = o.SubscribeTo("temp.hot", "alarm", func(v any) { hot = append(hot, v) })
	if err := o.AssignTo(host); err != nil {
		t.Fatalf("AssignTo error: %v", err)
	}

	_ = host.set("temp", 25)
	_ = host.set("temp", 35)
	if len(hot) != 1 || hot[0] != 35 {
		t.Fatalf("expected single hot event, got %v", hot)
	}
	if len(capture.Events) != 2 {
		t.Fatalf("expected two activity events, got %d", len(capture.Events))
	}
	last := capture.Events[1]
	if last.Verb != activity.VerbStateChanged || last.ObjectID != "r.temp" || last.Metadata["event_id"] != "temp.hot" {
		t.Fatalf("unexpected activity event %+v", last)
	}
	if last.Metadata["root_key"] != "r" {
		t.Fatalf("expected root key metadata, got %+v", last.Metadata)
	}
}

func TestSubjectOrderingAndUnsubscribe(t *testing.T) {
	subject := NewSubject()
	var order []string
	for _, key := range []string{"b", "a", "c"} {
		k := key
		if err := subject.Subscribe("e", k, func(any) { order = append(order, k) }); err != nil {
			t.Fatalf("Subscribe error: %v", err)
		}
	}
	if n := subject.Publish(Payload{EventID: "e"}); n != 3 {
		t.Fatalf("expected 3 handlers, got %d", n)
	}
	if len(order) != 3 || order[0] != "b" || order[2] != "c" {
		t.Fatalf("handlers must run in subscription order, got %v", order)
	}
	if !subject.Unsubscribe("e", "a") || subject.Unsubscribe("e", "a") {
		t.Fatalf("unsubscribe should succeed once")
	}
	if subject.Count("e") != 2 {
		t.Fatalf("expected 2 handlers left")
	}
	if err := subject.Subscribe("e", "nil", nil); err == nil {
		t.Fatalf("nil handler should fail")
	}
}
