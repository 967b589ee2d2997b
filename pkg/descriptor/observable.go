package descriptor

import (
	"context"
	"fmt"

	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/eval"
)

// Trigger decides whether a condition matches a write. ctx maps the
// observed key to the new value.
type Trigger func(ctx map[string]any) (bool, error)

// Condition reroutes a write's payload to EventID when Trigger matches.
type Condition struct {
	EventID string
	Trigger Trigger
}

// ExpressionTrigger builds a Trigger that evaluates expr to a boolean.
func ExpressionTrigger(runner *eval.Runner, expr, label string) Trigger {
	return func(ctx map[string]any) (bool, error) {
		if runner == nil {
			return false, eval.ErrNoEvaluator
		}
		return runner.EvaluateBool(eval.RuleContext{Snapshot: ctx, Label: label}, expr)
	}
}

// Observable publishes every committed write through a Subject. The payload
// goes to the descriptor's own id unless a condition matches; conditions
// are checked in registration order and the last match wins.
type Observable struct {
	base
	subject    *Subject
	conditions []Condition
	handlers   []subscription
}

type subscription struct {
	eventID    string
	handlerKey string
}

// NewObservable creates an unassigned observable publishing on subject.
func NewObservable(id, key string, subject *Subject, opts ...Option) *Observable {
	if subject == nil {
		subject = NewSubject()
	}
	return &Observable{
		base:    newBase(id, key, opts),
		subject: subject,
	}
}

func (o *Observable) Kind() Kind { return KindObservable }

// Subject exposes the stream the observable publishes on.
func (o *Observable) Subject() *Subject { return o.subject }

// AddCondition registers a rerouting condition.
func (o *Observable) AddCondition(eventID string, trigger Trigger) error {
	if eventID == "" {
		return fmt.Errorf("descriptor: observable %s condition needs an event id", o.id)
	}
	if trigger == nil {
		return fmt.Errorf("descriptor: observable %s condition %q has no trigger", o.id, eventID)
	}
	o.conditions = append(o.conditions, Condition{EventID: eventID, Trigger: trigger})
	return nil
}

// Conditions lists condition event ids in registration order.
func (o *Observable) Conditions() []string {
	ids := make([]string, 0, len(o.conditions))
	for _, c := range o.conditions {
		ids = append(ids, c.EventID)
	}
	return ids
}

// Subscribe registers h on the descriptor's own event id.
func (o *Observable) Subscribe(handlerKey string, h Handler) error {
	return o.SubscribeTo(o.id, handlerKey, h)
}

// SubscribeTo registers h on eventID, typically a condition's event id.
// Unassign removes it.
func (o *Observable) SubscribeTo(eventID, handlerKey string, h Handler) error {
	if err := o.subject.Subscribe(eventID, handlerKey, h); err != nil {
		return err
	}
	o.handlers = append(o.handlers, subscription{eventID: eventID, handlerKey: handlerKey})
	return nil
}

// AssignTo installs the observable over host's slot.
func (o *Observable) AssignTo(host Host) error {
	return o.attach(host, o)
}

// Unassign terminates the stream: handlers registered through the
// observable are unsubscribed and conditions cleared.
func (o *Observable) Unassign() error {
	if err := o.detach(o); err != nil {
		return err
	}
	for _, sub := range o.handlers {
		o.subject.Unsubscribe(sub.eventID, sub.handlerKey)
	}
	o.handlers = nil
	o.conditions = nil
	return nil
}

func (o *Observable) Get() any {
	if o.next == nil {
		return nil
	}
	return o.next.Get()
}

// Set commits value through the wrapped slot and publishes it. Vetoed or
// failed writes publish nothing.
func (o *Observable) Set(value any) error {
	if o.next == nil {
		return fmt.Errorf("%w: %s", ErrNotAssigned, o.id)
	}
	old := o.next.Get()
	if err := o.next.Set(value); err != nil {
		return err
	}
	committed := o.next.Get()
	payload := Payload{
		EventID:      o.route(committed),
		DescriptorID: o.id,
		Key:          o.key,
		Value:        committed,
		OldValue:     old,
	}
	o.subject.Publish(payload)
	o.emit(payload)
	return nil
}

func (o *Observable) route(value any) string {
	eventID := o.id
	ctx := map[string]any{o.key: value}
	for _, condition := range o.conditions {
		matched, err := condition.Trigger(ctx)
		if err != nil {
			o.reporter().Logger().Error("observable condition failed", "key", o.id, "event", condition.EventID, "error", err)
			continue
		}
		if matched {
			eventID = condition.EventID
		}
	}
	return eventID
}

func (o *Observable) emit(payload Payload) {
	emitter := o.settings.emitter
	if !emitter.Enabled() {
		return
	}
	event := activity.StateChanged(o.settings.rootKey, o.id, payload.EventID, payload.OldValue, payload.Value)
	if err := emitter.Emit(context.Background(), event); err != nil {
		o.reporter().Logger().Warn("activity emission failed", "key", o.id, "error", err)
	}
}
