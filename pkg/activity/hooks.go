// Package activity fans state events out to external sinks. The data layer
// emits an event for every observable write, every history flush, and every
// history rollover when hooks are configured.
package activity

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Actor attributes a state event. Fields are opaque strings; sinks parse
// them as they need.
type Actor struct {
	ID       string
	UserID   string
	TenantID string
}

// IsZero reports whether no field is set.
func (a Actor) IsZero() bool { return a == Actor{} }

// Event describes a state lifecycle occurrence. ObjectID is the dotted key
// path for key events and the root key for history events.
type Event struct {
	Verb       string
	ObjectType string
	ObjectID   string
	Channel    string
	Actor      Actor
	Metadata   map[string]any
	OccurredAt time.Time
}

// Routable reports whether the event names a verb and an object.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Clone returns a copy whose metadata map is not shared.
func (e Event) Clone() Event {
	out := e
	out.Metadata = cloneMap(e.Metadata)
	return out
}

// ActivityHook receives state events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Compact returns the non-nil hooks, or nil when there are none.
func (h Hooks) Compact() Hooks {
	var out Hooks
	for _, hook := range h {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}

// Notify hands every hook its own copy of event and aggregates failures.
// Events that are not routable are dropped.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 || !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	var result *multierror.Error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event.Clone()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
