package activity

import (
	"context"
	"time"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "state"

// Config holds what an Emitter stamps on events that leave it blank.
type Config struct {
	Enabled bool
	Channel string
	Actor   Actor
	// Metadata is merged under each event's own metadata.
	Metadata map[string]any
	Clock    func() time.Time
}

// Emitter stamps defaults on events and hands them to hooks. A nil Emitter
// is valid and never emits.
type Emitter struct {
	hooks    Hooks
	defaults Config
}

// NewEmitter builds an emitter; it is disabled when cfg.Enabled is false or
// no non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	cfg.Metadata = cloneMap(cfg.Metadata)
	return &Emitter{hooks: hooks.Compact(), defaults: cfg}
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.defaults.Enabled && len(e.hooks) > 0
}

// Emit applies defaults to event and notifies every hook.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if event.Channel == "" {
		event.Channel = e.defaults.Channel
	}
	if event.Actor.IsZero() {
		event.Actor = e.defaults.Actor
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.defaults.Clock()
	}
	if len(e.defaults.Metadata) > 0 {
		merged := cloneMap(e.defaults.Metadata)
		for key, value := range event.Metadata {
			merged[key] = value
		}
		event.Metadata = merged
	}
	return e.hooks.Notify(ctx, event)
}
