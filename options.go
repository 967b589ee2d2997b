package composite

import (
	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/data"
	"github.com/goliatone/go-composite/pkg/logging"
	"github.com/google/uuid"
)

// Option configures Resolve.
type Option func(*resolveConfig)

type resolveConfig struct {
	elementOptions []data.Option
	activityHooks  activity.Hooks
	activityActor  activity.Actor
	logger         logging.Logger
	newID          func() string
}

func applyOptions(opts []Option) resolveConfig {
	cfg := resolveConfig{newID: uuid.NewString}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// dataOptions returns the data options the element of product id is built
// with. Explicit element options are applied last.
func (cfg resolveConfig) dataOptions(id string) []data.Option {
	var out []data.Option
	if cfg.logger != nil {
		out = append(out, data.WithLogger(cfg.logger))
	}
	if len(cfg.activityHooks) > 0 {
		out = append(out,
			data.WithActivityHooks(cfg.activityHooks...),
			data.WithActivityActor(cfg.activityActor),
			data.WithActivityMetadata("product_id", id),
		)
	}
	return append(out, cfg.elementOptions...)
}

// WithElementOptions forwards options to every product's data element.
func WithElementOptions(opts ...data.Option) Option {
	return func(cfg *resolveConfig) {
		cfg.elementOptions = append(cfg.elementOptions, opts...)
	}
}

// WithLogger sets the logger shared by every product's data element.
func WithLogger(logger logging.Logger) Option {
	return func(cfg *resolveConfig) {
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks to every product's data element.
// Nil entries are dropped. Events carry the product id in their metadata.
func WithActivityHooks(hooks activity.Hooks) Option {
	compact := hooks.Compact()
	return func(cfg *resolveConfig) {
		cfg.activityHooks = compact
	}
}

// WithActivityActor attributes every product's state events to actor.
func WithActivityActor(actor activity.Actor) Option {
	return func(cfg *resolveConfig) {
		cfg.activityActor = actor
	}
}

// WithIDGenerator replaces the uuid product id generator.
func WithIDGenerator(next func() string) Option {
	return func(cfg *resolveConfig) {
		if next != nil {
			cfg.newID = next
		}
	}
}
