package data

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-composite/pkg/activity"
	"github.com/goliatone/go-composite/pkg/eval"
	"github.com/goliatone/go-composite/pkg/logging"
	"github.com/imdario/mergo"
)

// DefaultMutationHistoryDepth bounds the snapshots kept per immutable root.
const DefaultMutationHistoryDepth = 20

// Config is the resolved configuration of an Element.
type Config struct {
	// MutationHistoryDepth caps retained snapshots per immutable root. Once
	// exceeded, the oldest max(1, depth/2) snapshots are evicted together.
	MutationHistoryDepth int `validate:"gte=1"`
	// Lenient logs fatal errors of write and describe operations instead of
	// returning them.
	Lenient bool
	Debug   logging.Debug
	Logger  logging.Logger `validate:"required"`
	// Evaluator runs string computables and string conditions. Nil selects
	// expr-lang/expr.
	Evaluator eval.Evaluator
	// Functions are callable by name from expressions run by the default
	// evaluator.
	Functions       map[string]eval.Function
	ActivityHooks   activity.Hooks
	ActivityChannel string
	// ActivityActor and ActivityMetadata are stamped on emitted events.
	ActivityActor    activity.Actor
	ActivityMetadata map[string]any
	Clock            func() time.Time `validate:"required"`
}

// Option configures an Element.
type Option func(*Config)

// WithMutationHistoryDepth sets how many snapshots immutable roots keep.
func WithMutationHistoryDepth(depth int) Option {
	return func(cfg *Config) {
		cfg.MutationHistoryDepth = depth
	}
}

// WithStrict selects strict (default) or lenient error handling.
func WithStrict(strict bool) Option {
	return func(cfg *Config) {
		cfg.Lenient = !strict
	}
}

// WithDebug enables advisory log output.
func WithDebug(debug logging.Debug) Option {
	return func(cfg *Config) {
		cfg.Debug = debug
	}
}

// WithLogger replaces the default logrus logger.
func WithLogger(logger logging.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = logger
	}
}

// WithEvaluator sets the expression engine.
func WithEvaluator(evaluator eval.Evaluator) Option {
	return func(cfg *Config) {
		cfg.Evaluator = evaluator
	}
}

// WithFunction exposes fn to string computables and conditions as name.
func WithFunction(name string, fn eval.Function) Option {
	return func(cfg *Config) {
		if cfg.Functions == nil {
			cfg.Functions = map[string]eval.Function{}
		}
		cfg.Functions[name] = fn
	}
}

// WithActivityHooks emits state events to hooks.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(cfg *Config) {
		cfg.ActivityHooks = append(cfg.ActivityHooks, hooks...)
	}
}

// WithActivityActor attributes emitted events to actor.
func WithActivityActor(actor activity.Actor) Option {
	return func(cfg *Config) {
		cfg.ActivityActor = actor
	}
}

// WithActivityMetadata adds key to the metadata of every emitted event.
func WithActivityMetadata(key string, value any) Option {
	return func(cfg *Config) {
		if cfg.ActivityMetadata == nil {
			cfg.ActivityMetadata = map[string]any{}
		}
		cfg.ActivityMetadata[key] = value
	}
}

// WithActivityChannel sets the channel applied to emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *Config) {
		cfg.ActivityChannel = channel
	}
}

// WithClock sets the time source for history timestamps.
func WithClock(clock func() time.Time) Option {
	return func(cfg *Config) {
		cfg.Clock = clock
	}
}

var configValidate = validator.New()

// tunableDefaults holds the plain-valued defaults folded in by mergo.
func tunableDefaults() Config {
	return Config{
		MutationHistoryDepth: DefaultMutationHistoryDepth,
		ActivityChannel:      activity.DefaultChannel,
	}
}

// ResolveConfig applies opts, folds in defaults for unset fields and
// validates the result.
func ResolveConfig(opts ...Option) (Config, error) {
	cfg := Config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := mergo.Merge(&cfg, tunableDefaults()); err != nil {
		return Config{}, fmt.Errorf("data: config defaults: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if err := configValidate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := cfg.functionRegistry(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (cfg Config) functionRegistry() (*eval.FunctionRegistry, error) {
	if len(cfg.Functions) == 0 {
		return nil, nil
	}
	registry := eval.NewFunctionRegistry()
	for _, name := range sortedKeys(cfg.Functions) {
		if err := registry.Register(name, cfg.Functions[name]); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
