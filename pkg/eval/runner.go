package eval

import (
	"fmt"
	"sync"
	"time"
)

// Option configures a Runner.
type Option func(*Runner)

// WithEvaluator replaces the default expr evaluator.
func WithEvaluator(evaluator Evaluator) Option {
	return func(r *Runner) {
		r.evaluator = evaluator
	}
}

// WithProgramCache sets the cache handed to the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(r *Runner) {
		r.cache = cache
	}
}

// WithFunctionRegistry exposes registry functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(r *Runner) {
		if registry == nil {
			return
		}
		r.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
func WithCustomFunction(name string, fn Function) Option {
	return func(r *Runner) {
		if r.functions == nil {
			r.functions = NewFunctionRegistry()
		}
		_ = r.functions.Register(name, fn)
	}
}

// WithLogger attaches an evaluation logger.
func WithLogger(logger Logger) Option {
	return func(r *Runner) {
		if logger == nil {
			r.logger = noopLogger{}
			return
		}
		r.logger = logger
	}
}

// WithClock overrides the time source used for the "now" variable.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// Runner evaluates expressions with a lazily resolved evaluator, logging
// every attempt. It is safe for concurrent use.
type Runner struct {
	mu        sync.Mutex
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
	logger    Logger
	clock     func() time.Time
}

// NewRunner builds a Runner. Without WithEvaluator it uses expr-lang/expr
// with an in-memory program cache.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		cache:  NewMemoryCache(),
		logger: noopLogger{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Evaluate runs expr against ctx and logs the attempt.
func (r *Runner) Evaluate(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, ErrEmptyExpression
	}
	evaluator, err := r.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	if ctx.Now == nil && r.clock != nil {
		now := r.clock()
		ctx.Now = &now
	}
	ctx = ctx.withDefaults()
	engine := EngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, expr, ctx.label(), evalErr)
	r.logger.LogEvaluation(LogEvent{
		Engine:   engine,
		Expr:     expr,
		Label:    ctx.label(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// EvaluateBool runs expr and requires a boolean result.
func (r *Runner) EvaluateBool(ctx RuleContext, expr string) (bool, error) {
	value, err := r.Evaluate(ctx, expr)
	if err != nil {
		return false, err
	}
	result, ok := value.(bool)
	if !ok {
		return false, wrapEvaluationError(r.Engine(), expr, ctx.label(), fmt.Errorf("expected bool result, got %T", value))
	}
	return result, nil
}

// Engine names the resolved evaluator.
func (r *Runner) Engine() string {
	evaluator, err := r.resolveEvaluator()
	if err != nil {
		return "unknown"
	}
	return EngineName(evaluator)
}

func (r *Runner) resolveEvaluator() (Evaluator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evaluator != nil {
		return r.evaluator, nil
	}
	var exprOpts []ExprOption
	if r.cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(r.cache))
	}
	if r.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(r.functions))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	r.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

// EngineName reports which engine backs e.
func EngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*eval.exprEvaluator":
		return "expr"
	case "*eval.celEvaluator":
		return "cel"
	case "*eval.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
