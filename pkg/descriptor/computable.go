package descriptor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-composite/pkg/eval"
)

// Getter reads a live value another key depends on.
type Getter func() any

// ComputeFunc derives a value from named context values.
type ComputeFunc func(ctx map[string]any) (any, error)

// Computable replaces a slot with a read-only value derived on every read
// from live context getters. Results are not memoized.
type Computable struct {
	base
	contexts map[string]Getter
	compute  ComputeFunc
}

// NewComputable creates an unassigned computable for id.
func NewComputable(id, key string, contexts map[string]Getter, compute ComputeFunc, opts ...Option) (*Computable, error) {
	if compute == nil {
		return nil, fmt.Errorf("descriptor: computable %s has no compute function", id)
	}
	bound := make(map[string]Getter, len(contexts))
	for name, getter := range contexts {
		if getter == nil {
			return nil, fmt.Errorf("descriptor: computable %s context %q has no getter", id, name)
		}
		bound[name] = getter
	}
	return &Computable{
		base:     newBase(id, key, opts),
		contexts: bound,
		compute:  compute,
	}, nil
}

// ExpressionCompute builds a ComputeFunc that evaluates expr with the
// context values as variables.
func ExpressionCompute(runner *eval.Runner, expr, label string) ComputeFunc {
	return func(ctx map[string]any) (any, error) {
		if runner == nil {
			return nil, eval.ErrNoEvaluator
		}
		return runner.Evaluate(eval.RuleContext{Snapshot: ctx, Label: label}, expr)
	}
}

func (c *Computable) Kind() Kind { return KindComputable }

// Contexts lists context names in sorted order.
func (c *Computable) Contexts() []string {
	names := make([]string, 0, len(c.contexts))
	for name := range c.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AssignTo replaces host's slot with the computable. The previous slot is
// kept and restored by Unassign.
func (c *Computable) AssignTo(host Host) error {
	return c.attach(host, c)
}

func (c *Computable) Unassign() error {
	return c.detach(c)
}

// Value computes the current value.
func (c *Computable) Value() (any, error) {
	ctx := make(map[string]any, len(c.contexts))
	for name, getter := range c.contexts {
		ctx[name] = getter()
	}
	value, err := c.compute(ctx)
	if err != nil {
		var evalErr *eval.EvaluationError
		if errors.As(err, &evalErr) {
			return nil, err
		}
		return nil, fmt.Errorf("descriptor: compute %s: %w", c.id, err)
	}
	return value, nil
}

// Get computes the current value, logging failures and returning nil.
func (c *Computable) Get() any {
	value, err := c.Value()
	if err != nil {
		c.reporter().Logger().Error("computable failed", "key", c.id, "error", err)
		return nil
	}
	return value
}

func (c *Computable) Set(any) error {
	return fmt.Errorf("%w: %s", ErrComputableWrite, c.id)
}
