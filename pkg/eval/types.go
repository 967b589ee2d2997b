// Package eval runs string expressions for computed values and event
// triggers. The default engine is expr-lang/expr; cel-go is available
// through NewCELEvaluator and goja through NewJSEvaluator when built with
// the js_eval tag.
package eval

import (
	"sort"
	"strings"
	"time"
)

// RuleContext carries inputs needed when evaluating an expression. Keys of a
// map Snapshot are exposed as top level variables.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Label names the caller in errors and log events, typically the key
	// path that owns the expression.
	Label string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) label() string {
	if ctx.Label != "" {
		return ctx.Label
	}
	return "unknown"
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
}

// bindings returns the variables an expression sees: now, args, metadata
// and every snapshot key, the latter taking precedence.
func (ctx RuleContext) bindings() map[string]any {
	snapshot := snapshotAsMap(ctx.Snapshot)
	out := make(map[string]any, len(snapshot)+3)
	out["now"] = ctx.timestamp()
	out["args"] = ctx.Args
	out["metadata"] = ctx.Metadata
	for key, value := range snapshot {
		out[key] = value
	}
	return out
}

// programKey identifies a program compiled for expression against the
// variable names in vars.
func programKey(engine, expression string, vars map[string]any) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return engine + ":" + strings.Join(names, ",") + ":" + expression
}

func snapshotAsMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
