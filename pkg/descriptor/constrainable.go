package descriptor

import (
	"fmt"
	"strings"
)

// Context is what a constraint sees for one attempted write.
type Context struct {
	Key      string
	OldValue any
	NewValue any
}

// Verdict is a constraint's answer. Reject, when set, runs if the write is
// vetoed. A verified verdict may carry a Reason as a note.
type Verdict struct {
	Verified bool
	Reject   func()
	Reason   string
}

// Constraint decides whether a write may commit.
type Constraint func(Context) Verdict

// Accept is a verified verdict.
func Accept() Verdict { return Verdict{Verified: true} }

// Deny is a vetoing verdict.
func Deny(reason string) Verdict { return Verdict{Reason: reason} }

// Constrainable vetoes writes unless every named constraint verifies.
type Constrainable struct {
	base
	names       []string
	constraints map[string]Constraint
}

// NewConstrainable creates an unassigned constrainable for id, intercepting
// the host slot stored under key.
func NewConstrainable(id, key string, opts ...Option) *Constrainable {
	return &Constrainable{
		base:        newBase(id, key, opts),
		constraints: map[string]Constraint{},
	}
}

func (c *Constrainable) Kind() Kind { return KindConstrainable }

// Constrain adds or replaces the constraint stored under name.
func (c *Constrainable) Constrain(name string, constraint Constraint) *Constrainable {
	if _, exists := c.constraints[name]; !exists {
		c.names = append(c.names, name)
	}
	c.constraints[name] = constraint
	return c
}

// Unconstrain drops the named constraint.
func (c *Constrainable) Unconstrain(name string) bool {
	if _, ok := c.constraints[name]; !ok {
		return false
	}
	delete(c.constraints, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i:i], c.names[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether a constraint is stored under name.
func (c *Constrainable) Has(name string) bool {
	_, ok := c.constraints[name]
	return ok
}

// Names lists constraint names in the order they were added.
func (c *Constrainable) Names() []string {
	return append([]string(nil), c.names...)
}

// AssignTo installs the constrainable over host's slot.
func (c *Constrainable) AssignTo(host Host) error {
	return c.attach(host, c)
}

func (c *Constrainable) Unassign() error {
	return c.detach(c)
}

func (c *Constrainable) Get() any {
	if c.next == nil {
		return nil
	}
	return c.next.Get()
}

// Set commits value when all constraints verify. A veto returns an error
// wrapping ErrRejected and leaves the stored value untouched.
func (c *Constrainable) Set(value any) error {
	if c.next == nil {
		return fmt.Errorf("%w: %s", ErrNotAssigned, c.id)
	}
	reasons := c.Check(Context{Key: c.key, OldValue: c.next.Get(), NewValue: value})
	if len(reasons) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrRejected, c.id, strings.Join(reasons, "; "))
	}
	return c.next.Set(value)
}

// Check runs every constraint against ctx and returns the reasons of those
// that vetoed. Reject callbacks of vetoing verdicts are invoked.
func (c *Constrainable) Check(ctx Context) []string {
	var reasons []string
	for _, name := range c.names {
		constraint := c.constraints[name]
		if constraint == nil {
			c.reporter().Logger().Error("malformed constraint treated as verified", "key", c.id, "constraint", name)
			continue
		}
		verdict := constraint(ctx)
		if verdict.Verified {
			if verdict.Reason != "" {
				c.reporter().Info("constraint note", "key", c.id, "constraint", name, "note", verdict.Reason)
			}
			continue
		}
		reason := name
		if verdict.Reason != "" {
			reason = name + ": " + verdict.Reason
		}
		reasons = append(reasons, reason)
		if verdict.Reject != nil {
			verdict.Reject()
			continue
		}
		c.reporter().Warn0("write rejected", "key", c.id, "constraint", name, "reason", verdict.Reason)
	}
	return reasons
}
