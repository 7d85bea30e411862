package cmd

import (
	"context"
	"testing"
)

type stubCommand struct {
	name string
	ran  int
}

func (c *stubCommand) Name() string { return c.name }
func (c *stubCommand) Description() string { return "stub" }
func (c *stubCommand) Run(ctx context.Context, inv *Invocation) error {
	c.ran++
	return nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubCommand{name: "beta"})
	r.Register(&stubCommand{name: "alpha"})

	if r.Get("beta") == nil {
		t.Error("Get(beta) = nil")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}

	all := r.GetAll()
	if len(all) != 2 || all[0].Name() != "alpha" || all[1].Name() != "beta" {
		t.Errorf("GetAll not sorted by name: %v", []string{all[0].Name(), all[1].Name()})
	}
}

func TestApplyAndRoot(t *testing.T) {
	inner := &stubCommand{name: "play"}

	var order []string
	mw := func(tag string) Middleware {
		return func(c Command) Command {
			return Wrap(c, func(ctx context.Context, inv *Invocation) error {
				order = append(order, tag)
				return c.Run(ctx, inv)
			})
		}
	}

	c := Apply(inner, mw("first"), mw("second"))
	if err := c.Run(context.Background(), &Invocation{}); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	// Apply wraps in order, so the last middleware runs first.
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("middleware order = %v, want [second first]", order)
	}
	if inner.ran != 1 {
		t.Errorf("inner ran %d times, want 1", inner.ran)
	}

	if Root(c) != inner {
		t.Error("Root should unwrap to the inner command")
	}
	if c.Name() != "play" {
		t.Errorf("wrapped Name = %q, want play", c.Name())
	}
}
