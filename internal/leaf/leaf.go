// Package leaf provides ready-made tree.Work implementations.
package leaf

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	bt "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/go-cbt/internal/blackboard"
	"github.com/joeycumines/go-cbt/internal/tree"
)

// Steps returns work that takes n steps per activation, calling fn (if
// non-nil) with the 1-based step number each time. It reports Running until
// the n-th step, which reports Success. An error from fn fails the
// activation.
func Steps(n int, fn func(ctx context.Context, step int) error) tree.Work {
	if n < 1 {
		n = 1
	}
	return &steps{n: n, fn: fn}
}

// steps is only ever called from its leaf's goroutine.
type steps struct {
	n  int
	fn func(ctx context.Context, step int) error
	// activation is the context of the current activation; a new one
	// restarts the count.
	activation context.Context
	done       int
}

func (s *steps) Step(ctx context.Context) (tree.State, error) {
	if ctx != s.activation {
		s.activation, s.done = ctx, 0
	}
	s.done++
	step := s.done
	if s.fn != nil {
		if err := s.fn(ctx, step); err != nil {
			return tree.Failure, err
		}
	}
	if step < s.n {
		return tree.Running, nil
	}
	return tree.Success, nil
}

// Sleep returns work that succeeds after d, or is interrupted when its
// context ends.
func Sleep(d time.Duration) tree.Work {
	return tree.WorkFunc(func(ctx context.Context) (tree.State, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return tree.Success, nil
		case <-ctx.Done():
			return tree.Failure, ctx.Err()
		}
	})
}

// Result returns work that immediately reports state.
func Result(state tree.State) tree.Work {
	return tree.WorkFunc(func(context.Context) (tree.State, error) {
		return state, nil
	})
}

// Set returns work that stores value under key and succeeds.
func Set(bb *blackboard.Blackboard, key string, value any) tree.Work {
	return tree.WorkFunc(func(context.Context) (tree.State, error) {
		bb.Set(key, value)
		return tree.Success, nil
	})
}

// Expr compiles src as a boolean expression over the blackboard's entries.
// The returned work succeeds when the expression is true and fails when it
// is false. Unknown variables evaluate to nil.
func Expr(src string, bb *blackboard.Blackboard) (tree.Work, error) {
	program, err := expr.Compile(src,
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", src, err)
	}
	return &condition{src: src, program: program, bb: bb}, nil
}

type condition struct {
	src     string
	program *vm.Program
	bb      *blackboard.Blackboard
}

func (c *condition) Step(context.Context) (tree.State, error) {
	env := c.bb.Snapshot()
	if env == nil {
		env = map[string]any{}
	}
	out, err := expr.Run(c.program, env)
	if err != nil {
		return tree.Failure, fmt.Errorf("evaluate condition %q: %w", c.src, err)
	}
	if ok, _ := out.(bool); ok {
		return tree.Success, nil
	}
	return tree.Failure, nil
}

// FromNode adapts a go-behaviortree node: every step ticks it once and maps
// its status. A tick error fails the activation.
func FromNode(node bt.Node) tree.Work {
	return tree.WorkFunc(func(context.Context) (tree.State, error) {
		status, err := node.Tick()
		if err != nil {
			return tree.Failure, err
		}
		return tree.StateOf(status), nil
	})
}

// Counter wraps work, counting its activations and steps. The counts are
// safe to read from any goroutine.
type Counter struct {
	Work tree.Work

	activation  context.Context
	activations atomic.Int64
	steps       atomic.Int64
}

// Step implements tree.Work.
func (c *Counter) Step(ctx context.Context) (tree.State, error) {
	if ctx != c.activation {
		c.activation = ctx
		c.activations.Add(1)
	}
	c.steps.Add(1)
	return c.Work.Step(ctx)
}

// Activations returns the number of activations started.
func (c *Counter) Activations() int64 { return c.activations.Load() }

// Steps returns the number of Step calls.
func (c *Counter) Steps() int64 { return c.steps.Load() }
