package tree

import (
	"context"
	"log/slog"
)

// composite is the private state of a Control node's loop.
type composite struct {
	node *Node
	// cursor is the index of the child being driven. It persists across tick
	// cycles and is reset whenever the composite reports a terminal result.
	cursor int
	// observed caches the last state read from each child, re-synchronized
	// from the child's result channel on every cycle.
	observed []State
}

// runComposite drives a Control node. Every tick cycle publishes exactly one
// state: Running while a child is in progress, or a terminal result, which is
// followed by a wait for the parent's acknowledgment tick.
func (n *Node) runComposite(ctx context.Context) error {
	c := &composite{
		node:     n,
		observed: make([]State, len(n.children)),
	}
	for {
		if err := n.ticks.Wait(ctx); err != nil {
			return err
		}

		var (
			result State
			err    error
		)
		if n.halt.Load() {
			result, err = c.halt(ctx)
		} else {
			result, err = c.cycle(ctx)
		}
		if err != nil {
			return err
		}

		if err := n.publish(ctx, result); err != nil {
			return err
		}
		if !result.Terminal() {
			continue
		}
		if !n.awaitAck(ctx, result) {
			return nil
		}
	}
}

// cycle advances through the children from the cursor, per the policy.
func (c *composite) cycle(ctx context.Context) (State, error) {
	policy := c.node.policy
	for c.cursor < len(c.node.children) {
		s, err := c.observe(ctx, c.cursor)
		if err != nil {
			return Idle, err
		}
		switch s {
		case policy.advance():
			c.cursor++
		case Running:
			return Running, nil
		default:
			c.node.log.Debug("composite settled early",
				slog.Int("child", c.cursor),
				slog.String("result", s.String()))
			c.reset()
			return s, nil
		}
	}
	c.reset()
	return policy.exhausted(), nil
}

// observe refreshes the state of child i.
//
// An idle child is ticked and read (activation). A running leaf is never
// ticked again. Once it has recorded a terminal state its result is read;
// otherwise its result channel is polled, and an empty poll means it is
// still running. A running Control child is ticked and read, because
// composites progress only on ticks. Every terminal result is acknowledged
// with one more tick, which releases the child back to Idle.
func (c *composite) observe(ctx context.Context, i int) (State, error) {
	child := c.node.tree.nodes[c.node.children[i]]

	var (
		s   State
		err error
	)
	if c.observed[i] == Running && child.typ.Leaf() {
		if child.State().Terminal() {
			// The leaf records its result before publishing it, so the
			// value is already on its way.
			if s, err = child.ReadState(ctx); err != nil {
				return Idle, err
			}
		} else {
			var ok bool
			if s, ok = child.result.TryConsume(); !ok {
				return Running, nil
			}
		}
	} else if s, err = c.activate(ctx, child); err != nil {
		return Idle, err
	}

	c.observed[i] = s
	if s.Terminal() {
		if err := child.Tick(); err != nil {
			return Idle, err
		}
		c.observed[i] = Idle
	}
	return s, nil
}

func (c *composite) activate(ctx context.Context, child *Node) (State, error) {
	if err := child.Tick(); err != nil {
		return Idle, err
	}
	return child.ReadState(ctx)
}

// halt stops the active child, if any, collects and acknowledges its final
// result, and resets the composite.
func (c *composite) halt(ctx context.Context) (State, error) {
	if c.cursor < len(c.node.children) && c.observed[c.cursor] == Running {
		child := c.node.tree.nodes[c.node.children[c.cursor]]
		child.Halt()

		var (
			s   State
			err error
		)
		if child.typ.Leaf() {
			// The leaf finishes its activation on its own once its context
			// is cancelled; no tick is needed.
			s, err = child.ReadState(ctx)
		} else {
			s, err = c.activate(ctx, child)
		}
		if err != nil {
			return Idle, err
		}
		c.node.log.Debug("halted child",
			slog.String("child", child.name),
			slog.String("result", s.String()))
		if s.Terminal() {
			if err := child.Tick(); err != nil {
				return Idle, err
			}
		}
	}
	c.reset()
	return Halted, nil
}

func (c *composite) reset() {
	c.cursor = 0
	for i := range c.observed {
		c.observed[i] = Idle
	}
}
