package tree

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Work is the behavior of a leaf node. Step performs one increment of work
// and reports either Running (call again) or a terminal result.
//
// Step receives a context that is cancelled when the leaf is halted, when
// the tree stops, or when the configured leaf timeout elapses. Work that
// never returns and ignores its context blocks every ancestor.
type Work interface {
	Step(ctx context.Context) (State, error)
}

// WorkFunc adapts a function to Work.
type WorkFunc func(ctx context.Context) (State, error)

// Step calls f(ctx).
func (f WorkFunc) Step(ctx context.Context) (State, error) { return f(ctx) }

// runLeaf drives a leaf through repeated activations:
//
//  1. wait for the activation tick
//  2. publish Running
//  3. step the work until it finishes, without waiting for further ticks
//  4. publish the terminal result
//  5. wait for the acknowledgment tick, then go back to Idle
func (n *Node) runLeaf(ctx context.Context) error {
	for {
		if err := n.ticks.Wait(ctx); err != nil {
			return err
		}
		if err := n.publish(ctx, Running); err != nil {
			return err
		}
		result := n.perform(ctx)
		if err := n.publish(ctx, result); err != nil {
			return err
		}
		if !n.awaitAck(ctx, result) {
			return nil
		}
	}
}

func (n *Node) perform(ctx context.Context) State {
	actx, cancel := n.beginActivation(ctx)
	defer n.endActivation(cancel)

	for steps := 1; ; steps++ {
		s, err := n.step(actx)
		switch {
		case err != nil:
			if actx.Err() != nil {
				return n.interrupted(ctx)
			}
			n.log.Warn("leaf work failed", slog.Int("steps", steps), slog.Any("err", err))
			return Failure

		case s == Success, s == Failure, s == Halted:
			return s

		case s == Running:
			if n.typ == Condition {
				n.log.Warn("condition reported running, treating as failure")
				return Failure
			}
			if actx.Err() != nil {
				return n.interrupted(ctx)
			}
			if d := n.tree.opts.stepInterval; d > 0 {
				timer := time.NewTimer(d)
				select {
				case <-timer.C:
				case <-actx.Done():
					timer.Stop()
					return n.interrupted(ctx)
				}
			}

		default:
			n.log.Warn("leaf work reported invalid state", slog.String("state", s.String()))
			return Failure
		}
	}
}

// step calls the work, converting a panic into an error.
func (n *Node) step(ctx context.Context) (s State, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = Failure, fmt.Errorf("leaf work panicked: %v", r)
		}
	}()
	return n.work.Step(ctx)
}

// interrupted decides the result of an activation whose context ended before
// the work finished.
func (n *Node) interrupted(ctx context.Context) State {
	switch {
	case n.halt.Load(), ctx.Err() != nil:
		return Halted
	default:
		n.log.Warn("leaf timed out", slog.Duration("timeout", n.tree.opts.leafTimeout))
		return Failure
	}
}

func (n *Node) beginActivation(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		actx   context.Context
		cancel context.CancelFunc
	)
	if d := n.tree.opts.leafTimeout; d > 0 {
		actx, cancel = context.WithTimeout(ctx, d)
	} else {
		actx, cancel = context.WithCancel(ctx)
	}
	n.mu.Lock()
	n.cancelActivation = cancel
	n.mu.Unlock()
	// Halt may have been requested before the cancel func was visible.
	if n.halt.Load() {
		cancel()
	}
	return actx, cancel
}

func (n *Node) endActivation(cancel context.CancelFunc) {
	n.mu.Lock()
	n.cancelActivation = nil
	n.mu.Unlock()
	cancel()
}
