package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-cbt/internal/handshake"
)

// ID is the stable handle of a node within its tree's arena.
type ID int

// Node is one vertex of a behavior tree. Every node runs its own goroutine
// once the tree is started.
//
// Cross-goroutine traffic is limited to the tick Signal (written by the
// parent, read by the node) and the result Channel (written by the node, read
// by the parent). Everything else a node's loop touches, such as a
// composite's cursor, is private to that loop.
type Node struct {
	id       ID
	name     string
	typ      Type
	policy   Policy
	work     Work
	children []ID

	tree *Tree
	log  *slog.Logger

	ticks  handshake.Signal
	result *handshake.Channel[State]

	state  atomic.Int32
	goid   atomic.Int64
	ticked atomic.Uint64

	halt atomic.Bool
	// cancelActivation aborts the running leaf activation, nil while idle.
	mu               sync.Mutex
	cancelActivation context.CancelFunc
}

func newNode(id ID, name string, typ Type) *Node {
	return &Node{
		id:     id,
		name:   name,
		typ:    typ,
		result: handshake.NewChannel[State](),
	}
}

// ID returns the node's handle.
func (n *Node) ID() ID { return n.id }

// Name returns the node's name.
func (n *Node) Name() string { return n.name }

// Type returns the node's type.
func (n *Node) Type() Type { return n.typ }

// Policy returns the aggregation policy of a Control node, or 0 for leaves.
func (n *Node) Policy() Policy { return n.policy }

// Children returns a copy of the node's child handles, in tick order.
func (n *Node) Children() []ID {
	return append([]ID(nil), n.children...)
}

// State returns the node's current state without blocking. It is a snapshot
// for observation only; parents synchronize through ReadState.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Ticks returns the number of ticks delivered to the node so far, including
// acknowledgment ticks.
func (n *Node) Ticks() uint64 {
	return n.ticked.Load()
}

// Tick signals the node once. Ticks are counted, never lost: each one
// releases exactly one wait in the node's loop.
func (n *Node) Tick() error {
	if n.State() == Exit {
		return fmt.Errorf("%w: %s", ErrExited, n.name)
	}
	if n.onOwnGoroutine() {
		return fmt.Errorf("%w: tick of %s", ErrSelfTick, n.name)
	}
	n.ticked.Add(1)
	n.ticks.Notify()
	if n.tree != nil {
		n.tree.opts.onTick(n)
	}
	return nil
}

// ReadState blocks until the node publishes its next state and returns it,
// releasing the node's loop. Only the node's parent (or the driver, for the
// root) may call it.
func (n *Node) ReadState(ctx context.Context) (State, error) {
	if n.onOwnGoroutine() {
		return Idle, fmt.Errorf("%w: read of %s", ErrSelfTick, n.name)
	}
	s, err := n.result.Consume(ctx)
	if err != nil && ctx.Err() != nil {
		// A cancelled caller also shuts the tree down; report the cause.
		return Idle, ctx.Err()
	}
	if errors.Is(err, handshake.ErrClosed) {
		return Exit, fmt.Errorf("%w: %s", ErrExited, n.name)
	}
	return s, err
}

// Halt asks the node to stop. A running leaf has its work context cancelled
// and reports Halted; a composite halts its active child on its next tick and
// then reports Halted. The request is cleared once the node's next terminal
// result has been acknowledged.
func (n *Node) Halt() {
	n.halt.Store(true)
	n.mu.Lock()
	cancel := n.cancelActivation
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (n *Node) onOwnGoroutine() bool {
	id := n.goid.Load()
	return id != 0 && id == goroutineID()
}

func (n *Node) setState(s State) {
	if prev := State(n.state.Swap(int32(s))); prev != s {
		n.log.Debug("node state", slog.String("from", prev.String()), slog.String("state", s.String()))
	}
}

// publish records s as the node's state and blocks until the parent has
// consumed it.
func (n *Node) publish(ctx context.Context, s State) error {
	n.setState(s)
	n.tree.opts.onState(n, s)
	return n.result.Publish(ctx, s)
}

// awaitAck waits for the acknowledgment tick that follows a terminal result,
// then clears any halt request. It reports whether the loop should continue.
func (n *Node) awaitAck(ctx context.Context, result State) bool {
	if n.ticks.Wait(ctx) != nil {
		return false
	}
	n.halt.Store(false)
	if result == Success && n.id == n.tree.root {
		// The root is single-shot: once its success is acknowledged the tree
		// has finished.
		n.log.Debug("root finished")
		return false
	}
	n.setState(Idle)
	return true
}

// run is the body of the node's goroutine.
func (n *Node) run(ctx context.Context) error {
	n.goid.Store(goroutineID())
	defer func() {
		n.setState(Exit)
		n.result.Close()
	}()
	var err error
	if n.typ.Leaf() {
		err = n.runLeaf(ctx)
	} else {
		err = n.runComposite(ctx)
	}
	return loopErr(err)
}

// loopErr filters the errors that mean "the tree is shutting down", which
// end a node's loop cleanly.
func loopErr(err error) error {
	if err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, handshake.ErrClosed) ||
		errors.Is(err, ErrExited) {
		return nil
	}
	return err
}
