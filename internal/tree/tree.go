package tree

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Tree is a built, immutable arena of nodes plus the goroutines that run
// them. Create one with Builder.Build.
type Tree struct {
	runID string
	nodes []*Node
	root  ID
	opts  options
	log   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	done chan struct{}
	err  error
}

// RunID returns the unique id attached to every log record of this tree.
func (t *Tree) RunID() string { return t.runID }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[t.root] }

// Node returns the node with the given handle, or nil.
func (t *Tree) Node(id ID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Start launches one goroutine per node. Each immediately blocks awaiting
// its first tick. The goroutines run until ctx is cancelled, Stop is called,
// a node loop fails, or the root's Success has been acknowledged.
func (t *Tree) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrStarted
	}
	t.started = true

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	for _, n := range t.nodes {
		g.Go(func() error {
			err := n.run(gctx)
			if n.id == t.root {
				// Nothing can tick the rest of the tree once the root has
				// returned.
				cancel()
			}
			return err
		})
	}
	t.log.Debug("tree started", slog.Int("nodes", len(t.nodes)), slog.String("root", t.Root().name))

	go func() {
		err := g.Wait()
		cancel()
		t.err = err
		if err != nil {
			t.log.Error("tree stopped", slog.Any("err", err))
		} else {
			t.log.Debug("tree stopped")
		}
		close(t.done)
	}()
	return nil
}

func (t *Tree) isStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Tick signals the root once.
func (t *Tree) Tick() error {
	if !t.isStarted() {
		return ErrNotStarted
	}
	return t.Root().Tick()
}

// ReadState blocks until the root publishes a state and returns it. A
// terminal state is acknowledged before ReadState returns, so the next Tick
// starts a new activation of the root. Once Success has been read the root
// exits and the tree shuts down.
func (t *Tree) ReadState(ctx context.Context) (State, error) {
	if !t.isStarted() {
		return Idle, ErrNotStarted
	}
	s, err := t.Root().ReadState(ctx)
	if err != nil {
		return s, err
	}
	if s.Terminal() {
		if err := t.acknowledge(); err != nil {
			return s, err
		}
	}
	return s, nil
}

// acknowledge sends the tick that must follow every terminal state read from
// the root.
func (t *Tree) acknowledge() error {
	return t.Root().Tick()
}

// Step performs one driver cycle: Tick followed by ReadState.
func (t *Tree) Step(ctx context.Context) (State, error) {
	if err := t.Tick(); err != nil {
		return Idle, err
	}
	return t.ReadState(ctx)
}

// Halt asks the root to halt. The next Step reports Halted.
func (t *Tree) Halt() {
	t.Root().Halt()
}

// Stop cancels every suspended node and waits for all goroutines to return.
func (t *Tree) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	return t.Wait()
}

// Wait blocks until every node goroutine has returned. It returns the first
// node loop error, or nil if the tree shut down cleanly.
func (t *Tree) Wait() error {
	if !t.isStarted() {
		return ErrNotStarted
	}
	<-t.done
	return t.err
}

// Done is closed once every node goroutine has returned.
func (t *Tree) Done() <-chan struct{} {
	return t.done
}

// Walk visits the nodes depth first, parents before children, in tick order.
func (t *Tree) Walk(fn func(n *Node, depth int)) {
	var visit func(id ID, depth int)
	visit = func(id ID, depth int) {
		n := t.nodes[id]
		fn(n, depth)
		for _, c := range n.children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
}

// NodeSnapshot is a point-in-time view of one node.
type NodeSnapshot struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Policy string `json:"policy,omitempty"`
	State  string `json:"state"`
	Depth  int    `json:"depth"`
	Ticks  uint64 `json:"ticks"`
}

// Snapshot returns every node in Walk order.
func (t *Tree) Snapshot() []NodeSnapshot {
	out := make([]NodeSnapshot, 0, len(t.nodes))
	t.Walk(func(n *Node, depth int) {
		s := NodeSnapshot{
			ID:    n.id,
			Name:  n.name,
			Type:  n.typ.String(),
			State: n.State().String(),
			Depth: depth,
			Ticks: n.Ticks(),
		}
		if n.typ == Control {
			s.Policy = n.policy.String()
		}
		out = append(out, s)
	})
	return out
}
