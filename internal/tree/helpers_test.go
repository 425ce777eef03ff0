package tree

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counted is leaf work that finishes immediately with result, counting its
// activations.
type counted struct {
	result      State
	activations atomic.Int32
}

func (c *counted) Step(ctx context.Context) (State, error) {
	c.activations.Add(1)
	return c.result, nil
}

// gate is leaf work that blocks until released, or until its context ends.
type gate struct {
	result  State
	release chan struct{}
	started atomic.Int32
}

func newGate(result State) *gate {
	return &gate{result: result, release: make(chan struct{})}
}

func (g *gate) Step(ctx context.Context) (State, error) {
	g.started.Add(1)
	select {
	case <-g.release:
		return g.result, nil
	case <-ctx.Done():
		return Failure, ctx.Err()
	}
}

func (g *gate) open() { close(g.release) }

func startTree(t *testing.T, b *Builder, root ID, opts ...Option) *Tree {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	tr, err := b.Build(root, opts...)
	require.NoError(t, err)
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(func() { _ = tr.Stop() })
	return tr
}

// stepUntil steps the tree until done reports true for the observed state,
// returning every observed state.
func stepUntil(t *testing.T, tr *Tree, done func(State) bool) []State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var states []State
	for {
		s, err := tr.Step(ctx)
		require.NoError(t, err, "states so far: %v", states)
		states = append(states, s)
		if done(s) {
			return states
		}
		time.Sleep(time.Millisecond)
	}
}

func is(want State) func(State) bool {
	return func(s State) bool { return s == want }
}

func waitDone(t *testing.T, tr *Tree) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tree goroutines were not joined")
	}
	require.NoError(t, tr.Wait())
}
