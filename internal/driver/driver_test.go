package driver

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-cbt/internal/leaf"
	"github.com/joeycumines/go-cbt/internal/testutil"
	"github.com/joeycumines/go-cbt/internal/tree"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildTree returns a started-ready tree: root Sequence over the given leaves.
func buildTree(t *testing.T, leaves ...tree.Work) *tree.Tree {
	t.Helper()
	b := tree.NewBuilder()
	root := b.Sequence("root")
	for i, w := range leaves {
		require.NoError(t, b.AddChild(root, b.Action("leaf"+string(rune('A'+i)), w)))
	}
	tr, err := b.Build(root, tree.WithLogger(quietLogger()))
	require.NoError(t, err)
	return tr
}

func newDriver(tr *tree.Tree, opts ...Option) *Driver {
	return New(tr, append([]Option{WithInterval(testutil.TickInterval), WithLogger(quietLogger())}, opts...)...)
}

func runWithTimeout(t *testing.T, d *Driver) (tree.State, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	return d.Run(ctx)
}

func TestDriver_RunToSuccess(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		states []tree.State
	)
	tr := buildTree(t, leaf.Steps(3, nil), leaf.Result(tree.Success))
	d := newDriver(tr, WithObserver(func(s tree.State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))

	s, err := runWithTimeout(t, d)
	require.NoError(t, err)
	require.Equal(t, tree.Success, s)

	// The tree was joined before Run returned.
	select {
	case <-tr.Done():
	default:
		t.Fatal("tree still running after Run returned")
	}
	tr.Walk(func(n *tree.Node, depth int) {
		assert.Equal(t, tree.Exit, n.State(), n.Name())
	})

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	require.Equal(t, tree.Success, states[len(states)-1])
	for _, s := range states[:len(states)-1] {
		require.Equal(t, tree.Running, s)
	}
	require.Equal(t, int64(len(states)), d.Ticks())
}

func TestDriver_FailureRestartsByDefault(t *testing.T) {
	t.Parallel()

	flaky := &leaf.Counter{Work: tree.WorkFunc(func(context.Context) (tree.State, error) {
		return tree.Failure, nil
	})}
	tr := buildTree(t, flaky)
	d := newDriver(tr, WithMaxTicks(40))

	s, err := runWithTimeout(t, d)
	require.ErrorIs(t, err, ErrTickLimit)
	require.Equal(t, int64(40), d.Ticks())
	require.Contains(t, []tree.State{tree.Running, tree.Failure}, s)
	require.Greater(t, flaky.Activations(), int64(1), "a failed tree must be re-run")
}

func TestDriver_StopOnFailure(t *testing.T) {
	t.Parallel()

	never := &leaf.Counter{Work: leaf.Result(tree.Success)}
	tr := buildTree(t, leaf.Result(tree.Failure), never)
	d := newDriver(tr, WithStopOnFailure(true))

	s, err := runWithTimeout(t, d)
	require.NoError(t, err)
	require.Equal(t, tree.Failure, s)
	require.Zero(t, never.Activations())
}

func TestDriver_Halt(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var once sync.Once
	hold := tree.WorkFunc(func(ctx context.Context) (tree.State, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return tree.Failure, ctx.Err()
	})
	tr := buildTree(t, hold)
	d := newDriver(tr)

	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	tk, err := d.Start(ctx)
	require.NoError(t, err)

	select {
	case <-started:
	case <-ctx.Done():
		t.Fatal("leaf never started")
	}
	tr.Halt()

	select {
	case <-tk.Done():
	case <-ctx.Done():
		t.Fatal("driver did not settle after halt")
	}
	require.NoError(t, tk.Err())
	require.Equal(t, tree.Halted, d.Last())
}

func TestDriver_StopTicker(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, leaf.Sleep(time.Hour))
	d := newDriver(tr)
	tk, err := d.Start(context.Background())
	require.NoError(t, err)
	require.Nil(t, tk.Err())

	_, err = testutil.WaitForState(t.Context(), d.Ticks, func(n int64) bool { return n > 2 }, testutil.Timeout, testutil.PollInterval)
	require.NoError(t, err)
	tk.Stop()
	select {
	case <-tk.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("ticker not done")
	}
	require.NoError(t, tk.Err())
	select {
	case <-tr.Done():
	default:
		t.Fatal("tree not joined")
	}
}

func TestDriver_ContextCancelled(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, leaf.Sleep(time.Hour))
	d := newDriver(tr)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s, err := d.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, tree.Running, s)
}

func TestDriver_CancelledStepReportsCause(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, leaf.Sleep(time.Hour))
	d := newDriver(tr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Start(ctx))
	node := d.Node(ctx)

	status, err := node.Tick()
	require.NoError(t, err)
	require.Equal(t, bt.Running, status)

	// The root has exited with ctx before the next tick.
	cancel()
	select {
	case <-tr.Done():
	case <-time.After(testutil.Timeout):
		t.Fatal("tree was not joined")
	}
	require.Equal(t, tree.Exit, tr.Root().State())

	_, err = node.Tick()
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, tree.ErrExited)
}

func TestDriver_StartTwice(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, leaf.Result(tree.Success))
	d := newDriver(tr)
	tk, err := d.Start(t.Context())
	require.NoError(t, err)
	_, err = d.Start(t.Context())
	require.ErrorIs(t, err, tree.ErrStarted)
	<-tk.Done()
	require.NoError(t, tk.Err())
}

func TestDriver_Node(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, leaf.Steps(2, nil))
	d := newDriver(tr)
	require.NoError(t, tr.Start(t.Context()))
	t.Cleanup(func() { _ = tr.Stop() })

	// The concurrent tree as the first child of a go-behaviortree sequence.
	var after int
	root := bt.New(bt.Sequence,
		d.Node(t.Context()),
		bt.New(func([]bt.Node) (bt.Status, error) {
			after++
			return bt.Success, nil
		}),
	)

	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := root.Tick()
		require.NoError(t, err)
		if status == bt.Success {
			break
		}
		require.Equal(t, bt.Running, status)
		require.True(t, time.Now().Before(deadline), "tree never succeeded")
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 1, after)

	// The root is single-shot: ticking it again reports the exit.
	_, err := root.Tick()
	require.ErrorIs(t, err, tree.ErrExited)
}

func TestSupervisor(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor(quietLogger())
	var drivers []*Driver
	for i := 0; i < 3; i++ {
		d := newDriver(buildTree(t, leaf.Steps(i+1, nil), leaf.Result(tree.Success)))
		drivers = append(drivers, d)
		require.NoError(t, sup.Add(context.Background(), d))
	}
	require.Equal(t, 3, sup.Len())

	require.NoError(t, sup.Wait())
	for _, d := range drivers {
		require.Equal(t, tree.Success, d.Last())
	}
}

func TestSupervisor_ReportsErrors(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor(quietLogger())
	ok := newDriver(buildTree(t, leaf.Result(tree.Success)))
	limited := newDriver(buildTree(t, leaf.Sleep(time.Hour)), WithMaxTicks(3))
	require.NoError(t, sup.Add(context.Background(), ok))
	require.NoError(t, sup.Add(context.Background(), limited))

	done := make(chan error, 1)
	go func() { done <- sup.Wait() }()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrTickLimit)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not finish")
	}
}

func TestSupervisor_Stop(t *testing.T) {
	t.Parallel()

	sup := NewSupervisor(quietLogger())
	var trees []*tree.Tree
	for i := 0; i < 3; i++ {
		tr := buildTree(t, leaf.Sleep(time.Hour))
		trees = append(trees, tr)
		require.NoError(t, sup.Add(context.Background(), newDriver(tr)))
	}

	sup.Stop()
	done := make(chan error, 1)
	go func() { done <- sup.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	for _, tr := range trees {
		select {
		case <-tr.Done():
		default:
			t.Fatal("tree not joined")
		}
	}

	err := sup.Add(context.Background(), newDriver(buildTree(t, leaf.Result(tree.Success))))
	require.ErrorIs(t, err, ErrSupervisorStopped)
}
