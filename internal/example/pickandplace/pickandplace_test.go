package pickandplace

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-cbt/internal/blackboard"
	"github.com/joeycumines/go-cbt/internal/driver"
	"github.com/joeycumines/go-cbt/internal/testutil"
	"github.com/joeycumines/go-cbt/internal/tree"
	"github.com/joeycumines/go-cbt/internal/treefile"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPosition_Towards(t *testing.T) {
	t.Parallel()

	p := Position{}
	target := Position{X: 1, Y: 2}
	var path []string
	for p != target {
		p = p.towards(target)
		path = append(path, p.String())
	}
	require.Equal(t, []string{"(1,0)", "(1,1)", "(1,2)"}, path)
	require.Equal(t, Position{X: -1, Y: -1}, Position{X: -1}.towards(Position{X: -1, Y: -3}))
	require.Equal(t, target, target.towards(target))
}

func TestMoveTo(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	w := MoveTo(bb, Position{X: 2, Y: 1})
	var states []tree.State
	for range 3 {
		s, err := w.Step(t.Context())
		require.NoError(t, err)
		states = append(states, s)
	}
	require.Equal(t, []tree.State{tree.Running, tree.Running, tree.Success}, states)
	arm, err := Arm(bb)
	require.NoError(t, err)
	require.Equal(t, Position{X: 2, Y: 1}, arm)

	bb.Set(KeyArm, "somewhere")
	_, err = w.Step(t.Context())
	require.ErrorContains(t, err, "not a position")
}

func TestPickUp(t *testing.T) {
	t.Parallel()

	bb := new(blackboard.Blackboard)
	Seed(bb)
	w := PickUp(bb, "Orange", quietLogger())

	s, err := w.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, tree.Failure, s, "arm is not above the orange")

	bb.Set(KeyArm, Position{X: 1, Y: 2})
	s, err = w.Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, tree.Success, s)
	require.Equal(t, "Orange", bb.Get(KeyHolding))
	_, onTable, err := ObjectAt(bb, "Orange")
	require.NoError(t, err)
	require.False(t, onTable)

	// The gripper is full now.
	s, err = PickUp(bb, "Orange", quietLogger()).Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, tree.Failure, s)

	bb.Delete(KeyHolding)
	s, err = PickUp(bb, "Banana", quietLogger()).Step(t.Context())
	require.NoError(t, err)
	require.Equal(t, tree.Failure, s)
}

func TestNewTree_DrivenToSuccess(t *testing.T) {
	t.Parallel()

	tr, bb, err := NewTree(quietLogger(), tree.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Equal(t, "Seq1", tr.Root().Name())
	require.Equal(t, 3, tr.Len())

	var states []tree.State
	d := driver.New(tr,
		driver.WithInterval(testutil.TickInterval),
		driver.WithLogger(quietLogger()),
		driver.WithObserver(func(s tree.State) { states = append(states, s) }),
	)
	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	s, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, tree.Success, s)

	arm, err := Arm(bb)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 1, Y: 2}, arm)
	assert.Equal(t, "Orange", bb.Get(KeyHolding))

	// Running while the arm moves, then exactly one Success.
	require.NotEmpty(t, states)
	require.Equal(t, tree.Success, states[len(states)-1])
	for _, s := range states[:len(states)-1] {
		require.Equal(t, tree.Running, s)
	}
	tr.Walk(func(n *tree.Node, depth int) {
		assert.Equal(t, tree.Exit, n.State(), n.Name())
	})
}

func TestTreeFile(t *testing.T) {
	t.Parallel()

	reg := treefile.DefaultRegistry()
	require.NoError(t, Register(reg, quietLogger()))
	require.Error(t, Register(reg, quietLogger()), "kinds are registered once")

	f, err := treefile.Load(filepath.Join("testdata", "pickandplace.yaml"))
	require.NoError(t, err)
	tr, bb, err := f.Build(reg, tree.WithLogger(quietLogger()))
	require.NoError(t, err)

	d := driver.New(tr, driver.WithInterval(testutil.TickInterval), driver.WithLogger(quietLogger()), driver.WithStopOnFailure(true))
	ctx, cancel := context.WithTimeout(context.Background(), testutil.Timeout)
	defer cancel()
	s, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, tree.Success, s)

	assert.Equal(t, "Orange", bb.Get(KeyHolding))
	at, ok, err := ObjectAt(bb, "Apple")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Position{X: 3}, at)
}

func TestRegister_BadParams(t *testing.T) {
	t.Parallel()

	reg := treefile.NewRegistry()
	require.NoError(t, Register(reg, nil))

	moveto, ok := reg.Lookup("moveto")
	require.True(t, ok)
	_, err := moveto(treefile.Env{Blackboard: new(blackboard.Blackboard)}, map[string]any{"x": 1, "z": 3})
	require.ErrorContains(t, err, "z")

	pickup, ok := reg.Lookup("pickup")
	require.True(t, ok)
	_, err = pickup(treefile.Env{Blackboard: new(blackboard.Blackboard)}, nil)
	require.ErrorContains(t, err, "missing object")
}
