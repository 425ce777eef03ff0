// Package driver ticks the root of a concurrent behavior tree on a fixed
// interval, using go-behaviortree tickers, until the tree settles.
//
// Each tick of the ticker is one Tree.Step: tick the root and read its
// state. The driver is the only caller of the
// root's driver-facing API while it runs.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/go-cbt/internal/tree"
)

// DefaultInterval is the tick interval used unless WithInterval is given.
const DefaultInterval = 100 * time.Millisecond

// ErrTickLimit is returned when WithMaxTicks is exhausted before the tree
// settled.
var ErrTickLimit = errors.New("driver: tick limit reached")

// errSettled stops the underlying bt.Ticker once the tree has settled; it is
// never surfaced to callers.
var errSettled = errors.New("driver: tree settled")

// Option configures a Driver.
type Option func(*options)

type options struct {
	interval      time.Duration
	stopOnFailure bool
	maxTicks      int
	logger        *slog.Logger
	observers     []func(tree.State)
}

// WithInterval sets the time between root ticks. Non-positive values are
// ignored.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithStopOnFailure stops the driver when the root reports Failure. By
// default a failed root is ticked again, restarting the tree.
func WithStopOnFailure(stop bool) Option {
	return func(o *options) {
		o.stopOnFailure = stop
	}
}

// WithMaxTicks bounds the number of root ticks (acknowledgments excluded).
// Zero means unbounded.
func WithMaxTicks(n int) Option {
	return func(o *options) {
		o.maxTicks = n
	}
}

// WithLogger sets the driver's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers fn to receive every root state the driver reads,
// on the ticker goroutine.
func WithObserver(fn func(tree.State)) Option {
	return func(o *options) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// Driver runs one tree.
type Driver struct {
	tree *tree.Tree
	opts options
	log  *slog.Logger

	mu      sync.Mutex
	started bool

	ticks atomic.Int64
	last  atomic.Int32
}

// New returns a Driver for t. The tree must not have been started.
func New(t *tree.Tree, opts ...Option) *Driver {
	o := options{
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Driver{
		tree: t,
		opts: o,
		log:  o.logger.With(slog.String("run", t.RunID())),
	}
}

// Tree returns the driven tree.
func (d *Driver) Tree() *tree.Tree { return d.tree }

// Ticks returns the number of root ticks performed so far.
func (d *Driver) Ticks() int64 { return d.ticks.Load() }

// Last returns the most recent root state read, Idle before the first tick.
func (d *Driver) Last() tree.State { return tree.State(d.last.Load()) }

// Node returns the tree as a go-behaviortree node, for embedding the whole
// concurrent tree as one child of a conventional bt tree. Every tick of the
// node is one Tree.Step bounded by ctx. The tree must have been started.
func (d *Driver) Node(ctx context.Context) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		s, err := d.step(ctx)
		if err != nil {
			return bt.Failure, err
		}
		return s.Status(), nil
	})
}

// step performs one driver cycle.
func (d *Driver) step(ctx context.Context) (tree.State, error) {
	if limit := d.opts.maxTicks; limit > 0 && d.ticks.Load() >= int64(limit) {
		return d.Last(), fmt.Errorf("%w: %d ticks", ErrTickLimit, limit)
	}
	n := d.ticks.Add(1)
	s, err := d.tree.Step(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The root exits with ctx, so the tick or read may have seen
			// ErrExited first.
			return s, ctxErr
		}
		return s, err
	}
	d.last.Store(int32(s))
	for _, fn := range d.opts.observers {
		fn(s)
	}
	d.log.Debug("root tick", slog.Int64("tick", n), slog.String("state", s.String()))
	return s, nil
}

func (d *Driver) settled(s tree.State) bool {
	switch s {
	case tree.Success, tree.Halted:
		return true
	case tree.Failure:
		return d.opts.stopOnFailure
	default:
		return false
	}
}

// Start starts the tree and a ticker driving it. The returned ticker is done
// once the tree has settled (Success, Halted, or Failure with
// WithStopOnFailure), the tick limit was reached, ctx was cancelled, or Stop
// was called; in every case the tree has been stopped and joined by then.
// A settled tree is reported as a nil Err.
func (d *Driver) Start(ctx context.Context) (bt.Ticker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil, tree.ErrStarted
	}
	if err := d.tree.Start(ctx); err != nil {
		return nil, err
	}
	d.started = true

	node := bt.New(func([]bt.Node) (bt.Status, error) {
		s, err := d.step(ctx)
		if err != nil {
			return bt.Failure, err
		}
		if d.settled(s) {
			d.log.Info("tree settled", slog.String("state", s.String()), slog.Int64("ticks", d.Ticks()))
			return s.Status(), errSettled
		}
		return s.Status(), nil
	})

	tk := &ticker{
		inner: bt.NewTicker(ctx, d.opts.interval, node),
		tree:  d.tree,
		done:  make(chan struct{}),
	}
	go tk.run()
	d.log.Debug("driver started", slog.Duration("interval", d.opts.interval))
	return tk, nil
}

// Run drives the tree to completion and returns the last root state read.
// The tree is stopped and joined before Run returns.
func (d *Driver) Run(ctx context.Context) (tree.State, error) {
	tk, err := d.Start(ctx)
	if err != nil {
		return tree.Idle, err
	}
	<-tk.Done()
	return d.Last(), tk.Err()
}

// ticker wraps the bt.Ticker driving a tree, extending its lifetime to cover
// the shutdown of the tree itself.
type ticker struct {
	inner bt.Ticker
	tree  *tree.Tree
	done  chan struct{}
	err   error
}

var _ bt.Ticker = (*ticker)(nil)

func (t *ticker) run() {
	<-t.inner.Done()
	err := t.inner.Err()
	if errors.Is(err, errSettled) {
		err = nil
	}
	if stopErr := t.tree.Stop(); stopErr != nil {
		err = errors.Join(err, stopErr)
	}
	t.err = err
	close(t.done)
}

// Done is closed once the tree has been joined.
func (t *ticker) Done() <-chan struct{} { return t.done }

// Err returns nil until Done is closed, then the reason the ticker stopped,
// or nil if the tree settled or Stop was called.
func (t *ticker) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Stop stops ticking; the tree is then stopped and joined.
func (t *ticker) Stop() { t.inner.Stop() }
