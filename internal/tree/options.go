package tree

import (
	"log/slog"
	"time"
)

// Hooks observe a running tree. Callbacks run synchronously on the goroutine
// performing the action, so they must be fast and must not tick or read
// nodes. Nil fields are skipped.
type Hooks struct {
	// OnTick is called after a tick has been delivered to n.
	OnTick func(n *Node)
	// OnState is called when n is about to publish s to its parent.
	OnState func(n *Node, s State)
}

// Option configures a Tree at Build time.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	hooks        []Hooks
	leafTimeout  time.Duration
	stepInterval time.Duration
}

func defaultOptions() options {
	return options{logger: slog.Default()}
}

// WithLogger sets the logger used by every node. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks adds observation hooks. May be given more than once; hooks run
// in the order they were added.
func WithHooks(h Hooks) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, h)
	}
}

// WithLeafTimeout bounds each leaf activation. A leaf whose work has not
// finished within d reports Failure. Zero (the default) disables the bound.
func WithLeafTimeout(d time.Duration) Option {
	return func(o *options) {
		o.leafTimeout = d
	}
}

// WithStepInterval pauses a leaf for d between work steps that report
// Running. Zero (the default) steps again immediately.
func WithStepInterval(d time.Duration) Option {
	return func(o *options) {
		o.stepInterval = d
	}
}

func (o *options) onTick(n *Node) {
	for _, h := range o.hooks {
		if h.OnTick != nil {
			h.OnTick(n)
		}
	}
}

func (o *options) onState(n *Node, s State) {
	for _, h := range o.hooks {
		if h.OnState != nil {
			h.OnState(n, s)
		}
	}
}
