package tree

import "errors"

var (
	// ErrExited is returned when ticking or reading a node whose goroutine
	// has already returned.
	ErrExited = errors.New("tree: node has exited")

	// ErrSelfTick is returned when a node's own goroutine ticks or reads the
	// node. Reading would deadlock; ticking would corrupt the handshake.
	ErrSelfTick = errors.New("tree: node cannot tick or read itself")

	// ErrStarted is returned by Tree.Start on a tree that was already started.
	ErrStarted = errors.New("tree: already started")

	// ErrNotStarted is returned by driver-facing calls on a tree that was
	// never started.
	ErrNotStarted = errors.New("tree: not started")

	// ErrBuilt is returned by Builder mutations after Build.
	ErrBuilt = errors.New("tree: builder already built")

	// ErrInvalidTree wraps every structural validation failure from Build.
	ErrInvalidTree = errors.New("tree: invalid structure")
)
