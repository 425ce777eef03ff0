package handshake

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Channel operations after Close.
var ErrClosed = errors.New("handshake: channel closed")

// Channel is a rendezvous carrying values of type T from a single publisher
// to its consumer. Use NewChannel to construct one.
//
// The underlying Go channel is unbuffered: a send completes only once a
// receiver has taken the value, which is exactly the acknowledgment the
// publisher must wait for. There is never a buffered, unconsumed value that a
// later Publish could overwrite.
type Channel[T any] struct {
	values    chan T
	closed    chan struct{}
	closeOnce sync.Once
	exchanged atomic.Uint64
}

// NewChannel returns an open Channel.
func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{
		values: make(chan T),
		closed: make(chan struct{}),
	}
}

// Publish hands v to a consumer, blocking until one has taken it.
//
// A closed channel takes priority over a waiting consumer, so no value is
// delivered once Close has returned.
func (c *Channel[T]) Publish(ctx context.Context, v T) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.values <- v:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume blocks until a value is published, and returns it.
func (c *Channel[T]) Consume(ctx context.Context) (T, error) {
	select {
	case <-c.closed:
		var zero T
		return zero, ErrClosed
	default:
	}
	select {
	case v := <-c.values:
		c.exchanged.Add(1)
		return v, nil
	case <-c.closed:
		var zero T
		return zero, ErrClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryConsume takes a value only if a publisher is currently blocked in
// Publish. It never blocks.
func (c *Channel[T]) TryConsume() (T, bool) {
	if c.Closed() {
		var zero T
		return zero, false
	}
	select {
	case v := <-c.values:
		c.exchanged.Add(1)
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Close releases every blocked Publish and Consume with ErrClosed. Safe to
// call more than once.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Exchanged returns the number of values handed from publisher to consumer.
func (c *Channel[T]) Exchanged() uint64 {
	return c.exchanged.Load()
}
