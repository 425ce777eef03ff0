/*
Package handshake provides the two synchronization primitives that connect
behavior tree nodes running on separate goroutines.

# Signal

Signal is a counting wake primitive. Notify never blocks and never loses a
wakeup: N calls to Notify grant exactly N returns from Wait, regardless of how
the calls interleave. Wait never returns without consuming a prior Notify.

	var ticks handshake.Signal
	ticks.Notify()
	if err := ticks.Wait(ctx); err != nil {
		return err // ctx ended, no tick was consumed
	}

# Channel

Channel is a two-phase rendezvous for exchanging a node's state with its
parent. Publish blocks the publisher until a consumer has taken the value, so
at most one unconsumed value exists at any instant and a fast producer cannot
overwrite a result its parent has not yet observed.

	results := handshake.NewChannel[State]()
	go func() { _ = results.Publish(ctx, Success) }() // returns after Consume
	state, err := results.Consume(ctx)

TryConsume takes a value only if a publisher is already parked in Publish,
which lets a parent poll a free-running child without blocking its own loop.

# Cancellation

Every blocking operation accepts a context.Context. Cancellation is the only
way to unblock a suspended goroutine from outside the handshake; it never
consumes a tick or a value.
*/
package handshake
