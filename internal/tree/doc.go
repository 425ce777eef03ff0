/*
Package tree implements a concurrent behavior tree: every node runs on its
own goroutine and is driven by ticks from its parent, and every result flows
back up through a blocking handshake.

# Protocol

Each node owns two primitives from package handshake:

  - a counting tick Signal, written by the parent and read by the node
  - a result Channel, written by the node and read by the parent

A parent activates a child by ticking it and reading its state. When the
child later publishes a terminal state (Success, Failure or Halted), the
parent reads it and then ticks the child once more. That final tick is the
acknowledgment: the child waits for it before returning to Idle, so a child
can never publish a second result over one its parent has not seen, and a
parent's next activation tick can never be mistaken for an acknowledgment.

Leaves (Action, Condition) free-run once activated: they publish Running,
step their Work until it finishes without waiting for further ticks, publish
the result, and wait for the acknowledgment. A parent never ticks a running
leaf; it polls the leaf's result channel instead.

Control nodes progress only when ticked and publish exactly one state per
tick: Running while a child is in progress, otherwise a terminal result.

# Composites

Composite nodes keep a cursor over their children that persists across
ticks. With the Sequence policy, a child success advances the cursor within
the same tick, a child failure publishes Failure and rewinds the cursor to
the first child, and running off the end publishes Success. Selector is the
mirror image. Running off the end of a Sequence root finishes the tree: the
root is single-shot, exits once its Success has been acknowledged, and the
rest of the tree is shut down.

# Halting

Node.Halt (or Tree.Halt for the root) requests a stop. A running leaf has its
work context cancelled and reports Halted. A composite, on its next tick,
halts its active child, collects and acknowledges that child's final result,
rewinds, and reports Halted. Work that ignores its context cannot be halted;
Tree.Stop is the hard stop that releases every suspension point.

# Lifecycle

	b := tree.NewBuilder()
	root := b.Sequence("Seq1")
	move := b.Action("MoveTo", moveWork)
	pick := b.Action("PickUp", pickWork)
	_ = b.AddChild(root, move)
	_ = b.AddChild(root, pick)
	t, err := b.Build(root, tree.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := t.Start(ctx); err != nil {
		return err
	}
	for {
		state, err := t.Step(ctx) // Tick, then ReadState
		if err != nil || state == tree.Success {
			break
		}
	}
	return t.Wait()
*/
package tree
