package tree

import (
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
)

// State is the externally observable state of a node. Exactly one value
// applies at any instant.
type State int32

const (
	// Idle is the initial state, and the state a node returns to once its
	// parent has acknowledged a terminal result.
	Idle State = iota
	// Running means the node has been activated and has not finished.
	Running
	// Success is a terminal result.
	Success
	// Failure is a terminal result.
	Failure
	// Halted is a terminal result reported by a node that was asked to stop.
	Halted
	// Exit means the node's goroutine has returned. An exited node must never
	// be ticked again.
	Exit
)

var stateNames = [...]string{
	Idle:    "idle",
	Running: "running",
	Success: "success",
	Failure: "failure",
	Halted:  "halted",
	Exit:    "exit",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether s ends an activation. A node that publishes a
// terminal state waits for one acknowledgment tick before going Idle.
func (s State) Terminal() bool {
	return s == Success || s == Failure || s == Halted
}

// Status converts s to a go-behaviortree status. Only Running and Success
// have direct equivalents; everything else is a failure from the point of
// view of a go-behaviortree parent.
func (s State) Status() bt.Status {
	switch s {
	case Running:
		return bt.Running
	case Success:
		return bt.Success
	default:
		return bt.Failure
	}
}

// StateOf converts a go-behaviortree status. Unknown statuses map to Failure.
func StateOf(status bt.Status) State {
	switch status {
	case bt.Running:
		return Running
	case bt.Success:
		return Success
	default:
		return Failure
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown node state %q", s)
}

// Type determines how a parent drives a child.
type Type int

const (
	// Action leaves perform work. Once activated they free-run to completion.
	Action Type = iota
	// Condition leaves check something and finish immediately. Reporting
	// Running from a condition is treated as Failure.
	Condition
	// Control nodes own children. They make progress only when ticked and
	// publish exactly one state per tick.
	Control
)

func (t Type) String() string {
	switch t {
	case Action:
		return "action"
	case Condition:
		return "condition"
	case Control:
		return "control"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Leaf reports whether nodes of this type run Work rather than children.
func (t Type) Leaf() bool {
	return t == Action || t == Condition
}

// Policy is the aggregation rule of a composite node.
type Policy int

const (
	// Sequence succeeds once every child succeeded, in order. The first
	// child failure fails the sequence and restarts it from the first child
	// on the next activation.
	Sequence Policy = iota + 1
	// Selector succeeds on the first child success, and fails once every
	// child failed.
	Selector
)

func (p Policy) String() string {
	switch p {
	case Sequence:
		return "sequence"
	case Selector:
		return "selector"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// advance is the child result that moves the cursor on to the next child.
func (p Policy) advance() State {
	if p == Selector {
		return Failure
	}
	return Success
}

// exhausted is the result published once the cursor passes the last child.
func (p Policy) exhausted() State {
	if p == Selector {
		return Failure
	}
	return Success
}
