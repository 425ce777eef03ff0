// Package pickandplace is the demonstration robot arm: a root sequence that
// moves the arm to a position and then picks up the object lying there.
//
// The world lives on the blackboard:
//
//	arm      Position of the gripper, (0,0) if unset
//	objects  object name -> Position, for everything lying on the table
//	holding  name of the object in the gripper, unset if empty
package pickandplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joeycumines/go-cbt/internal/blackboard"
	"github.com/joeycumines/go-cbt/internal/tree"
	"github.com/joeycumines/go-cbt/internal/treefile"
)

// Blackboard keys.
const (
	KeyArm     = "arm"
	KeyObjects = "objects"
	KeyHolding = "holding"
)

// Position is a grid cell.
type Position struct {
	X int `mapstructure:"x" yaml:"x"`
	Y int `mapstructure:"y" yaml:"y"`
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// towards returns the cell one unit closer to target, moving along x first.
func (p Position) towards(target Position) Position {
	switch {
	case p.X < target.X:
		p.X++
	case p.X > target.X:
		p.X--
	case p.Y < target.Y:
		p.Y++
	case p.Y > target.Y:
		p.Y--
	}
	return p
}

// Seed places the arm at the origin and an orange at (1,2).
func Seed(bb *blackboard.Blackboard) {
	bb.Set(KeyArm, Position{})
	bb.Set(KeyObjects, map[string]any{"Orange": Position{X: 1, Y: 2}})
	bb.Delete(KeyHolding)
}

// Arm returns the position of the arm.
func Arm(bb *blackboard.Blackboard) (Position, error) {
	v := bb.Get(KeyArm)
	if v == nil {
		return Position{}, nil
	}
	return asPosition(v)
}

// ObjectAt returns the position of a named object on the table.
func ObjectAt(bb *blackboard.Blackboard, object string) (Position, bool, error) {
	objects, _ := bb.Get(KeyObjects).(map[string]any)
	v, ok := objects[object]
	if !ok {
		return Position{}, false, nil
	}
	p, err := asPosition(v)
	return p, err == nil, err
}

// asPosition accepts a Position or its decoded form from a tree file.
func asPosition(v any) (Position, error) {
	if p, ok := v.(Position); ok {
		return p, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Position{}, fmt.Errorf("not a position: %T", v)
	}
	return treefile.Decode[Position](m)
}

// MoveTo returns work that moves the arm one cell per step until it reaches
// target.
func MoveTo(bb *blackboard.Blackboard, target Position) tree.Work {
	return tree.WorkFunc(func(ctx context.Context) (tree.State, error) {
		var err error
		bb.Update(KeyArm, func(old any, ok bool) any {
			from := Position{}
			if ok && old != nil {
				if from, err = asPosition(old); err != nil {
					return old
				}
			}
			return from.towards(target)
		})
		if err != nil {
			return tree.Failure, fmt.Errorf("move to %s: %w", target, err)
		}
		arm, err := Arm(bb)
		if err != nil {
			return tree.Failure, err
		}
		if arm == target {
			return tree.Success, nil
		}
		return tree.Running, nil
	})
}

// PickUp returns work that grips object. It fails if the gripper is full, the
// object is not on the table, or the arm is not above it.
func PickUp(bb *blackboard.Blackboard, object string, logger *slog.Logger) tree.Work {
	if logger == nil {
		logger = slog.Default()
	}
	return tree.WorkFunc(func(ctx context.Context) (tree.State, error) {
		if held := bb.Get(KeyHolding); held != nil {
			logger.Info("gripper full", slog.Any("holding", held))
			return tree.Failure, nil
		}
		at, ok, err := ObjectAt(bb, object)
		if err != nil {
			return tree.Failure, err
		}
		if !ok {
			logger.Info("object not on the table", slog.String("object", object))
			return tree.Failure, nil
		}
		arm, err := Arm(bb)
		if err != nil {
			return tree.Failure, err
		}
		if arm != at {
			logger.Info("arm not above object", slog.String("object", object), slog.String("arm", arm.String()), slog.String("at", at.String()))
			return tree.Failure, nil
		}
		bb.Set(KeyHolding, object)
		bb.Update(KeyObjects, func(old any, ok bool) any {
			objects, _ := old.(map[string]any)
			rest := make(map[string]any, len(objects))
			for k, v := range objects {
				if k != object {
					rest[k] = v
				}
			}
			return rest
		})
		logger.Info("picked up", slog.String("object", object), slog.String("at", at.String()))
		return tree.Success, nil
	})
}

// Register adds the moveto (x, y) and pickup (object) kinds.
func Register(reg *treefile.Registry, logger *slog.Logger) error {
	if err := reg.Register("moveto", func(env treefile.Env, params map[string]any) (tree.Work, error) {
		p, err := treefile.Decode[Position](params)
		if err != nil {
			return nil, err
		}
		return MoveTo(env.Blackboard, p), nil
	}); err != nil {
		return err
	}
	return reg.Register("pickup", func(env treefile.Env, params map[string]any) (tree.Work, error) {
		p, err := treefile.Decode[struct {
			Object string `mapstructure:"object"`
		}](params)
		if err != nil {
			return nil, err
		}
		if p.Object == "" {
			return nil, errors.New("missing object")
		}
		return PickUp(env.Blackboard, p.Object, logger), nil
	})
}

// NewTree builds Seq1(MoveTo(1,2), PickUp("Orange")) over a seeded
// blackboard.
func NewTree(logger *slog.Logger, opts ...tree.Option) (*tree.Tree, *blackboard.Blackboard, error) {
	bb := new(blackboard.Blackboard)
	Seed(bb)
	b := tree.NewBuilder()
	root := b.Sequence("Seq1")
	if err := b.AddChild(root, b.Action("Move to position (1,2)", MoveTo(bb, Position{X: 1, Y: 2}))); err != nil {
		return nil, nil, err
	}
	if err := b.AddChild(root, b.Action("Pick up Orange", PickUp(bb, "Orange", logger))); err != nil {
		return nil, nil, err
	}
	t, err := b.Build(root, opts...)
	if err != nil {
		return nil, nil, err
	}
	return t, bb, nil
}
