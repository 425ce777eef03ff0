package tree

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Builder assembles the node arena of a Tree. Nodes are created first, then
// linked with AddChild, then frozen by Build. A Builder is not safe for
// concurrent use.
type Builder struct {
	nodes  []*Node
	parent map[ID]ID
	built  bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{parent: make(map[ID]ID)}
}

// Action adds a leaf that performs work.
func (b *Builder) Action(name string, work Work) ID {
	return b.leaf(name, Action, work)
}

// Condition adds a leaf that checks something and finishes immediately.
func (b *Builder) Condition(name string, work Work) ID {
	return b.leaf(name, Condition, work)
}

// Sequence adds a composite with the Sequence policy.
func (b *Builder) Sequence(name string) ID {
	return b.Composite(name, Sequence)
}

// Selector adds a composite with the Selector policy.
func (b *Builder) Selector(name string) ID {
	return b.Composite(name, Selector)
}

// Composite adds a Control node aggregating its children with policy.
func (b *Builder) Composite(name string, policy Policy) ID {
	n := b.add(name, Control)
	n.policy = policy
	return n.id
}

func (b *Builder) leaf(name string, typ Type, work Work) ID {
	n := b.add(name, typ)
	n.work = work
	return n.id
}

func (b *Builder) add(name string, typ Type) *Node {
	n := newNode(ID(len(b.nodes)), name, typ)
	b.nodes = append(b.nodes, n)
	return n
}

// AddChild appends child to parent's children. Children are ticked in the
// order they were added. A node can have at most one parent.
func (b *Builder) AddChild(parent, child ID) error {
	if b.built {
		return ErrBuilt
	}
	p, err := b.lookup(parent)
	if err != nil {
		return err
	}
	c, err := b.lookup(child)
	if err != nil {
		return err
	}
	if p.typ != Control {
		return fmt.Errorf("%w: %s node %q cannot have children", ErrInvalidTree, p.typ, p.name)
	}
	if parent == child {
		return fmt.Errorf("%w: node %q cannot be its own child", ErrInvalidTree, p.name)
	}
	if prev, ok := b.parent[child]; ok {
		return fmt.Errorf("%w: node %q already belongs to %q", ErrInvalidTree, c.name, b.nodes[prev].name)
	}
	b.parent[child] = parent
	p.children = append(p.children, child)
	return nil
}

func (b *Builder) lookup(id ID) (*Node, error) {
	if id < 0 || int(id) >= len(b.nodes) {
		return nil, fmt.Errorf("%w: unknown node id %d", ErrInvalidTree, id)
	}
	return b.nodes[id], nil
}

// Build validates the arena and returns a Tree rooted at root. The Builder
// cannot be modified afterwards.
func (b *Builder) Build(root ID, opts ...Option) (*Tree, error) {
	if b.built {
		return nil, ErrBuilt
	}
	if err := b.validate(root); err != nil {
		return nil, err
	}
	b.built = true

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t := &Tree{
		runID: uuid.NewString(),
		nodes: b.nodes,
		root:  root,
		opts:  o,
		done:  make(chan struct{}),
	}
	t.log = o.logger.With(slog.String("run", t.runID))
	for _, n := range t.nodes {
		n.tree = t
		n.log = t.log.With(slog.String("node", n.name), slog.String("type", n.typ.String()))
	}
	return t, nil
}

func (b *Builder) validate(root ID) error {
	r, err := b.lookup(root)
	if err != nil {
		return err
	}
	if _, ok := b.parent[root]; ok {
		return fmt.Errorf("%w: root %q has a parent", ErrInvalidTree, r.name)
	}
	for _, n := range b.nodes {
		switch {
		case n.typ.Leaf() && n.work == nil:
			return fmt.Errorf("%w: leaf %q has no work", ErrInvalidTree, n.name)
		case n.typ == Control && len(n.children) == 0:
			return fmt.Errorf("%w: composite %q has no children", ErrInvalidTree, n.name)
		case n.typ == Control && n.policy != Sequence && n.policy != Selector:
			return fmt.Errorf("%w: composite %q has unknown policy %s", ErrInvalidTree, n.name, n.policy)
		}
	}

	// Every node has at most one parent and the root has none, so the arena
	// is a tree exactly when every node is reachable from the root.
	seen := make([]bool, len(b.nodes))
	stack := []ID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			return fmt.Errorf("%w: cycle through %q", ErrInvalidTree, b.nodes[id].name)
		}
		seen[id] = true
		stack = append(stack, b.nodes[id].children...)
	}
	for id, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: node %q is not reachable from root %q", ErrInvalidTree, b.nodes[id].name, r.name)
		}
	}
	return nil
}
