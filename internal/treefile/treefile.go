// Package treefile loads behavior trees from YAML documents.
//
// A document names the tree, optionally seeds the blackboard, and describes
// the root node:
//
//	name: pick-and-place
//	blackboard:
//	  target: orange
//	root:
//	  name: Seq1
//	  type: sequence
//	  children:
//	    - name: ready
//	      type: condition
//	      kind: expr
//	      params:
//	        expr: target != nil
//	    - name: MoveTo
//	      type: action
//	      kind: sleep
//	      params:
//	        duration: 1s
//
// Leaf behaviors are looked up by kind in a Registry, and each kind decodes
// its own params.
package treefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joeycumines/go-cbt/internal/blackboard"
	"github.com/joeycumines/go-cbt/internal/tree"
)

// Node types accepted in the type field.
const (
	TypeSequence  = "sequence"
	TypeSelector  = "selector"
	TypeAction    = "action"
	TypeCondition = "condition"
)

// ErrInvalid wraps every structural problem found in a document.
var ErrInvalid = errors.New("treefile: invalid document")

// File is a decoded tree document.
type File struct {
	Name       string         `yaml:"name"`
	Blackboard map[string]any `yaml:"blackboard,omitempty"`
	Root       Node           `yaml:"root"`
}

// Node describes one tree node.
type Node struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Kind     string         `yaml:"kind,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
	Children []Node         `yaml:"children,omitempty"`
}

// Parse decodes a document. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("parse tree file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the document at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tree file: %w", err)
	}
	defer fh.Close()
	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Marshal encodes f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

func (f *File) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	return f.Root.validate("root")
}

func (n *Node) validate(path string) error {
	if n.Name == "" {
		return fmt.Errorf("%w: %s: missing name", ErrInvalid, path)
	}
	path = path + "/" + n.Name
	switch n.Type {
	case TypeSequence, TypeSelector:
		if n.Kind != "" {
			return fmt.Errorf("%w: %s: %s node cannot have a kind", ErrInvalid, path, n.Type)
		}
		if len(n.Params) != 0 {
			return fmt.Errorf("%w: %s: %s node cannot have params", ErrInvalid, path, n.Type)
		}
		if len(n.Children) == 0 {
			return fmt.Errorf("%w: %s: %s node needs children", ErrInvalid, path, n.Type)
		}
		for i := range n.Children {
			if err := n.Children[i].validate(path); err != nil {
				return err
			}
		}
	case TypeAction, TypeCondition:
		if n.Kind == "" {
			return fmt.Errorf("%w: %s: %s node needs a kind", ErrInvalid, path, n.Type)
		}
		if len(n.Children) != 0 {
			return fmt.Errorf("%w: %s: %s node cannot have children", ErrInvalid, path, n.Type)
		}
	case "":
		return fmt.Errorf("%w: %s: missing type", ErrInvalid, path)
	default:
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalid, path, n.Type)
	}
	return nil
}

// Count returns the number of nodes in the document.
func (f *File) Count() int {
	var count func(n *Node) int
	count = func(n *Node) int {
		c := 1
		for i := range n.Children {
			c += count(&n.Children[i])
		}
		return c
	}
	return count(&f.Root)
}

// Build creates the tree described by f, resolving leaf kinds through reg,
// over a new blackboard seeded from the document. The tree is not started.
func (f *File) Build(reg *Registry, opts ...tree.Option) (*tree.Tree, *blackboard.Blackboard, error) {
	if err := f.validate(); err != nil {
		return nil, nil, err
	}
	bb := blackboard.New(f.Blackboard)
	b := tree.NewBuilder()
	root, err := f.add(b, reg, bb, &f.Root, "root")
	if err != nil {
		return nil, nil, err
	}
	t, err := b.Build(root, opts...)
	if err != nil {
		return nil, nil, err
	}
	return t, bb, nil
}

func (f *File) add(b *tree.Builder, reg *Registry, bb *blackboard.Blackboard, n *Node, path string) (tree.ID, error) {
	path = path + "/" + n.Name
	switch n.Type {
	case TypeSequence, TypeSelector:
		var id tree.ID
		if n.Type == TypeSequence {
			id = b.Sequence(n.Name)
		} else {
			id = b.Selector(n.Name)
		}
		for i := range n.Children {
			child, err := f.add(b, reg, bb, &n.Children[i], path)
			if err != nil {
				return 0, err
			}
			if err := b.AddChild(id, child); err != nil {
				return 0, err
			}
		}
		return id, nil

	default:
		factory, ok := reg.Lookup(n.Kind)
		if !ok {
			return 0, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalid, path, n.Kind)
		}
		work, err := factory(Env{Tree: f.Name, Node: n.Name, Blackboard: bb}, n.Params)
		if err != nil {
			return 0, fmt.Errorf("%s: %s: %w", path, n.Kind, err)
		}
		if n.Type == TypeCondition {
			return b.Condition(n.Name, work), nil
		}
		return b.Action(n.Name, work), nil
	}
}
