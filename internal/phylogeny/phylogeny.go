// Package phylogeny provides an append-only lineage arena for top-down tree
// growth, as produced by branching-process simulations.
//
// Nodes are addressed by their creation index. Index 0 is the root. Parent
// links are plain indices, so the arena holds no pointer cycles and indices
// stay valid for the arena's lifetime.
package phylogeny

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// ErrNodeNotFound is returned when an index does not name a node in the arena.
var ErrNodeNotFound = errors.New("node not found")

// Child is an outgoing edge from a node.
type Child struct {
	Index  int
	Length float64
}

// Edge is a (parent, child, branch length) triple.
type Edge struct {
	Parent int     `json:"parent"`
	Child  int     `json:"child"`
	Length float64 `json:"length"`
}

// Node is an arena entry. Data is the node payload and Label its site or
// any other per-node annotation.
type Node[N, L any] struct {
	Data  N
	Label L

	parent   int // -1 for the root
	children []Child
}

// NewRoot builds a parentless node.
func NewRoot[N, L any](data N, label L) Node[N, L] {
	return Node[N, L]{Data: data, Label: label, parent: -1}
}

// Parent returns the parent index and false for the root.
func (n *Node[N, L]) Parent() (int, bool) {
	return n.parent, n.parent >= 0
}

// Children returns a copy of the node's children in insertion order.
func (n *Node[N, L]) Children() []Child {
	out := make([]Child, len(n.children))
	copy(out, n.children)
	return out
}

// IsLeaf reports whether the node has no children.
func (n *Node[N, L]) IsLeaf() bool {
	return len(n.children) == 0
}

// Phylogeny is an append-only arena of nodes grown from a single root.
type Phylogeny[N, L any] struct {
	nodes      []Node[N, L]
	rootLength float64
	root       int
}

// New starts an arena with root at index 0. rootLength is the length of the
// branch leading into the root.
func New[N, L any](root Node[N, L], rootLength float64) *Phylogeny[N, L] {
	root.parent = -1
	root.children = nil
	return &Phylogeny[N, L]{
		nodes:      []Node[N, L]{root},
		rootLength: rootLength,
		root:       0,
	}
}

// CreateRoot is New(NewRoot(data, label), rootLength).
func CreateRoot[N, L any](data N, label L, rootLength float64) *Phylogeny[N, L] {
	return New(NewRoot(data, label), rootLength)
}

// Len returns the number of nodes.
func (p *Phylogeny[N, L]) Len() int {
	return len(p.nodes)
}

// Root returns the root index.
func (p *Phylogeny[N, L]) Root() int {
	return p.root
}

// RootLength returns the length of the branch leading into the root.
func (p *Phylogeny[N, L]) RootLength() float64 {
	return p.rootLength
}

// Node returns a copy of the node at index i. Changing the copy does not
// change the arena; use SetLabel for that.
func (p *Phylogeny[N, L]) Node(i int) (Node[N, L], error) {
	if i < 0 || i >= len(p.nodes) {
		return Node[N, L]{}, fmt.Errorf("node %d of %d: %w", i, len(p.nodes), ErrNodeNotFound)
	}
	n := p.nodes[i]
	n.children = slices.Clone(n.children)
	return n, nil
}

// AddChild appends a node under parent and returns its index.
func (p *Phylogeny[N, L]) AddChild(parent int, data N, label L, length float64) (int, error) {
	if parent < 0 || parent >= len(p.nodes) {
		return 0, fmt.Errorf("add child to %d: %w", parent, ErrNodeNotFound)
	}
	id := len(p.nodes)
	p.nodes = append(p.nodes, Node[N, L]{
		Data:   data,
		Label:  label,
		parent: parent,
	})
	p.nodes[parent].children = append(p.nodes[parent].children, Child{Index: id, Length: length})
	return id, nil
}

// SetLabel replaces the label of node i.
func (p *Phylogeny[N, L]) SetLabel(i int, label L) error {
	if i < 0 || i >= len(p.nodes) {
		return fmt.Errorf("set label of %d: %w", i, ErrNodeNotFound)
	}
	p.nodes[i].Label = label
	return nil
}

// Leaves yields the indices of all childless nodes in arena order. The
// sequence is evaluated lazily and can be ranged over more than once.
func (p *Phylogeny[N, L]) Leaves() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range p.nodes {
			if len(p.nodes[i].children) == 0 && !yield(i) {
				return
			}
		}
	}
}

// LeafCount returns the number of childless nodes.
func (p *Phylogeny[N, L]) LeafCount() int {
	count := 0
	for range p.Leaves() {
		count++
	}
	return count
}

// Edges yields every edge, iterating parents in arena order and children in
// insertion order. It always yields Len()-1 edges.
func (p *Phylogeny[N, L]) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		for i := range p.nodes {
			for _, c := range p.nodes[i].children {
				if !yield(Edge{Parent: i, Child: c.Index, Length: c.Length}) {
					return
				}
			}
		}
	}
}

// Depth returns the number of edges between the root and node i.
func (p *Phylogeny[N, L]) Depth(i int) (int, error) {
	if _, err := p.Node(i); err != nil {
		return 0, err
	}
	depth := 0
	for p.nodes[i].parent >= 0 {
		i = p.nodes[i].parent
		depth++
	}
	return depth, nil
}

// Path returns the node indices from the root down to node i.
func (p *Phylogeny[N, L]) Path(i int) ([]int, error) {
	depth, err := p.Depth(i)
	if err != nil {
		return nil, err
	}
	path := make([]int, depth+1)
	for k := depth; k >= 0; k-- {
		path[k] = i
		i = p.nodes[i].parent
	}
	return path, nil
}

// String renders the arena in a Newick-like form, e.g. "(0(1:0.5,2:0.5))".
func (p *Phylogeny[N, L]) String() string {
	type frame struct {
		node int
		next int
	}

	var b strings.Builder
	b.WriteByte('(')
	fmt.Fprint(&b, p.nodes[p.root].Data)
	stack := []frame{{node: p.root}}
	if len(p.nodes[p.root].children) > 0 {
		b.WriteByte('(')
	}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := p.nodes[top.node].children
		if top.next == len(children) {
			if len(children) > 0 {
				b.WriteByte(')')
			}
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				b.WriteByte(':')
				b.WriteString(formatLength(p.nodes[parent.node].children[parent.next-1].Length))
			}
			continue
		}

		if top.next > 0 {
			b.WriteByte(',')
		}
		c := children[top.next]
		top.next++
		fmt.Fprint(&b, p.nodes[c.Index].Data)
		if len(p.nodes[c.Index].children) > 0 {
			b.WriteByte('(')
		}
		stack = append(stack, frame{node: c.Index})
	}

	b.WriteByte(')')
	return b.String()
}

func formatLength(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
