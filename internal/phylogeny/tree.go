package phylogeny

import (
	"fmt"
	"strings"
)

// Tree is a detached nested view of a lineage, used for serialization and
// for bottom-up tree construction.
type Tree[N any] struct {
	Node     N           `json:"node"`
	Children []Branch[N] `json:"children"`
}

// Branch links a subtree to its parent with a branch length.
type Branch[N any] struct {
	Subtree *Tree[N] `json:"subtree"`
	Length  float64  `json:"length"`
}

// NewLeaf returns a tree without children.
func NewLeaf[N any](node N) *Tree[N] {
	return &Tree[N]{Node: node, Children: []Branch[N]{}}
}

// JoinWithParent joins two subtrees under a new parent node.
func JoinWithParent[N any](parent N, left *Tree[N], leftLen float64, right *Tree[N], rightLen float64) *Tree[N] {
	return &Tree[N]{
		Node: parent,
		Children: []Branch[N]{
			{Subtree: left, Length: leftLen},
			{Subtree: right, Length: rightLen},
		},
	}
}

// ToNestedTree copies the arena into a nested Tree rooted at the arena root.
// The walk uses an explicit stack, so depth is bounded only by memory.
func (p *Phylogeny[N, L]) ToNestedTree() *Tree[N] {
	type pending struct {
		node int
		tree *Tree[N]
	}

	root := NewLeaf(p.nodes[p.root].Data)
	stack := []pending{{node: p.root, tree: root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := p.nodes[cur.node].children
		cur.tree.Children = make([]Branch[N], len(children))
		for k, c := range children {
			sub := NewLeaf(p.nodes[c.Index].Data)
			cur.tree.Children[k] = Branch[N]{Subtree: sub, Length: c.Length}
			stack = append(stack, pending{node: c.Index, tree: sub})
		}
	}
	return root
}

// Size returns the number of nodes in the tree.
func (t *Tree[N]) Size() int {
	count := 0
	stack := []*Tree[N]{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		for _, br := range cur.Children {
			stack = append(stack, br.Subtree)
		}
	}
	return count
}

// String renders the tree as "(node:((child:len)...))"; inner children are
// printed in full, leaves by their payload only.
func (t *Tree[N]) String() string {
	type frame struct {
		tree *Tree[N]
		next int
	}

	var b strings.Builder
	open := func(tr *Tree[N]) {
		b.WriteByte('(')
		fmt.Fprint(&b, tr.Node)
		b.WriteString(":(")
	}

	open(t)
	stack := []frame{{tree: t}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.tree.Children) {
			b.WriteString("))")
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				b.WriteByte(':')
				b.WriteString(formatLength(parent.tree.Children[parent.next-1].Length))
				b.WriteByte(')')
			}
			continue
		}

		br := top.tree.Children[top.next]
		top.next++
		b.WriteByte('(')
		if len(br.Subtree.Children) == 0 {
			fmt.Fprint(&b, br.Subtree.Node)
			b.WriteByte(':')
			b.WriteString(formatLength(br.Length))
			b.WriteByte(')')
			continue
		}
		open(br.Subtree)
		stack = append(stack, frame{tree: br.Subtree})
	}
	return b.String()
}
