package simulation

import (
	"slices"
	"testing"
)

// AssertCompleteBinaryTree asserts the node, leaf and edge counts of a run
// after g generations: 2^(g+1)-1 nodes, 2^g leaves, one edge per non-root
// node, and every child appearing in exactly one edge.
func AssertCompleteBinaryTree(t *testing.T, result *Result) {
	t.Helper()
	g := result.Params.Generations
	tree := result.Tree

	if want := 1<<(g+1) - 1; tree.Len() != want {
		t.Errorf("AssertCompleteBinaryTree: %d nodes after %d generations, want %d", tree.Len(), g, want)
	}
	if want := 1 << g; tree.LeafCount() != want {
		t.Errorf("AssertCompleteBinaryTree: %d leaves after %d generations, want %d", tree.LeafCount(), g, want)
	}

	seen := make([]int, tree.Len())
	edges := 0
	for e := range tree.Edges() {
		edges++
		seen[e.Child]++
	}
	if edges != tree.Len()-1 {
		t.Errorf("AssertCompleteBinaryTree: %d edges for %d nodes", edges, tree.Len())
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] != 1 {
			t.Errorf("AssertCompleteBinaryTree: node %d appears in %d edges", i, seen[i])
		}
	}
}

// AssertTallyMatchesTree asserts that every edge of the tree is counted once
// in the tally at (parent site, child site).
func AssertTallyMatchesTree(t *testing.T, result *Result) {
	t.Helper()
	n := result.Tally.Size()
	want := NewTally(n)
	for e := range result.Tree.Edges() {
		parent, err := result.Tree.Node(e.Parent)
		if err != nil {
			t.Fatalf("AssertTallyMatchesTree: %v", err)
		}
		child, err := result.Tree.Node(e.Child)
		if err != nil {
			t.Fatalf("AssertTallyMatchesTree: %v", err)
		}
		want.Inc(parent.Label, child.Label)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if got := result.Tally.At(i, j); got != want.At(i, j) {
				t.Errorf("AssertTallyMatchesTree: tally[%d][%d] = %d, tree has %d edges", i, j, got, want.At(i, j))
			}
		}
	}
	if total := result.Tally.Total(); total != result.Tree.Len()-1 {
		t.Errorf("AssertTallyMatchesTree: tally total %d, want %d", total, result.Tree.Len()-1)
	}
}

// AssertIdenticalRuns asserts that two results have the same tree shape,
// labels, branch lengths and tally.
func AssertIdenticalRuns(t *testing.T, a, b *Result) {
	t.Helper()
	if a.Tree.Len() != b.Tree.Len() {
		t.Fatalf("AssertIdenticalRuns: node counts differ: %d vs %d", a.Tree.Len(), b.Tree.Len())
	}
	if a.Tree.RootLength() != b.Tree.RootLength() {
		t.Errorf("AssertIdenticalRuns: root lengths differ: %v vs %v", a.Tree.RootLength(), b.Tree.RootLength())
	}
	if ea, eb := slices.Collect(a.Tree.Edges()), slices.Collect(b.Tree.Edges()); !slices.Equal(ea, eb) {
		t.Errorf("AssertIdenticalRuns: edge lists differ")
	}
	for i := 0; i < a.Tree.Len(); i++ {
		na, _ := a.Tree.Node(i)
		nb, _ := b.Tree.Node(i)
		if na.Label != nb.Label || na.Data != nb.Data {
			t.Errorf("AssertIdenticalRuns: node %d differs: (%d,%d) vs (%d,%d)", i, na.Data, na.Label, nb.Data, nb.Label)
		}
	}
	sameRow := func(x, y []int) bool { return slices.Equal(x, y) }
	if !slices.EqualFunc(a.Tally.Rows(), b.Tally.Rows(), sameRow) {
		t.Errorf("AssertIdenticalRuns: tallies differ")
	}
}
