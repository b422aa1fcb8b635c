package phylogeny

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grow builds a complete binary arena with the given number of generations.
func grow(t *testing.T, generations int) *Phylogeny[int, string] {
	t.Helper()
	tree := CreateRoot(0, "root", 0.1)
	idx := 1
	for g := 0; g < generations; g++ {
		leaves := slices.Collect(tree.Leaves())
		for _, leaf := range leaves {
			for k := 0; k < 2; k++ {
				_, err := tree.AddChild(leaf, idx, "x", 0.5)
				require.NoError(t, err)
				idx++
			}
		}
	}
	return tree
}

func TestCreateRoot(t *testing.T) {
	tree := CreateRoot(7, "a", 1.25)

	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, 0, tree.Root())
	assert.Equal(t, 1.25, tree.RootLength())

	root, err := tree.Node(0)
	require.NoError(t, err)
	_, hasParent := root.Parent()
	assert.False(t, hasParent)
	assert.True(t, root.IsLeaf())
	assert.Equal(t, 7, root.Data)
	assert.Equal(t, "a", root.Label)
}

func TestNew_ClearsRootLinks(t *testing.T) {
	n := Node[int, int]{Data: 1, parent: 4, children: []Child{{Index: 3}}}
	tree := New(n, 0)
	root, err := tree.Node(0)
	require.NoError(t, err)
	_, hasParent := root.Parent()
	assert.False(t, hasParent)
	assert.True(t, root.IsLeaf())
}

func TestAddChild(t *testing.T) {
	tree := CreateRoot(0, 0, 0)

	a, err := tree.AddChild(0, 1, 2, 0.3)
	require.NoError(t, err)
	b, err := tree.AddChild(0, 2, 3, 0.4)
	require.NoError(t, err)
	c, err := tree.AddChild(a, 3, 3, 0.5)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, []int{a, b, c})

	root, _ := tree.Node(0)
	assert.Equal(t, []Child{{Index: 1, Length: 0.3}, {Index: 2, Length: 0.4}}, root.Children())

	child, _ := tree.Node(c)
	parent, ok := child.Parent()
	assert.True(t, ok)
	assert.Equal(t, a, parent)
	assert.Equal(t, 3, child.Label)
}

func TestAddChild_UnknownParent(t *testing.T) {
	tree := CreateRoot(0, 0, 0)
	for _, parent := range []int{-1, 1, 10} {
		_, err := tree.AddChild(parent, 1, 1, 0)
		assert.ErrorIs(t, err, ErrNodeNotFound)
	}
	assert.Equal(t, 1, tree.Len())
}

func TestChildrenReturnsCopy(t *testing.T) {
	tree := CreateRoot(0, 0, 0)
	_, err := tree.AddChild(0, 1, 0, 1)
	require.NoError(t, err)

	root, _ := tree.Node(0)
	kids := root.Children()
	kids[0].Length = 99

	edges := slices.Collect(tree.Edges())
	assert.Equal(t, 1.0, edges[0].Length)
}

func TestGrowthCounts(t *testing.T) {
	for g := 0; g <= 8; g++ {
		tree := grow(t, g)

		assert.Equal(t, 1<<g, tree.LeafCount(), "leaves after %d generations", g)
		assert.Equal(t, 1<<(g+1)-1, tree.Len(), "nodes after %d generations", g)

		edges := slices.Collect(tree.Edges())
		require.Len(t, edges, tree.Len()-1)

		seen := make(map[int]int)
		for _, e := range edges {
			seen[e.Child]++
			assert.Less(t, e.Parent, e.Child)
		}
		for i := 1; i < tree.Len(); i++ {
			assert.Equal(t, 1, seen[i], "child %d must appear exactly once", i)
		}
		assert.Zero(t, seen[0])
	}
}

func TestLeaves_LazyAndRestartable(t *testing.T) {
	tree := grow(t, 3)

	first := slices.Collect(tree.Leaves())
	second := slices.Collect(tree.Leaves())
	assert.Equal(t, first, second)
	assert.True(t, slices.IsSorted(first))
	assert.Equal(t, []int{7, 8, 9, 10, 11, 12, 13, 14}, first)

	var got []int
	for leaf := range tree.Leaves() {
		got = append(got, leaf)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []int{7, 8}, got)
}

func TestEdges_Order(t *testing.T) {
	tree := CreateRoot(0, 0, 0)
	_, _ = tree.AddChild(0, 1, 0, 0.1)
	_, _ = tree.AddChild(0, 2, 0, 0.2)
	_, _ = tree.AddChild(2, 3, 0, 0.3)
	_, _ = tree.AddChild(1, 4, 0, 0.4)

	want := []Edge{
		{Parent: 0, Child: 1, Length: 0.1},
		{Parent: 0, Child: 2, Length: 0.2},
		{Parent: 1, Child: 4, Length: 0.4},
		{Parent: 2, Child: 3, Length: 0.3},
	}
	assert.Equal(t, want, slices.Collect(tree.Edges()))
}

func TestDepthAndPath(t *testing.T) {
	tree := grow(t, 3)

	d, err := tree.Depth(0)
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = tree.Depth(14)
	require.NoError(t, err)
	assert.Equal(t, 3, d)

	path, err := tree.Path(14)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 6, 14}, path)

	_, err = tree.Path(99)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNode_ReturnsCopy(t *testing.T) {
	tree := CreateRoot(0, "a", 0)
	root, err := tree.Node(0)
	require.NoError(t, err)
	root.Label = "changed"
	root.Data = 9

	_, err = tree.AddChild(0, 1, "b", 1)
	require.NoError(t, err)

	again, err := tree.Node(0)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Label)
	assert.Equal(t, 0, again.Data)
	assert.True(t, root.IsLeaf(), "copy taken before AddChild keeps its own children")
	assert.False(t, again.IsLeaf())

	_, err = tree.Node(5)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestSetLabel(t *testing.T) {
	tree := CreateRoot(0, "a", 0)
	require.NoError(t, tree.SetLabel(0, "b"))
	root, _ := tree.Node(0)
	assert.Equal(t, "b", root.Label)
	assert.ErrorIs(t, tree.SetLabel(3, "c"), ErrNodeNotFound)
}

func TestString(t *testing.T) {
	tree := CreateRoot(0, 0, 0)
	assert.Equal(t, "(0)", tree.String())

	_, _ = tree.AddChild(0, 1, 0, 0.5)
	_, _ = tree.AddChild(0, 2, 0, 0.5)
	assert.Equal(t, "(0(1:0.5,2:0.5))", tree.String())

	_, _ = tree.AddChild(1, 3, 0, 1)
	_, _ = tree.AddChild(1, 4, 0, 2.25)
	assert.Equal(t, "(0(1(3:1,4:2.25):0.5,2:0.5))", tree.String())
}

func TestToNestedTree(t *testing.T) {
	tree := grow(t, 4)
	nested := tree.ToNestedTree()

	assert.Equal(t, tree.Len(), nested.Size())
	assert.Equal(t, 0, nested.Node)
	require.Len(t, nested.Children, 2)
	assert.Equal(t, 1, nested.Children[0].Subtree.Node)
	assert.Equal(t, 2, nested.Children[1].Subtree.Node)
	assert.Equal(t, 0.5, nested.Children[0].Length)

	// The nested view is detached from the arena.
	_, err := tree.AddChild(0, 99, "x", 1)
	require.NoError(t, err)
	assert.Len(t, nested.Children, 2)
}

func TestToNestedTree_DeepChain(t *testing.T) {
	const depth = 100_000
	tree := CreateRoot(0, 0, 0)
	parent := 0
	for i := 1; i <= depth; i++ {
		id, err := tree.AddChild(parent, i, 0, 1)
		require.NoError(t, err)
		parent = id
	}

	nested := tree.ToNestedTree()
	assert.Equal(t, depth+1, nested.Size())

	cur := nested
	for len(cur.Children) > 0 {
		cur = cur.Children[0].Subtree
	}
	assert.Equal(t, depth, cur.Node)

	assert.NotEmpty(t, tree.String())
	assert.NotEmpty(t, nested.String())
}

func TestTreeString(t *testing.T) {
	joined := JoinWithParent(0, NewLeaf(1), 0.5, NewLeaf(2), 0.7)
	assert.Equal(t, "(0:((1:0.5)(2:0.7)))", joined.String())

	outer := JoinWithParent(9, joined, 1, NewLeaf(3), 2)
	assert.Equal(t, "(9:(((0:((1:0.5)(2:0.7))):1)(3:2)))", outer.String())
}
