package domtree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gatesched/internal/testutil"
)

// TestLCA_Chain verifies queries on a path, where the LCA is the shallower node.
func TestLCA_Chain(t *testing.T) {
	l := NewLCA([]int{0, 0, 1, 2, 3})

	assert.Equal(t, 2, l.Find(4, 2))
	assert.Equal(t, 0, l.Find(0, 4))
	assert.True(t, l.IsAncestor(1, 4))
	assert.False(t, l.IsAncestor(4, 1))
	assert.True(t, l.IsAncestor(3, 3))
	assert.Equal(t, 4, l.Depth(4))
}

// TestLCA_Branches verifies the common ancestor of siblings and cousins.
func TestLCA_Branches(t *testing.T) {
	//       0
	//     1   2
	//    3 4   5
	//   6
	l := NewLCA([]int{0, 0, 0, 1, 1, 2, 3})

	assert.Equal(t, 1, l.Find(3, 4))
	assert.Equal(t, 1, l.Find(6, 4))
	assert.Equal(t, 0, l.Find(6, 5))
	assert.Equal(t, 0, l.Find(1, 2))
	assert.False(t, l.IsAncestor(2, 6))
}

// TestLCA_Single verifies the one-node tree.
func TestLCA_Single(t *testing.T) {
	l := NewLCA([]int{0})
	assert.Equal(t, 0, l.Find(0, 0))
	assert.True(t, l.IsAncestor(0, 0))
}

// TestLCA_ExhaustiveSmallTrees checks every pair against the naive walk for
// random trees of up to 64 nodes.
func TestLCA_ExhaustiveSmallTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n <= 64; n++ {
		idom := testutil.RandomIDom(rng, n)
		l := NewLCA(idom)
		require.Equal(t, n, l.Len())
		for a := 0; a < n; a++ {
			for b := 0; b < n; b++ {
				want := testutil.NaiveLCA(idom, a, b)
				require.Equal(t, want, l.Find(a, b), "n=%d a=%d b=%d", n, a, b)
				require.Equal(t, want == a, l.IsAncestor(a, b), "n=%d a=%d b=%d", n, a, b)
			}
		}
	}
}

// TestLCA_RandomLargeTrees samples pairs on larger trees, including a deep
// path that would overflow a recursive DFS.
func TestLCA_RandomLargeTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, n := range []int{500, 4096} {
		idom := testutil.RandomIDom(rng, n)
		l := NewLCA(idom)
		for i := 0; i < 2000; i++ {
			a, b := rng.Intn(n), rng.Intn(n)
			assert.Equal(t, testutil.NaiveLCA(idom, a, b), l.Find(a, b))
		}
	}

	const deep = 100000
	path := make([]int, deep)
	for v := 1; v < deep; v++ {
		path[v] = v - 1
	}
	l := NewLCA(path)
	assert.Equal(t, deep/2, l.Find(deep-1, deep/2))
	assert.Equal(t, deep-1, l.Depth(deep-1))
}
