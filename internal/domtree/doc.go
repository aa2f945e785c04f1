// Package domtree computes the dominator tree of a circuit's control skeleton
// and answers ancestor and lowest-common-ancestor queries over it.
//
// Every state gate reachable from STATE_ENTRY becomes one basic block. Blocks
// are numbered in DFS preorder, so block 0 is always the entry block and the
// immediate dominator of every other block has a smaller index.
//
// All traversals use explicit stacks; input graphs may be arbitrarily deep.
package domtree
