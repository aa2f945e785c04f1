package domtree

import (
	"fmt"
	"math/bits"
)

// LCA answers ancestor queries in O(1) and lowest-common-ancestor queries in
// O(log n) over a dominator tree given as an immediate-dominator array.
type LCA struct {
	timeIn  []int
	timeOut []int
	depth   []int
	// jumpUp[v][k] is the 2^k-th ancestor of v, clamped at the root.
	jumpUp  [][]int
	sizeLog int
}

type lcaFrame struct {
	node int
	next int
}

// NewLCA indexes the tree described by idom, where idom[0] == 0 is the root
// and idom[v] < len(idom) for every v.
func NewLCA(idom []int) *LCA {
	n := len(idom)
	l := &LCA{
		timeIn:  make([]int, n),
		timeOut: make([]int, n),
		depth:   make([]int, n),
		jumpUp:  make([][]int, n),
		sizeLog: bits.Len(uint(max(n-1, 0))) + 1,
	}
	if n == 0 {
		return l
	}

	sons := make([][]int, n)
	for v := 1; v < n; v++ {
		if idom[v] == v {
			panic(fmt.Sprintf("BUG: block %d is its own immediate dominator", v))
		}
		sons[idom[v]] = append(sons[idom[v]], v)
	}

	clock := 0
	l.enter(0, 0, &clock)
	stack := []lcaFrame{{node: 0}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(sons[top.node]) {
			l.timeOut[top.node] = clock
			clock++
			stack = stack[:len(stack)-1]
			continue
		}
		son := sons[top.node][top.next]
		top.next++
		l.enter(son, top.node, &clock)
		stack = append(stack, lcaFrame{node: son})
	}
	return l
}

func (l *LCA) enter(v, parent int, clock *int) {
	l.timeIn[v] = *clock
	*clock++
	jump := make([]int, l.sizeLog)
	l.jumpUp[v] = jump
	if v == parent {
		return
	}
	l.depth[v] = l.depth[parent] + 1
	jump[0] = parent
	for k := 1; k < l.sizeLog; k++ {
		jump[k] = l.jumpUp[jump[k-1]][k-1]
	}
}

// IsAncestor reports whether a is an ancestor of b. Every node is its own
// ancestor.
func (l *LCA) IsAncestor(a, b int) bool {
	return l.timeIn[a] <= l.timeIn[b] && l.timeOut[a] >= l.timeOut[b]
}

// Find returns the lowest common ancestor of a and b.
func (l *LCA) Find(a, b int) int {
	if l.IsAncestor(a, b) {
		return a
	}
	if l.IsAncestor(b, a) {
		return b
	}
	for k := l.sizeLog - 1; k >= 0; k-- {
		if !l.IsAncestor(l.jumpUp[a][k], b) {
			a = l.jumpUp[a][k]
		}
	}
	return l.jumpUp[a][0]
}

// Depth returns the distance of v from the root.
func (l *LCA) Depth(v int) int { return l.depth[v] }

// Len returns the number of indexed nodes.
func (l *LCA) Len() int { return len(l.timeIn) }
