package testutil

import (
	"math/rand"

	"github.com/roach88/gatesched/internal/ir"
)

// NaiveDominators computes immediate dominators of the state skeleton with the
// textbook iterative data-flow formulation:
//
//	Dom(entry) = {entry}
//	Dom(n)     = {n} ∪ ⋂ Dom(p) for every reachable predecessor p
//
// It is quadratic and exists only as an oracle for property tests. The result
// maps every reachable state gate to its immediate dominator; the entry maps
// to itself.
func NaiveDominators(g ir.Graph) map[ir.GateRef]ir.GateRef {
	nodes := reachableStates(g)
	index := make(map[ir.GateRef]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	all := make([]bool, len(nodes))
	for i := range all {
		all[i] = true
	}
	dom := make([][]bool, len(nodes))
	for i := range dom {
		if i == 0 {
			dom[i] = make([]bool, len(nodes))
			dom[i][0] = true
			continue
		}
		dom[i] = append([]bool(nil), all...)
	}

	for changed := true; changed; {
		changed = false
		for i := 1; i < len(nodes); i++ {
			next := append([]bool(nil), all...)
			for _, p := range g.GetInStates(nodes[i]) {
				pi, ok := index[p]
				if !ok {
					continue
				}
				for k := range next {
					next[k] = next[k] && dom[pi][k]
				}
			}
			next[i] = true
			for k := range next {
				if next[k] != dom[i][k] {
					dom[i] = next
					changed = true
					break
				}
			}
		}
	}

	count := func(i int) int {
		n := 0
		for _, in := range dom[i] {
			if in {
				n++
			}
		}
		return n
	}

	idom := make(map[ir.GateRef]ir.GateRef, len(nodes))
	idom[nodes[0]] = nodes[0]
	for i := 1; i < len(nodes); i++ {
		// The immediate dominator is the strict dominator with the largest
		// dominator set of its own.
		best, bestCount := -1, -1
		for k, in := range dom[i] {
			if !in || k == i {
				continue
			}
			if c := count(k); c > bestCount {
				best, bestCount = k, c
			}
		}
		idom[nodes[i]] = nodes[best]
	}
	return idom
}

// reachableStates lists state gates reachable from STATE_ENTRY over state
// edges, entry first.
func reachableStates(g ir.Graph) []ir.GateRef {
	entry := g.StateEntry()
	seen := map[ir.GateRef]bool{entry: true}
	order := []ir.GateRef{entry}
	for i := 0; i < len(order); i++ {
		for _, u := range g.Uses(order[i]) {
			if u.Index >= g.GetStateCount(u.Gate) || !g.IsState(u.Gate) || seen[u.Gate] {
				continue
			}
			seen[u.Gate] = true
			order = append(order, u.Gate)
		}
	}
	return order
}

// NaiveLCA walks both nodes' ancestor chains in an immediate-dominator array
// and returns the first common node.
func NaiveLCA(idom []int, a, b int) int {
	onPath := make(map[int]bool)
	for x := a; ; x = idom[x] {
		onPath[x] = true
		if x == idom[x] {
			break
		}
	}
	for x := b; ; x = idom[x] {
		if onPath[x] {
			return x
		}
	}
}

// RandomIDom returns a random tree over n nodes in immediate-dominator form:
// idom[0] == 0 and idom[v] < v for every other node.
func RandomIDom(rng *rand.Rand, n int) []int {
	idom := make([]int, n)
	for v := 1; v < n; v++ {
		idom[v] = rng.Intn(v)
	}
	return idom
}
