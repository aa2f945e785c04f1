package domtree

import (
	"fmt"

	"github.com/roach88/gatesched/internal/ir"
)

// Tree is the dominator tree of the control skeleton.
type Tree struct {
	// Blocks lists the block anchors in DFS preorder.
	Blocks []ir.GateRef
	// Index maps a block anchor to its position in Blocks.
	Index map[ir.GateRef]int
	// IDom holds the immediate dominator of every block. IDom[0] == 0.
	IDom []int

	dfsParent []int
}

// IrreducibleError reports a control edge entering a cycle whose target does
// not dominate the edge source.
type IrreducibleError struct {
	From ir.GateRef
	To   ir.GateRef
}

func (e *IrreducibleError) Error() string {
	return fmt.Sprintf("irreducible control flow: edge %d -> %d enters a cycle its target does not dominate", e.From, e.To)
}

type dfsFrame struct {
	gate ir.GateRef
	next int
}

type edge struct{ from, to int }

// Build computes the dominator tree of g rooted at STATE_ENTRY.
func Build(g ir.Graph) (*Tree, error) {
	t := &Tree{Index: make(map[ir.GateRef]int)}
	retreating := t.visit(g)

	n := len(t.Blocks)
	t.IDom = make([]int, n)
	if n > 1 {
		t.computeIDom(g)
	}

	for _, e := range retreating {
		if !t.Dominates(e.to, e.from) {
			return nil, &IrreducibleError{From: t.Blocks[e.from], To: t.Blocks[e.to]}
		}
	}
	return t, nil
}

// visit numbers the reachable state gates in DFS preorder and returns the
// retreating edges it saw. LOOP_BACK gates are numbered but not expanded;
// their edges into already numbered headers are reported as retreating so
// the header can be checked to dominate them.
func (t *Tree) visit(g ir.Graph) []edge {
	entry := g.StateEntry()
	t.Index[entry] = 0
	t.Blocks = append(t.Blocks, entry)
	t.dfsParent = append(t.dfsParent, 0)

	onStack := []bool{true}
	var retreating []edge
	stack := []dfsFrame{{gate: entry}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		cur := top.gate
		curIdx := t.Index[cur]
		uses := g.Uses(cur)
		if top.next >= len(uses) {
			onStack[curIdx] = false
			stack = stack[:len(stack)-1]
			continue
		}
		u := uses[top.next]
		top.next++
		if u.Index >= g.GetStateCount(u.Gate) || !g.IsState(u.Gate) {
			continue
		}
		idx, seen := t.Index[u.Gate]
		if g.GetOpCode(cur) == ir.OpLoopBack {
			if seen {
				retreating = append(retreating, edge{from: curIdx, to: idx})
			}
			continue
		}
		if seen {
			if onStack[idx] {
				retreating = append(retreating, edge{from: curIdx, to: idx})
			}
			continue
		}

		idx = len(t.Blocks)
		t.Index[u.Gate] = idx
		t.Blocks = append(t.Blocks, u.Gate)
		t.dfsParent = append(t.dfsParent, curIdx)
		onStack = append(onStack, true)
		stack = append(stack, dfsFrame{gate: u.Gate})
	}
	return retreating
}

// computeIDom runs the semi-dominator pass over blocks in reverse preorder.
func (t *Tree) computeIDom(g ir.Graph) {
	n := len(t.Blocks)
	semi := make([]int, n)
	label := make([]int, n)
	ancestor := make([]int, n)
	bucket := make([][]int, n)
	for i := range semi {
		semi[i] = i
		label[i] = i
		ancestor[i] = -1
	}
	// Block 0 has no semi-dominator; the sentinel is never compared because
	// predecessor 0 is always taken as a direct candidate.
	semi[0] = n

	for w := n - 1; w > 0; w-- {
		for _, pred := range g.GetInStates(t.Blocks[w]) {
			v, ok := t.Index[pred]
			if !ok {
				continue
			}
			candidate := v
			if v > w {
				candidate = semi[eval(v, ancestor, label, semi)]
			}
			if candidate < semi[w] {
				semi[w] = candidate
			}
		}
		bucket[semi[w]] = append(bucket[semi[w]], w)

		p := t.dfsParent[w]
		ancestor[w] = p
		for _, v := range bucket[p] {
			u := eval(v, ancestor, label, semi)
			if semi[u] < semi[v] {
				t.IDom[v] = u
			} else {
				t.IDom[v] = p
			}
		}
		bucket[p] = nil
	}

	for w := 1; w < n; w++ {
		if t.IDom[w] != semi[w] {
			t.IDom[w] = t.IDom[t.IDom[w]]
		}
	}
	semi[0] = 0
	t.IDom[0] = 0
}

// eval returns the vertex with the smallest semi-dominator on the forest path
// from v up to, but excluding, the root of v's tree.
func eval(v int, ancestor, label, semi []int) int {
	if ancestor[v] == -1 {
		return v
	}
	compress(v, ancestor, label, semi)
	return label[v]
}

// compress halves the forest path above v. The path is collected first and
// then relinked top-down, so the parallel label array always carries the
// minimum seen along the compressed segment.
func compress(v int, ancestor, label, semi []int) {
	var path []int
	for x := v; ancestor[ancestor[x]] != -1; x = ancestor[x] {
		path = append(path, x)
	}
	for i := len(path) - 1; i >= 0; i-- {
		x := path[i]
		a := ancestor[x]
		if semi[label[a]] < semi[label[x]] {
			label[x] = label[a]
		}
		ancestor[x] = ancestor[a]
	}
}

// Len returns the number of blocks.
func (t *Tree) Len() int { return len(t.Blocks) }

// BlockOf returns the block anchored by state gate g.
func (t *Tree) BlockOf(g ir.GateRef) (int, bool) {
	idx, ok := t.Index[g]
	return idx, ok
}

// Dominates reports whether block a dominates block b by walking b's
// dominator chain. Use LCA.IsAncestor for O(1) queries.
func (t *Tree) Dominates(a, b int) bool {
	for {
		if a == b {
			return true
		}
		if b == 0 {
			return false
		}
		b = t.IDom[b]
	}
}

// Preds returns the blocks whose anchors are state inputs of block b.
func (t *Tree) Preds(g ir.Graph, b int) []int {
	var out []int
	for _, in := range g.GetInStates(t.Blocks[b]) {
		if idx, ok := t.Index[in]; ok {
			out = append(out, idx)
		}
	}
	return out
}

// Succs returns the blocks that read block b's anchor as a state input.
func (t *Tree) Succs(g ir.Graph, b int) []int {
	var out []int
	for _, u := range g.Uses(t.Blocks[b]) {
		if u.Index >= g.GetStateCount(u.Gate) || !g.IsState(u.Gate) {
			continue
		}
		if idx, ok := t.Index[u.Gate]; ok {
			out = append(out, idx)
		}
	}
	return out
}

// Children returns the dominator-tree children of every block.
func (t *Tree) Children() [][]int {
	sons := make([][]int, len(t.IDom))
	for b := 1; b < len(t.IDom); b++ {
		sons[t.IDom[b]] = append(sons[t.IDom[b]], b)
	}
	return sons
}
