package verifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/gatesched/internal/ir"
)

// findValueCycles reports every strongly connected component of the floating
// subgraph. Edges run from a gate to its schedulable inputs; state, fixed and
// root gates break cycles, so loops through a VALUE_SELECTOR are legal.
//
// A component with more than one gate, or a gate that reads itself, is a
// cycle the scheduler cannot order.
func findValueCycles(g ir.Graph) []VerifyError {
	var errs []VerifyError
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || hasSelfLoop(g, scc[0]) {
			errs = append(errs, cycleError(g, scc))
		}
	}
	return errs
}

func hasSelfLoop(g ir.Graph, ref ir.GateRef) bool {
	for _, in := range g.GetIns(ref) {
		if in == ref {
			return true
		}
	}
	return false
}

func cycleError(g ir.Graph, scc []ir.GateRef) VerifyError {
	sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
	labels := make([]string, len(scc))
	for i, ref := range scc {
		labels[i] = ir.Label(g, ref)
	}
	return VerifyError{
		Gate:    scc[0],
		Code:    ErrValueCycle,
		Message: fmt.Sprintf("value cycle: %s", strings.Join(labels, " -> ")),
	}
}

type tarjanFrame struct {
	gate ir.GateRef
	next int
}

// tarjanSCC is Tarjan's algorithm with an explicit stack so deep expression
// chains cannot exhaust the goroutine stack.
func tarjanSCC(g ir.Graph) [][]ir.GateRef {
	n := g.GateCount()
	const unvisited = -1
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var (
		next   int
		stack  []ir.GateRef
		frames []tarjanFrame
		sccs   [][]ir.GateRef
	)

	successor := func(f *tarjanFrame) (ir.GateRef, bool) {
		ins := g.GetIns(f.gate)
		for f.next < len(ins) {
			in := ins[f.next]
			f.next++
			if in != ir.NullGate && g.IsSchedulable(in) {
				return in, true
			}
		}
		return 0, false
	}

	for _, start := range g.AllGates() {
		if !g.IsSchedulable(start) || index[start] != unvisited {
			continue
		}
		index[start], lowlink[start] = next, next
		next++
		stack = append(stack, start)
		onStack[start] = true
		frames = append(frames[:0], tarjanFrame{gate: start})

		for len(frames) > 0 {
			top := &frames[len(frames)-1]
			v := top.gate
			if w, ok := successor(top); ok {
				switch {
				case index[w] == unvisited:
					index[w], lowlink[w] = next, next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, tarjanFrame{gate: w})
				case onStack[w]:
					lowlink[v] = min(lowlink[v], index[w])
				}
				continue
			}

			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].gate
				lowlink[parent] = min(lowlink[parent], lowlink[v])
			}
			if lowlink[v] != index[v] {
				continue
			}
			var scc []ir.GateRef
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}
	return sccs
}
