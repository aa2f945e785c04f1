package scheduler

import (
	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/domtree"
	"github.com/roach88/gatesched/internal/ir"
)

// Bounds holds the placement window of every floating gate.
type Bounds struct {
	// Upper is the earliest block where all inputs are available.
	Upper map[ir.GateRef]int
	// Lower is the latest block that still dominates every use.
	Lower map[ir.GateRef]int
	// Order lists floating gates in finalization order: every gate appears
	// after all of its floating consumers.
	Order []ir.GateRef
}

type boundsSolver struct {
	g    ir.Graph
	tree *domtree.Tree
	lca  *domtree.LCA
	log  *zap.Logger
}

const unset = -1

// blockOf returns the block anchored by state gate g.
func (s *boundsSolver) blockOf(g, user ir.GateRef) (int, error) {
	b, ok := s.tree.BlockOf(g)
	if !ok {
		return 0, s.fail(newVerificationError(ErrCodeUnreachableInput, user,
			"state gate %s is not reachable from the entry", ir.Label(s.g, g)))
	}
	return b, nil
}

func (s *boundsSolver) fail(err *VerificationError) *VerificationError {
	s.log.Error("scheduler verification failed",
		zap.Uint32("gate", uint32(err.Gate)),
		zap.String("code", string(err.Code)),
		zap.String("message", err.Message))
	return err
}

// roots returns every block anchor in block order, each followed by the
// fixed gates pinned to it.
func (s *boundsSolver) roots() []ir.GateRef {
	roots := make([]ir.GateRef, 0, len(s.tree.Blocks))
	for _, anchor := range s.tree.Blocks {
		roots = append(roots, anchor)
		roots = append(roots, s.fixedUses(anchor)...)
	}
	return roots
}

// fixedUses returns the fixed gates whose state input is anchor.
func (s *boundsSolver) fixedUses(anchor ir.GateRef) []ir.GateRef {
	var out []ir.GateRef
	for _, u := range s.g.Uses(anchor) {
		if s.g.IsFixed(u.Gate) && u.Index == 0 {
			out = append(out, u.Gate)
		}
	}
	return out
}

type lowerFrame struct {
	gate ir.GateRef
	next int
}

// lowerBound computes the latest legal block for every floating gate that is
// reachable backwards from a block anchor or a fixed gate.
//
// The first walk counts, for each floating gate, the edges from reachable
// consumers. The second walk visits the same edges, folds each consumer's
// block into the input's bound with LCA, and finalizes an input once its
// last consumer has been seen. Finalized gates are pushed so their own
// inputs are processed with a final bound.
func (s *boundsSolver) lowerBound() (lower []int, order []ir.GateRef, err error) {
	n := s.g.GateCount()
	useCount := make([]int, n)
	roots := s.roots()

	var stack []ir.GateRef
	for _, root := range roots {
		stack = append(stack[:0], root)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, in := range s.g.GetIns(cur) {
				if !s.g.IsSchedulable(in) {
					continue
				}
				useCount[in]++
				if useCount[in] == 1 {
					stack = append(stack, in)
				}
			}
		}
	}

	lower = make([]int, n)
	for i := range lower {
		lower[i] = unset
	}
	var frames []lowerFrame
	for _, root := range roots {
		frames = append(frames[:0], lowerFrame{gate: root})
		for len(frames) > 0 {
			top := &frames[len(frames)-1]
			cur := top.gate
			ins := s.g.GetIns(cur)
			if top.next >= len(ins) {
				frames = frames[:len(frames)-1]
				continue
			}
			idx := top.next
			top.next++
			in := ins[idx]
			if !s.g.IsSchedulable(in) {
				continue
			}

			bound, err := s.consumerBound(cur, idx, lower)
			if err != nil {
				return nil, nil, err
			}
			if lower[in] == unset {
				lower[in] = bound
			} else {
				lower[in] = s.lca.Find(lower[in], bound)
			}
			useCount[in]--
			if useCount[in] == 0 {
				order = append(order, in)
				frames = append(frames, lowerFrame{gate: in})
			}
		}
	}

	for ref, count := range useCount {
		if count > 0 {
			return nil, nil, s.fail(newVerificationError(ErrCodeValueCycle, ir.GateRef(ref),
				"floating gate %s is part of a value cycle", ir.Label(s.g, ir.GateRef(ref))))
		}
	}
	return lower, order, nil
}

// consumerBound returns the block in which cur reads its input at slot idx.
func (s *boundsSolver) consumerBound(cur ir.GateRef, idx int, lower []int) (int, error) {
	switch {
	case s.g.IsState(cur):
		return s.blockOf(cur, cur)
	case s.g.IsFixed(cur):
		// Slot idx of a selector or relay is read at the end of the
		// predecessor feeding state slot idx-1 of its control input.
		return s.blockOf(s.g.GetIn(s.g.GetIn(cur, 0), idx-1), cur)
	default:
		if lower[cur] == unset {
			panic("BUG: floating consumer finalized without a lower bound")
		}
		return lower[cur], nil
	}
}

type upperFrame struct {
	gate  ir.GateRef
	next  int
	bound int
}

// upperBound computes the earliest legal block for every gate in order: the
// deepest of its inputs' blocks, which must all lie on one dominator chain.
func (s *boundsSolver) upperBound(order []ir.GateRef) ([]int, error) {
	n := s.g.GateCount()
	upper := make([]int, n)
	for i := range upper {
		upper[i] = unset
	}
	onStack := make([]bool, n)

	var stack []upperFrame
	for _, start := range order {
		if upper[start] != unset {
			continue
		}
		onStack[start] = true
		stack = append(stack[:0], upperFrame{gate: start})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			ins := s.g.GetIns(top.gate)
			if top.next >= len(ins) {
				done := *top
				upper[done.gate] = done.bound
				onStack[done.gate] = false
				stack = stack[:len(stack)-1]
				if len(stack) > 0 {
					if err := s.fold(&stack[len(stack)-1], done.bound); err != nil {
						return nil, err
					}
				}
				continue
			}
			in := ins[top.next]
			top.next++

			b, known, err := s.knownUpper(in, top.gate, upper)
			if err != nil {
				return nil, err
			}
			if known {
				if err := s.fold(top, b); err != nil {
					return nil, err
				}
				continue
			}
			if onStack[in] {
				return nil, s.fail(newVerificationError(ErrCodeValueCycle, in,
					"floating gate %s depends on itself", ir.Label(s.g, in)))
			}
			onStack[in] = true
			stack = append(stack, upperFrame{gate: in})
		}
	}
	return upper, nil
}

// knownUpper returns the upper bound of g when it needs no traversal.
func (s *boundsSolver) knownUpper(g, user ir.GateRef, upper []int) (int, bool, error) {
	switch {
	case upper[g] != unset:
		return upper[g], true, nil
	case s.g.IsProlog(g), s.g.IsRoot(g):
		return 0, true, nil
	case s.g.IsFixed(g):
		b, err := s.blockOf(s.g.GetIn(g, 0), g)
		return b, true, err
	case s.g.IsState(g):
		b, err := s.blockOf(g, user)
		return b, true, err
	default:
		return 0, false, nil
	}
}

// fold narrows a frame's running bound with an input bound.
func (s *boundsSolver) fold(f *upperFrame, b int) error {
	switch {
	case s.lca.IsAncestor(f.bound, b):
		f.bound = b
	case s.lca.IsAncestor(b, f.bound):
	default:
		return s.fail(newVerificationError(ErrCodeIncomparableInputs, f.gate,
			"inputs of %s are available in unrelated blocks %d and %d",
			ir.Label(s.g, f.gate), f.bound, b))
	}
	return nil
}

// Solve computes both bounds and checks that every upper bound dominates the
// matching lower bound.
func Solve(g ir.Graph, tree *domtree.Tree, lca *domtree.LCA, log *zap.Logger) (*Bounds, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &boundsSolver{g: g, tree: tree, lca: lca, log: log}
	lower, order, err := s.lowerBound()
	if err != nil {
		return nil, err
	}
	upper, err := s.upperBound(order)
	if err != nil {
		return nil, err
	}

	b := &Bounds{
		Upper: make(map[ir.GateRef]int, len(order)),
		Lower: make(map[ir.GateRef]int, len(order)),
		Order: order,
	}
	for _, ref := range order {
		b.Upper[ref] = upper[ref]
		b.Lower[ref] = lower[ref]
	}
	if ve := checkBounds(g, b, lca); ve != nil {
		return nil, s.fail(ve)
	}
	return b, nil
}

// CheckBounds verifies that Upper[n] is an ancestor of Lower[n] for every
// gate in b.Order.
func CheckBounds(g ir.Graph, b *Bounds, lca *domtree.LCA) error {
	if ve := checkBounds(g, b, lca); ve != nil {
		return ve
	}
	return nil
}

func checkBounds(g ir.Graph, b *Bounds, lca *domtree.LCA) *VerificationError {
	for _, ref := range b.Order {
		up, low := b.Upper[ref], b.Lower[ref]
		if !lca.IsAncestor(up, low) {
			return newVerificationError(ErrCodeBoundOrder, ref,
				"upper bound block %d of %s does not dominate lower bound block %d",
				up, ir.Label(g, ref), low)
		}
	}
	return nil
}
