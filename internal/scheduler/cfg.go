package scheduler

import (
	"fmt"

	"github.com/roach88/gatesched/internal/domtree"
	"github.com/roach88/gatesched/internal/ir"
)

// Block is one basic block of the scheduled function.
//
// Gates holds the anchor first, then floating gates in finalization order,
// then (in block 0) the function arguments, then fixed gates. The order code
// is generated in is computed when the block is assembled, see
// EmissionOrder.
type Block struct {
	Index int
	IDom  int
	Preds []int
	Succs []int
	Gates []ir.GateRef

	order []ir.GateRef
}

// Anchor returns the state gate that starts the block.
func (b *Block) Anchor() ir.GateRef { return b.Gates[0] }

// EmissionOrder returns the gates in the order code is generated: fixed
// gates, arguments, then floating gates and the anchor in dependency order.
// The anchor follows every floating gate that does not read it, so a branch
// or return ends its block, and precedes the gates that consume the value of
// a RUNTIME_CALL or JS_BYTECODE anchor.
func (b *Block) EmissionOrder() []ir.GateRef {
	return append([]ir.GateRef(nil), b.order...)
}

// emissionOrder computes the emission order of b. Floating gates in reverse
// finalization order already have every input before its consumer.
func emissionOrder(g ir.Graph, b *Block) []ir.GateRef {
	anchor := b.Anchor()
	var fixed, args, floating []ir.GateRef
	for _, ref := range b.Gates[1:] {
		switch {
		case g.IsFixed(ref):
			fixed = append(fixed, ref)
		case g.GetOpCode(ref) == ir.OpArg:
			args = append(args, ref)
		default:
			floating = append(floating, ref)
		}
	}

	out := make([]ir.GateRef, 0, len(b.Gates))
	out = appendReversed(out, fixed)
	out = appendReversed(out, args)

	after := make(map[ir.GateRef]bool)
	var late []ir.GateRef
	for i := len(floating) - 1; i >= 0; i-- {
		ref := floating[i]
		if readsAnchor(g, ref, anchor, after) {
			after[ref] = true
			late = append(late, ref)
			continue
		}
		out = append(out, ref)
	}
	out = append(out, anchor)
	return append(out, late...)
}

// readsAnchor reports whether ref reads anchor directly or through a gate
// already known to.
func readsAnchor(g ir.Graph, ref, anchor ir.GateRef, after map[ir.GateRef]bool) bool {
	ins := g.GetIns(ref)
	for _, in := range ins[g.GetStateCount(ref):] {
		if in == anchor || after[in] {
			return true
		}
	}
	return false
}

func appendReversed(out, refs []ir.GateRef) []ir.GateRef {
	for i := len(refs) - 1; i >= 0; i-- {
		out = append(out, refs[i])
	}
	return out
}

// ControlFlowGraph is the scheduled function, indexed by block.
type ControlFlowGraph []Block

// GateCount returns the number of placed gates.
func (cfg ControlFlowGraph) GateCount() int {
	n := 0
	for i := range cfg {
		n += len(cfg[i].Gates)
	}
	return n
}

// Result is everything a scheduling run produced.
type Result struct {
	CFG    ControlFlowGraph
	Tree   *domtree.Tree
	LCA    *domtree.LCA
	Bounds *Bounds
}

// Placement maps every placed gate to its block.
func (r *Result) Placement() map[ir.GateRef]int {
	out := make(map[ir.GateRef]int, r.CFG.GateCount())
	for i := range r.CFG {
		for _, g := range r.CFG[i].Gates {
			out[g] = i
		}
	}
	return out
}

// CheckPlacement verifies the assembled schedule: every input read by a
// placed gate is placed in a block dominating the block where it is read,
// and inside one block every input is emitted before its consumer.
func (r *Result) CheckPlacement(g ir.Graph) error {
	block := r.Placement()
	pos := make(map[ir.GateRef]int, len(block))
	for i := range r.CFG {
		for p, ref := range r.CFG[i].EmissionOrder() {
			pos[ref] = p
		}
	}

	for i := range r.CFG {
		for _, user := range r.CFG[i].Gates {
			ins := g.GetIns(user)
			for idx := g.GetStateCount(user); idx < len(ins); idx++ {
				in := ins[idx]
				def, placed := block[in]
				if !placed {
					if g.IsSchedulable(in) {
						return newVerificationError(ErrCodePlacement, user,
							"input %s of %s was never placed", ir.Label(g, in), ir.Label(g, user))
					}
					continue
				}
				readAt := i
				if g.IsFixed(user) {
					pred := g.GetIn(g.GetIn(user, 0), idx-1)
					readAt = r.Tree.Index[pred]
				}
				if !r.LCA.IsAncestor(def, readAt) {
					return newVerificationError(ErrCodePlacement, user,
						"%s reads %s in block %d but it is placed in block %d",
						ir.Label(g, user), ir.Label(g, in), readAt, def)
				}
				if def == readAt && !g.IsFixed(user) && pos[in] > pos[user] {
					return newVerificationError(ErrCodePlacement, user,
						"%s is emitted before its input %s in block %d",
						ir.Label(g, user), ir.Label(g, in), def)
				}
			}
		}
	}
	return nil
}

// String summarizes the result for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%d blocks, %d gates", len(r.CFG), r.CFG.GateCount())
}
