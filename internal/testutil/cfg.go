package testutil

import (
	"math/rand"

	"github.com/roach88/gatesched/internal/ir"
)

// RandomCircuitOptions bounds the shape of RandomCircuit output.
type RandomCircuitOptions struct {
	// Statements is the approximate number of statements generated.
	Statements int
	// MaxDepth limits nesting of branches and loops.
	MaxDepth int
	// Values adds floating arithmetic, runtime call arguments and phis.
	Values bool
}

// RandomCircuit builds a random structured circuit: sequences, if/else
// diamonds, one-armed ifs, arms ending in RETURN, and single-exit loops.
// Structured control flow is always reducible.
//
// With Values set, every value is only consumed where its definition is
// available (defined in an enclosing scope or earlier in the same scope), so
// a correct scheduler must always find a valid placement.
func RandomCircuit(rng *rand.Rand, opts RandomCircuitOptions) *ir.Circuit {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	g := &cfgGen{
		rng:    rng,
		c:      ir.NewCircuit(),
		opts:   opts,
		budget: opts.Statements,
	}
	if opts.Values {
		g.avail = append(g.avail, g.c.Arg(0, ir.IntType), g.c.Arg(1, ir.IntType), g.c.Int32(1))
	}
	end := g.block(g.c.StateEntry(), 0)
	g.c.Return(end, g.c.DependEntry(), g.value())
	return g.c
}

type cfgGen struct {
	rng    *rand.Rand
	c      *ir.Circuit
	opts   RandomCircuitOptions
	budget int
	avail  []ir.GateRef
}

// block emits statements starting at state and returns the state control
// falls through to.
func (g *cfgGen) block(state ir.GateRef, depth int) ir.GateRef {
	n := 1 + g.rng.Intn(3)
	for i := 0; i < n && g.budget > 0; i++ {
		g.budget--
		kind := g.rng.Intn(10)
		if depth >= g.opts.MaxDepth {
			kind = 0
		}
		switch {
		case kind < 4:
			state = g.straight(state)
		case kind < 7:
			state = g.diamond(state, depth)
		case kind < 8:
			state = g.earlyReturn(state, depth)
		default:
			state = g.loop(state, depth)
		}
	}
	return state
}

func (g *cfgGen) straight(state ir.GateRef) ir.GateRef {
	if g.opts.Values && g.rng.Intn(2) == 0 {
		call := g.c.RuntimeCall(state, g.c.DependEntry(), 0, ir.IntType, g.value(), g.value())
		g.avail = append(g.avail, call)
		return call
	}
	return g.c.OrdinaryBlock(state)
}

func (g *cfgGen) cond() ir.GateRef {
	if !g.opts.Values {
		return g.c.Boolean(true)
	}
	return g.c.ICmp(ir.CmpSLT, g.value(), g.value())
}

// value returns an available value, sometimes wrapping it in fresh
// arithmetic that becomes available itself.
func (g *cfgGen) value() ir.GateRef {
	if !g.opts.Values {
		return g.c.Int32(0)
	}
	pick := g.avail[g.rng.Intn(len(g.avail))]
	if g.rng.Intn(3) == 0 {
		other := g.avail[g.rng.Intn(len(g.avail))]
		op := []ir.Opcode{ir.OpAdd, ir.OpSub, ir.OpMul}[g.rng.Intn(3)]
		pick = g.c.Binary(op, ir.I32, ir.IntType, pick, other)
		g.avail = append(g.avail, pick)
	}
	return pick
}

// diamond emits an if/else, or an if without else, joined by a MERGE.
func (g *cfgGen) diamond(state ir.GateRef, depth int) ir.GateRef {
	br := g.c.IfBranch(state, g.cond())
	mark := len(g.avail)

	tEnd := g.block(g.c.IfTrue(br), depth+1)
	var tVal ir.GateRef
	if g.opts.Values {
		tVal = g.value()
	}
	g.avail = g.avail[:mark]

	fEnd := g.c.IfFalse(br)
	if g.rng.Intn(2) == 0 {
		fEnd = g.block(fEnd, depth+1)
	}
	var fVal ir.GateRef
	if g.opts.Values {
		fVal = g.value()
	}
	g.avail = g.avail[:mark]

	m := g.c.Merge(tEnd, fEnd)
	if g.opts.Values {
		g.avail = append(g.avail, g.c.ValueSelector(m, ir.I32, ir.IntType, tVal, fVal))
	}
	return m
}

// earlyReturn emits a branch whose true arm returns.
func (g *cfgGen) earlyReturn(state ir.GateRef, depth int) ir.GateRef {
	br := g.c.IfBranch(state, g.cond())
	mark := len(g.avail)
	end := g.block(g.c.IfTrue(br), depth+1)
	g.c.Return(end, g.c.DependEntry(), g.value())
	g.avail = g.avail[:mark]
	return g.c.IfFalse(br)
}

// loop emits a header-tested loop with a single exit.
func (g *cfgGen) loop(state ir.GateRef, depth int) ir.GateRef {
	var entryVal ir.GateRef
	if g.opts.Values {
		entryVal = g.value()
	}
	header := g.c.LoopBegin(state)
	var phi ir.GateRef
	if g.opts.Values {
		phi = g.c.ValueSelector(header, ir.I32, ir.IntType, entryVal, ir.NullGate)
		g.avail = append(g.avail, phi)
	}
	br := g.c.IfBranch(header, g.cond())
	mark := len(g.avail)

	bodyEnd := g.block(g.c.IfTrue(br), depth+1)
	if g.opts.Values {
		g.c.ReplaceValueIn(phi, g.value(), 1)
	}
	g.c.SetLoopBack(header, g.c.LoopBack(bodyEnd))
	g.avail = g.avail[:mark]
	return g.c.IfFalse(br)
}
