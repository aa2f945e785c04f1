package scheduler

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/testutil"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// blockOf returns the block a gate was placed in.
func blockOf(t *testing.T, res *Result, ref ir.GateRef) int {
	t.Helper()
	b, ok := res.Placement()[ref]
	require.True(t, ok, "gate %d was not placed", ref)
	return b
}

func TestRun_StraightLineGolden(t *testing.T) {
	c := ir.NewCircuit()
	a0 := c.Arg(0, ir.IntType)
	a1 := c.Arg(1, ir.IntType)
	sum := c.Binary(ir.OpAdd, ir.I32, ir.IntType, a0, a1)
	c.SetName(sum, "sum")
	c.Return(c.StateEntry(), c.DependEntry(), sum)

	var buf bytes.Buffer
	res, err := Run(c, WithVerifier(true), WithDump(&buf))
	require.NoError(t, err)
	assert.Equal(t, "2 blocks, 5 gates", res.String())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "straight_line", buf.Bytes())
}

func TestRun_Diamond(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	three := c.Int32(3)
	cond := c.ICmp(ir.CmpSLT, a, three)
	br := c.IfBranch(c.StateEntry(), cond)

	tr := c.IfTrue(br)
	one := c.Int32(1)
	x := c.Binary(ir.OpAdd, ir.I32, ir.IntType, a, one)
	call := c.RuntimeCall(tr, c.DependEntry(), 0, ir.IntType, x)

	fa := c.IfFalse(br)
	two := c.Int32(2)
	y := c.Binary(ir.OpMul, ir.I32, ir.IntType, a, two)

	m := c.Merge(call, fa)
	phi := c.ValueSelector(m, ir.I32, ir.IntType, x, y)
	c.Return(m, c.DependEntry(), phi)

	res, err := Run(c, WithVerifier(true))
	require.NoError(t, err)
	require.NoError(t, res.CheckPlacement(c))

	idx := res.Tree.Index
	assert.Equal(t, idx[br], blockOf(t, res, cond))
	assert.Equal(t, idx[br], blockOf(t, res, three))
	// x is read by the call and, through the phi, at the end of the call's
	// block, so it sinks there.
	assert.Equal(t, idx[call], blockOf(t, res, x))
	assert.Equal(t, idx[call], blockOf(t, res, one))
	assert.Equal(t, idx[fa], blockOf(t, res, y))
	assert.Equal(t, idx[m], blockOf(t, res, phi))
	assert.Equal(t, 0, blockOf(t, res, a))

	assert.Equal(t, 0, res.Bounds.Upper[x])
	assert.Equal(t, idx[call], res.Bounds.Lower[x])

	// fixed gates are emitted first, the anchor last
	mb := res.CFG[idx[m]].EmissionOrder()
	assert.Equal(t, []ir.GateRef{phi, m}, mb)
}

func TestRun_SharedValueHoistsToBranch(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	x := c.Binary(ir.OpAdd, ir.I32, ir.IntType, a, c.Int32(1))
	br := c.IfBranch(c.StateEntry(), c.Boolean(true))
	ct := c.RuntimeCall(c.IfTrue(br), c.DependEntry(), 0, ir.IntType, x)
	cf := c.RuntimeCall(c.IfFalse(br), c.DependEntry(), 0, ir.IntType, x)
	m := c.Merge(ct, cf)
	c.Return(m, c.DependEntry(), c.Int32(0))

	res, err := Run(c)
	require.NoError(t, err)
	assert.Equal(t, res.Tree.Index[br], blockOf(t, res, x))
}

func TestRun_ArgumentsInIndexOrder(t *testing.T) {
	c := ir.NewCircuit()
	a2 := c.Arg(2, ir.AnyType)
	a0 := c.Arg(0, ir.AnyType)
	a1 := c.Arg(1, ir.AnyType)
	c.Return(c.StateEntry(), c.DependEntry(), c.Int32(0))

	res, err := Run(c)
	require.NoError(t, err)
	entry := res.CFG[0]
	assert.Equal(t, c.StateEntry(), entry.Anchor())
	assert.Equal(t, []ir.GateRef{a0, a1, a2, c.StateEntry()}, entry.EmissionOrder())
}

func TestRun_RandomCircuitsPlaceValidly(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		c := testutil.RandomCircuit(rng, testutil.RandomCircuitOptions{
			Statements: 5 + rng.Intn(40),
			MaxDepth:   1 + rng.Intn(4),
			Values:     true,
		})

		res, err := Run(c, WithVerifier(true))
		require.NoError(t, err, "seed %d", seed)
		require.NoError(t, res.CheckPlacement(c), "seed %d", seed)

		for _, ref := range res.Bounds.Order {
			up, low := res.Bounds.Upper[ref], res.Bounds.Lower[ref]
			assert.True(t, res.LCA.IsAncestor(up, low), "seed %d: gate %d bounds %d..%d", seed, ref, up, low)
		}

		seen := map[ir.GateRef]bool{}
		for i := range res.CFG {
			b := res.CFG[i]
			order := b.EmissionOrder()
			if !producesValue(c, b.Anchor()) {
				assert.Equal(t, b.Anchor(), order[len(order)-1], "seed %d: block %d", seed, i)
			}
			for _, ref := range b.Gates {
				assert.False(t, seen[ref], "seed %d: gate %d placed twice", seed, ref)
				seen[ref] = true
			}
		}
	}
}

func producesValue(g ir.Graph, anchor ir.GateRef) bool {
	op := g.GetOpCode(anchor)
	return op == ir.OpRuntimeCall || op == ir.OpJSBytecode
}

func indexOf(order []ir.GateRef, ref ir.GateRef) int {
	for i, g := range order {
		if g == ref {
			return i
		}
	}
	return -1
}

func TestRun_CallResultEmittedAfterCall(t *testing.T) {
	c := ir.NewCircuit()
	a := c.Arg(0, ir.IntType)
	br := c.IfBranch(c.StateEntry(), c.ICmp(ir.CmpSLT, a, c.Int32(3)))
	call := c.RuntimeCall(c.IfTrue(br), c.DependEntry(), 7, ir.IntType, a)
	one := c.Int32(1)
	sum := c.Binary(ir.OpAdd, ir.I32, ir.IntType, call, one)
	twice := c.Binary(ir.OpMul, ir.I32, ir.IntType, sum, c.Int32(2))
	m := c.Merge(call, c.IfFalse(br))
	phi := c.ValueSelector(m, ir.I32, ir.IntType, twice, a)
	c.Return(m, c.DependEntry(), phi)

	res, err := Run(c, WithVerifier(true))
	require.NoError(t, err)
	require.NoError(t, res.CheckPlacement(c))

	b := res.Tree.Index[call]
	assert.Equal(t, b, blockOf(t, res, sum), "the phi reads sum at the end of the call block")
	assert.Equal(t, b, blockOf(t, res, twice))
	assert.Equal(t, b, blockOf(t, res, one))

	order := res.CFG[b].EmissionOrder()
	assert.Less(t, indexOf(order, one), indexOf(order, call))
	assert.Less(t, indexOf(order, call), indexOf(order, sum))
	assert.Less(t, indexOf(order, sum), indexOf(order, twice))
	assert.Len(t, order, len(res.CFG[b].Gates))
}

func TestRun_BranchAnchorStaysLast(t *testing.T) {
	c := ir.NewCircuit()
	call := c.RuntimeCall(c.StateEntry(), c.DependEntry(), 7, ir.IntType)
	br := c.IfBranch(call, c.ICmp(ir.CmpSGT, call, c.Int32(0)))
	m := c.Merge(c.IfTrue(br), c.IfFalse(br))
	c.Return(m, c.DependEntry(), c.Int32(0))

	res, err := Run(c, WithVerifier(true))
	require.NoError(t, err)
	require.NoError(t, res.CheckPlacement(c))

	order := res.CFG[res.Tree.Index[br]].EmissionOrder()
	assert.Equal(t, br, order[len(order)-1])
}

func TestRun_IncomparableInputs(t *testing.T) {
	c := ir.NewCircuit()
	br := c.IfBranch(c.StateEntry(), c.Boolean(true))
	ct := c.RuntimeCall(c.IfTrue(br), c.DependEntry(), 0, ir.IntType)
	cf := c.RuntimeCall(c.IfFalse(br), c.DependEntry(), 0, ir.IntType)
	m := c.Merge(ct, cf)
	sum := c.Binary(ir.OpAdd, ir.I32, ir.IntType, ct, cf)
	c.Return(m, c.DependEntry(), sum)

	log, logs := observedLogger()
	s := New(c, WithLogger(log))
	res, err := s.Run()
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, StateFailed, s.State())
	assert.True(t, IsVerificationError(err))
	assert.Equal(t, ErrCodeIncomparableInputs, ErrorCodeOf(err))

	entries := logs.FilterMessage("scheduler verification failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "INCOMPARABLE_INPUTS", ctx["code"])
	assert.Equal(t, uint32(sum), ctx["gate"])
}

func TestRun_BoundOrder(t *testing.T) {
	c := ir.NewCircuit()
	br := c.IfBranch(c.StateEntry(), c.Boolean(true))
	ct := c.RuntimeCall(c.IfTrue(br), c.DependEntry(), 0, ir.IntType)
	x := c.Binary(ir.OpAdd, ir.I32, ir.IntType, ct, c.Int32(1))
	cf := c.RuntimeCall(c.IfFalse(br), c.DependEntry(), 0, ir.IntType, x)
	m := c.Merge(ct, cf)
	c.Return(m, c.DependEntry(), c.Int32(0))

	log, logs := observedLogger()
	_, err := Run(c, WithLogger(log))
	require.Error(t, err)
	assert.Equal(t, ErrCodeBoundOrder, ErrorCodeOf(err))

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, x, ve.Gate)
	assert.Equal(t, 1, logs.FilterField(zap.String("code", "BOUND_ORDER")).Len())
}

func TestRun_ValueCycle(t *testing.T) {
	c := ir.NewCircuit()
	one := c.Int32(1)
	a := c.Binary(ir.OpAdd, ir.I32, ir.IntType, one, one)
	b := c.Binary(ir.OpMul, ir.I32, ir.IntType, a, one)
	c.ReplaceValueIn(a, b, 1)
	c.Return(c.StateEntry(), c.DependEntry(), b)

	_, err := Run(c)
	require.Error(t, err)
	assert.Equal(t, ErrCodeValueCycle, ErrorCodeOf(err))
}

func TestRun_UnreachableInput(t *testing.T) {
	c := ir.NewCircuit()
	dead := c.OrdinaryBlock(ir.NullGate)
	call := c.RuntimeCall(dead, c.DependEntry(), 0, ir.IntType)
	x := c.Binary(ir.OpAdd, ir.I32, ir.IntType, call, c.Int32(1))
	c.Return(c.StateEntry(), c.DependEntry(), x)

	_, err := Run(c)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnreachableInput, ErrorCodeOf(err))
	assert.Contains(t, err.Error(), "not reachable")
}

func TestRun_Irreducible(t *testing.T) {
	c := ir.NewCircuit()
	br := c.IfBranch(c.StateEntry(), c.Boolean(true))
	m1 := c.Merge(c.IfTrue(br), ir.NullGate)
	a := c.OrdinaryBlock(m1)
	m2 := c.Merge(c.IfFalse(br), a)
	b := c.OrdinaryBlock(m2)
	c.ReplaceStateIn(m1, b, 1)

	log, logs := observedLogger()
	_, err := Run(c, WithLogger(log))
	require.Error(t, err)
	assert.Equal(t, ErrCodeIrreducible, ErrorCodeOf(err))

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, b, ve.Gate)
	assert.Equal(t, 1, logs.FilterField(zap.String("code", "IRREDUCIBLE_CFG")).Len())
}

func TestRun_VerifierPanicsOnMalformedGraph(t *testing.T) {
	c := ir.NewCircuit()
	header := c.LoopBegin(c.StateEntry())
	c.Return(header, c.DependEntry(), c.Int32(0))

	assert.Panics(t, func() { _, _ = Run(c, WithVerifier(true)) })
}

func TestScheduler_States(t *testing.T) {
	c := ir.NewCircuit()
	c.Return(c.StateEntry(), c.DependEntry(), c.Int32(0))

	log, logs := observedLogger()
	s := New(c, WithLogger(log))
	assert.Equal(t, StateNotRun, s.State())
	assert.Equal(t, "NotRun", s.State().String())

	_, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, 1, logs.FilterMessage("schedule complete").Len())

	assert.PanicsWithValue(t, "BUG: Scheduler.Run called twice", func() { _, _ = s.Run() })
	assert.Equal(t, "State(42)", State(42).String())
}

func TestCheckBounds(t *testing.T) {
	c := ir.NewCircuit()
	br := c.IfBranch(c.StateEntry(), c.Boolean(true))
	tr := c.IfTrue(br)
	fa := c.IfFalse(br)
	c.Return(c.Merge(tr, fa), c.DependEntry(), c.Int32(0))

	res, err := Run(c)
	require.NoError(t, err)
	require.NoError(t, CheckBounds(c, res.Bounds, res.LCA))

	k := c.Int32(7)
	bad := &Bounds{
		Upper: map[ir.GateRef]int{k: res.Tree.Index[tr]},
		Lower: map[ir.GateRef]int{k: res.Tree.Index[fa]},
		Order: []ir.GateRef{k},
	}
	err = CheckBounds(c, bad, res.LCA)
	require.Error(t, err)
	assert.Equal(t, ErrCodeBoundOrder, ErrorCodeOf(err))
}
