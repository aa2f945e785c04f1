package scheduler

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/domtree"
	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/verifier"
)

// State is the progress of a scheduling run.
type State int

const (
	StateNotRun State = iota
	StateBuildDominatorTree
	StateBuildLCAIndex
	StateSolveBounds
	StateAssembleBlocks
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotRun:
		return "NotRun"
	case StateBuildDominatorTree:
		return "BuildDominatorTree"
	case StateBuildLCAIndex:
		return "BuildLCAIndex"
	case StateSolveBounds:
		return "SolveBounds"
	case StateAssembleBlocks:
		return "AssembleBlocks"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Scheduler turns one circuit into a list of basic blocks. A Scheduler runs
// once; create a new one per function.
type Scheduler struct {
	g      ir.Graph
	log    *zap.Logger
	verify bool
	dump   io.Writer
	state  State
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithVerifier enables the debug verifier: the graph is checked before
// scheduling and the assembled blocks are checked afterwards. A failure is an
// internal-consistency fault and panics.
func WithVerifier(enabled bool) Option {
	return func(s *Scheduler) { s.verify = enabled }
}

// WithLogger sets the diagnostics sink. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDump writes the scheduled CFG listing to w after a successful run.
func WithDump(w io.Writer) Option {
	return func(s *Scheduler) { s.dump = w }
}

// New creates a scheduler for g.
func New(g ir.Graph, opts ...Option) *Scheduler {
	s := &Scheduler{g: g, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state of the run.
func (s *Scheduler) State() State { return s.state }

// Run schedules the circuit. Any returned error is a *VerificationError and
// means this function cannot be compiled with the optimizing pipeline.
func (s *Scheduler) Run() (*Result, error) {
	if s.state != StateNotRun {
		panic("BUG: Scheduler.Run called twice")
	}
	res, err := s.run()
	if err != nil {
		s.state = StateFailed
		return nil, err
	}
	s.state = StateDone
	return res, nil
}

func (s *Scheduler) run() (*Result, error) {
	if s.verify {
		if errs := verifier.Verify(s.g); len(errs) > 0 {
			panic(fmt.Sprintf("unreachable: graph verification failed: %v", errs))
		}
	}

	s.state = StateBuildDominatorTree
	tree, err := domtree.Build(s.g)
	if err != nil {
		var irr *domtree.IrreducibleError
		if errors.As(err, &irr) {
			ve := newVerificationError(ErrCodeIrreducible, irr.From, "%v", err)
			s.log.Error("scheduler verification failed",
				zap.Uint32("gate", uint32(irr.From)),
				zap.String("code", string(ve.Code)))
			return nil, ve
		}
		return nil, err
	}

	s.state = StateBuildLCAIndex
	lca := domtree.NewLCA(tree.IDom)

	s.state = StateSolveBounds
	bounds, err := Solve(s.g, tree, lca, s.log)
	if err != nil {
		return nil, err
	}

	s.state = StateAssembleBlocks
	res := &Result{
		CFG:    s.assemble(tree, bounds),
		Tree:   tree,
		LCA:    lca,
		Bounds: bounds,
	}
	if s.verify {
		if err := res.CheckPlacement(s.g); err != nil {
			panic(fmt.Sprintf("unreachable: scheduled blocks failed verification: %v", err))
		}
	}

	s.log.Debug("schedule complete",
		zap.Int("blocks", len(res.CFG)),
		zap.Int("gates", res.CFG.GateCount()),
		zap.Int("floating", len(bounds.Order)))
	if s.dump != nil {
		if err := Dump(s.dump, s.g, res.CFG); err != nil {
			return nil, fmt.Errorf("write schedule dump: %w", err)
		}
	}
	return res, nil
}

// assemble commits every floating gate to its lower bound.
func (s *Scheduler) assemble(tree *domtree.Tree, bounds *Bounds) ControlFlowGraph {
	cfg := make(ControlFlowGraph, tree.Len())
	for i, anchor := range tree.Blocks {
		cfg[i] = Block{
			Index: i,
			IDom:  tree.IDom[i],
			Preds: tree.Preds(s.g, i),
			Succs: tree.Succs(s.g, i),
			Gates: []ir.GateRef{anchor},
		}
	}
	for _, ref := range bounds.Order {
		b := bounds.Lower[ref]
		cfg[b].Gates = append(cfg[b].Gates, ref)
	}

	var args []ir.GateRef
	for _, u := range s.g.Uses(s.g.ArgList()) {
		if s.g.GetOpCode(u.Gate) == ir.OpArg {
			args = append(args, u.Gate)
		}
	}
	sort.SliceStable(args, func(i, j int) bool {
		return s.g.GetBitField(args[i]) > s.g.GetBitField(args[j])
	})
	cfg[0].Gates = append(cfg[0].Gates, args...)

	for i, anchor := range tree.Blocks {
		for _, u := range s.g.Uses(anchor) {
			if s.g.IsFixed(u.Gate) && u.Index == 0 {
				cfg[i].Gates = append(cfg[i].Gates, u.Gate)
			}
		}
	}
	for i := range cfg {
		cfg[i].order = emissionOrder(s.g, &cfg[i])
	}
	return cfg
}

// Run is a shorthand for New(g, opts...).Run().
func Run(g ir.Graph, opts ...Option) (*Result, error) {
	return New(g, opts...).Run()
}
