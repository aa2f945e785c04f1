// Package pipeline compiles units (named circuits) through the mid-end:
// verifier, Retype, Convert and the scheduler.
//
// Units are processed one at a time from a FIFO queue. A unit whose graph is
// malformed is rejected; a unit the scheduler cannot place falls back to the
// non-optimizing path. Neither stops the remaining units. Internal
// consistency faults panic and are not recovered.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/config"
	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/retype"
	"github.com/roach88/gatesched/internal/scheduler"
	"github.com/roach88/gatesched/internal/store"
	"github.com/roach88/gatesched/internal/verifier"
)

// Unit is one function to compile. The pipeline mutates Circuit when Retype
// is enabled.
type Unit struct {
	Name    string
	Circuit *ir.Circuit
}

// Result is what one unit produced.
type Result struct {
	RunID     string
	Seq       int64
	Unit      string
	GraphHash string
	Outcome   store.Outcome

	// Typing is nil when Retype is disabled.
	Typing      *retype.Typing
	Conversions retype.ConvertStats
	// Schedule is nil unless Outcome is OutcomeScheduled.
	Schedule *scheduler.Result
	Dump     string

	Err error
}

// Pipeline compiles units with one configuration.
type Pipeline struct {
	cfg   config.Config
	log   *zap.Logger
	clock *Clock
	ids   RunIDGenerator
	store *store.Store
	queue unitQueue
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithStore persists every result.
func WithStore(s *store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

func WithClock(c *Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

func WithRunIDs(g RunIDGenerator) Option {
	return func(p *Pipeline) { p.ids = g }
}

// New returns a pipeline using cfg.
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:   cfg,
		log:   zap.NewNop(),
		clock: NewClock(),
		ids:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues a unit for RunAll.
func (p *Pipeline) Submit(units ...Unit) {
	for _, u := range units {
		p.queue.push(u)
	}
}

// Pending returns the number of queued units.
func (p *Pipeline) Pending() int { return p.queue.len() }

// RunAll compiles queued units in submission order until the queue is empty
// or ctx is done. Units that fail to compile are reported in their Result;
// the returned error is only set for cancellation or a store failure.
func (p *Pipeline) RunAll(ctx context.Context) ([]Result, error) {
	var results []Result
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		u, ok := p.queue.pop()
		if !ok {
			return results, nil
		}
		res, err := p.Compile(ctx, u)
		var ce *CompileError
		if err != nil && !errors.As(err, &ce) {
			return results, err
		}
		results = append(results, res)
	}
}

// Compile runs one unit through the pipeline. The returned error is a
// *CompileError when the unit did not schedule; Result.Err holds the same
// error so batch callers can keep going.
func (p *Pipeline) Compile(ctx context.Context, u Unit) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if u.Circuit == nil {
		panic(fmt.Sprintf("BUG: unit %q has no circuit", u.Name))
	}
	hash, err := ir.GraphHash(u.Circuit)
	if err != nil {
		return Result{}, fmt.Errorf("hash unit %s: %w", u.Name, err)
	}
	res := Result{
		RunID:     p.ids.Generate(),
		Seq:       p.clock.Next(),
		Unit:      u.Name,
		GraphHash: hash,
	}
	log := p.log.With(zap.String("unit", u.Name), zap.String("run", res.RunID))

	p.compile(u, &res, log)
	if err := p.persist(ctx, res); err != nil {
		return res, err
	}
	return res, res.Err
}

func (p *Pipeline) compile(u Unit, res *Result, log *zap.Logger) {
	if errs := verifier.Verify(u.Circuit); len(errs) > 0 {
		for _, e := range errs {
			log.Error("graph verification failed",
				zap.Uint32("gate", uint32(e.Gate)),
				zap.String("code", e.Code),
				zap.String("message", e.Message))
		}
		res.Outcome = store.OutcomeRejected
		res.Err = &CompileError{Code: ErrCodeInvalidGraph, Unit: u.Name, Gate: errs[0].Gate, Cause: errs[0]}
		return
	}

	if p.cfg.Retype.Enabled {
		res.Typing = retype.RunRetypePhase(u.Circuit, retype.WithLogger(log))
		res.Conversions = retype.RunConvertPhase(res.Typing)
	}

	var dump bytes.Buffer
	sched, err := scheduler.Run(u.Circuit,
		scheduler.WithVerifier(p.cfg.Scheduler.Verify),
		scheduler.WithLogger(log),
		scheduler.WithDump(&dump))
	if err != nil {
		var ve *scheduler.VerificationError
		if !errors.As(err, &ve) {
			panic(fmt.Sprintf("unreachable: scheduler returned %T: %v", err, err))
		}
		log.Warn("falling back to the non-optimizing path", zap.String("code", string(ve.Code)))
		res.Outcome = store.OutcomeFallback
		res.Err = &CompileError{Code: ErrCodeScheduleFailed, Unit: u.Name, Gate: ve.Gate, Cause: ve}
		return
	}
	res.Outcome = store.OutcomeScheduled
	res.Schedule = sched
	res.Dump = dump.String()
	log.Info("unit scheduled",
		zap.Int("blocks", len(sched.CFG)),
		zap.Int("gates", sched.CFG.GateCount()),
		zap.Int("conversions", res.Conversions.Inserted))
}

func (p *Pipeline) persist(ctx context.Context, res Result) error {
	if p.store == nil {
		return nil
	}
	run := store.Run{
		ID:          res.RunID,
		Seq:         res.Seq,
		Unit:        res.Unit,
		GraphHash:   res.GraphHash,
		ConfigHash:  p.cfg.Hash(),
		Outcome:     res.Outcome,
		Conversions: map[string]int{},
	}
	for kind, n := range res.Conversions.ByKind {
		run.Conversions[kind.String()] = n
	}
	if res.Schedule != nil {
		run.BlockCount = len(res.Schedule.CFG)
		run.GateCount = res.Schedule.CFG.GateCount()
	}
	if p.cfg.Scheduler.Dump {
		run.Dump = res.Dump
	}
	var ce *CompileError
	if errors.As(res.Err, &ce) {
		run.Error = ce.Cause.Error()
		run.ErrorCode = ce.CauseCode()
	}
	if err := p.store.WriteRun(ctx, run); err != nil {
		return fmt.Errorf("persist unit %s: %w", res.Unit, err)
	}
	return nil
}
