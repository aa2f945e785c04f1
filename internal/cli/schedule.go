package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/pipeline"
	"github.com/roach88/gatesched/internal/scheduler"
	"github.com/roach88/gatesched/internal/store"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	Retype bool
}

// BlockView is one scheduled block in JSON output.
type BlockView struct {
	Index int      `json:"index"`
	IDom  int      `json:"idom"`
	Preds []int    `json:"preds"`
	Succs []int    `json:"succs"`
	Gates []string `json:"gates"` // emission order
}

// ScheduleResult is the JSON payload of the schedule command.
type ScheduleResult struct {
	Unit        string      `json:"unit"`
	GraphHash   string      `json:"graph_hash"`
	Outcome     string      `json:"outcome"`
	Conversions int         `json:"conversions"`
	Blocks      []BlockView `json:"blocks,omitempty"`
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule <circuit>",
		Short: "Schedule a circuit into basic blocks",
		Long: `Verify, optionally retype, and schedule one circuit, then print the blocks.

Examples:
  gatesched schedule testdata/diamond.yaml
  gatesched schedule testdata/loops.cue#count_up --retype=false
  gatesched schedule builtin:array_push/2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Retype, "retype", true, "run Retype and Convert before scheduling (overrides [retype] enabled)")

	return cmd
}

func runSchedule(opts *ScheduleOptions, arg string, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("retype") {
		e.cfg.Retype.Enabled = opts.Retype
	}
	src, err := loadSource(arg)
	if err != nil {
		return reportSource(e.out, err)
	}

	p := pipeline.New(e.cfg, pipeline.WithLogger(e.log))
	res, err := p.Compile(background(cmd), src.unit())
	if err != nil {
		var ce *pipeline.CompileError
		if !errors.As(err, &ce) {
			return commandError(e.out, ErrCodeGeneric, "compile failed", err)
		}
		return reportCompileError(e.out, src, res, ce)
	}

	view := ScheduleResult{
		Unit:        src.Name,
		GraphHash:   res.GraphHash,
		Outcome:     string(res.Outcome),
		Conversions: res.Conversions.Inserted,
		Blocks:      blockViews(src, res.Schedule),
	}
	if e.out.IsJSON() {
		return e.out.Success(view)
	}
	fmt.Fprintf(e.out.Writer, "%s: %s, %d conversion(s)\n", src.Name, res.Schedule, res.Conversions.Inserted)
	fmt.Fprint(e.out.Writer, res.Dump)
	return nil
}

func blockViews(src *source, res *scheduler.Result) []BlockView {
	views := make([]BlockView, len(res.CFG))
	for i := range res.CFG {
		b := &res.CFG[i]
		v := BlockView{Index: b.Index, IDom: b.IDom, Preds: b.Preds, Succs: b.Succs}
		for _, ref := range b.EmissionOrder() {
			v.Gates = append(v.Gates, src.label(ref))
		}
		views[i] = v
	}
	return views
}

// reportCompileError prints a rejected or fallen-back unit. Both exit 1.
func reportCompileError(out *OutputFormatter, src *source, res pipeline.Result, ce *pipeline.CompileError) error {
	code := ErrCodeInvalidGraph
	if res.Outcome == store.OutcomeFallback {
		code = ErrCodeFallback
	}
	msg := ce.Cause.Error()
	if ce.Gate != ir.NullGate {
		msg = fmt.Sprintf("%s (gate %s)", msg, src.label(ce.Gate))
	}
	if err := out.Failure(code, msg, ScheduleResult{
		Unit:      src.Name,
		GraphHash: res.GraphHash,
		Outcome:   string(res.Outcome),
	}); err != nil {
		return err
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("%s: %s", src.Name, res.Outcome), ce)
}

// background is used when cobra runs a command without a context.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
