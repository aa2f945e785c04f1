package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gatesched/internal/pipeline"
	"github.com/roach88/gatesched/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Database string

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs pipeline.RunIDGenerator
}

// UnitSummary is one compiled unit in compile output.
type UnitSummary struct {
	RunID       string `json:"run_id"`
	Unit        string `json:"unit"`
	Outcome     string `json:"outcome"`
	Blocks      int    `json:"blocks"`
	Conversions int    `json:"conversions"`
	Error       string `json:"error,omitempty"`
}

// CompileSummary is the JSON payload of the compile command.
type CompileSummary struct {
	Units     []UnitSummary `json:"units"`
	Scheduled int           `json:"scheduled"`
	Fallback  int           `json:"fallback"`
	Rejected  int           `json:"rejected"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <circuit>...",
		Short: "Compile a batch of circuits and record the outcomes",
		Long: `Run every circuit through verification, Retype/Convert and scheduling.

A unit that fails verification is rejected and a unit the scheduler cannot
place falls back; either way the remaining units are still compiled. With
--db every outcome is appended to the SQLite run history.

Example:
  gatesched compile --db runs.db testdata/diamond.yaml builtin:array_push/1`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run history (overrides [store] path)")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	ctx := background(cmd)

	var sources []*source
	for _, arg := range args {
		src, err := loadSource(arg)
		if err != nil {
			return reportSource(e.out, err)
		}
		sources = append(sources, src)
	}

	pipeOpts := []pipeline.Option{pipeline.WithLogger(e.log)}
	if opts.RunIDs != nil {
		pipeOpts = append(pipeOpts, pipeline.WithRunIDs(opts.RunIDs))
	}
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = e.cfg.Store.Path
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return commandError(e.out, ErrCodeStore, "cannot open run history", err)
		}
		defer st.Close()
		seq, err := st.MaxSeq(ctx)
		if err != nil {
			return commandError(e.out, ErrCodeStore, "cannot read run history", err)
		}
		pipeOpts = append(pipeOpts, pipeline.WithStore(st), pipeline.WithClock(pipeline.NewClockAt(seq)))
		e.out.VerboseLog("Recording runs in %s (next seq %d)", dbPath, seq+1)
	}

	p := pipeline.New(e.cfg, pipeOpts...)
	for _, src := range sources {
		p.Submit(src.unit())
	}
	results, err := p.RunAll(ctx)
	if err != nil {
		return commandError(e.out, ErrCodeStore, "compile aborted", err)
	}

	summary := summarize(results)
	failed := summary.Fallback + summary.Rejected
	if e.out.IsJSON() {
		if failed == 0 {
			if err := e.out.Success(summary); err != nil {
				return err
			}
		} else if err := e.out.Failure(ErrCodeGeneric, fmt.Sprintf("%d of %d unit(s) did not schedule", failed, len(results)), summary); err != nil {
			return err
		}
	} else {
		printSummary(e.out, summary)
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d unit(s) did not schedule", failed))
	}
	return nil
}

func summarize(results []pipeline.Result) CompileSummary {
	var s CompileSummary
	for _, r := range results {
		u := UnitSummary{
			RunID:       r.RunID,
			Unit:        r.Unit,
			Outcome:     string(r.Outcome),
			Conversions: r.Conversions.Inserted,
		}
		if r.Schedule != nil {
			u.Blocks = len(r.Schedule.CFG)
		}
		if r.Err != nil {
			u.Error = r.Err.Error()
		}
		switch r.Outcome {
		case store.OutcomeScheduled:
			s.Scheduled++
		case store.OutcomeFallback:
			s.Fallback++
		case store.OutcomeRejected:
			s.Rejected++
		}
		s.Units = append(s.Units, u)
	}
	return s
}

func printSummary(out *OutputFormatter, s CompileSummary) {
	for _, u := range s.Units {
		mark := "✓"
		if u.Outcome != string(store.OutcomeScheduled) {
			mark = "✗"
		}
		fmt.Fprintf(out.Writer, "%s %-20s %-9s blocks=%d conversions=%d\n", mark, u.Unit, u.Outcome, u.Blocks, u.Conversions)
		if u.Error != "" {
			fmt.Fprintf(out.Writer, "    %s\n", u.Error)
		}
	}
	fmt.Fprintf(out.Writer, "\n%d scheduled, %d fallback, %d rejected\n", s.Scheduled, s.Fallback, s.Rejected)
}
