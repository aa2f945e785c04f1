package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gatesched/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Latest   bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [unit]",
		Short: "List recorded compile runs",
		Long: `List runs from the SQLite history written by "compile --db".

Without a unit every run is listed in sequence order.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			unit := ""
			if len(args) == 1 {
				unit = args[0]
			}
			return runHistory(opts, unit, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run history (overrides [store] path)")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "show only the most recent run of the unit, with its dump")

	return cmd
}

func runHistory(opts *HistoryOptions, unit string, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	ctx := background(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = e.cfg.Store.Path
	}
	if dbPath == "" {
		return commandError(e.out, ErrCodeStore, "no run history: pass --db or set [store] path", nil)
	}
	// Opening creates the file; a history query on a missing file is a typo.
	if _, err := os.Stat(dbPath); err != nil {
		return commandError(e.out, ErrCodeNotFound, "run history not found", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return commandError(e.out, ErrCodeStore, "cannot open run history", err)
	}
	defer st.Close()

	if opts.Latest {
		if unit == "" {
			return commandError(e.out, ErrCodeGeneric, "--latest needs a unit", nil)
		}
		run, err := st.LatestRun(ctx, unit)
		if errors.Is(err, store.ErrNotFound) {
			_ = e.out.Error(ErrCodeNotFound, fmt.Sprintf("no runs for unit %s", unit), nil)
			return NewExitError(ExitFailure, "no runs for unit "+unit)
		}
		if err != nil {
			return commandError(e.out, ErrCodeStore, "cannot read run history", err)
		}
		if e.out.IsJSON() {
			return e.out.Success(run)
		}
		printRun(e.out, run)
		if run.Dump != "" {
			fmt.Fprint(e.out.Writer, run.Dump)
		}
		return nil
	}

	runs, err := st.ListRuns(ctx, unit)
	if err != nil {
		return commandError(e.out, ErrCodeStore, "cannot read run history", err)
	}
	if e.out.IsJSON() {
		return e.out.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.out.Writer, "no runs recorded")
		return nil
	}
	for _, r := range runs {
		printRun(e.out, r)
	}
	return nil
}

func printRun(out *OutputFormatter, r store.Run) {
	fmt.Fprintf(out.Writer, "%4d %-20s %-9s blocks=%d gates=%d graph=%s",
		r.Seq, r.Unit, r.Outcome, r.BlockCount, r.GateCount, shortHash(r.GraphHash))
	if r.ErrorCode != "" {
		fmt.Fprintf(out.Writer, " error=%s", r.ErrorCode)
	}
	fmt.Fprintln(out.Writer)
	out.VerboseLog("     run=%s config=%s tool=%s ir=%s", r.ID, shortHash(r.ConfigHash), r.ToolVersion, r.IRVersion)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
