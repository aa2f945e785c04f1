package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gatesched/internal/verifier"
)

// VerifyResult is the JSON payload of the verify command.
type VerifyResult struct {
	Unit   string          `json:"unit"`
	Gates  int             `json:"gates"`
	Valid  bool            `json:"valid"`
	Errors []VerifyProblem `json:"errors,omitempty"`
}

type VerifyProblem struct {
	Gate    string `json:"gate"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <circuit>",
		Short: "Check a circuit for structural errors",
		Long: `Check a circuit against the gate signature table without scheduling it.

Reports unset inputs, wrong input counts and kinds, unknown opcodes and
value cycles that do not pass through a phi.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], cmd)
		},
	}
}

func runVerify(opts *RootOptions, arg string, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	src, err := loadSource(arg)
	if err != nil {
		return reportSource(e.out, err)
	}

	errs := verifier.Verify(src.Circuit)
	res := VerifyResult{Unit: src.Name, Gates: src.Circuit.GateCount(), Valid: len(errs) == 0}
	for _, ve := range errs {
		res.Errors = append(res.Errors, VerifyProblem{Gate: src.label(ve.Gate), Code: ve.Code, Message: ve.Message})
	}

	if res.Valid {
		if e.out.IsJSON() {
			return e.out.Success(res)
		}
		fmt.Fprintf(e.out.Writer, "✓ %s: %d gates, no errors\n", res.Unit, res.Gates)
		return nil
	}

	if e.out.IsJSON() {
		if err := e.out.Failure(errs[0].Code, errs[0].Message, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(e.out.Writer, "✗ %s: %d error(s)\n\n", res.Unit, len(res.Errors))
		for _, p := range res.Errors {
			fmt.Fprintf(e.out.Writer, "  %s %s: %s\n", p.Code, p.Gate, p.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("verification failed with %d error(s)", len(errs)))
}
