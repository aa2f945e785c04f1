package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/gatesched/internal/ir"
	"github.com/roach88/gatesched/internal/retype"
	"github.com/roach88/gatesched/internal/verifier"
)

// RetypeOptions holds flags for the retype command.
type RetypeOptions struct {
	*RootOptions
	NoConvert bool
}

// TypedGate is one gate of the retype table.
type TypedGate struct {
	Gate string `json:"gate"`
	Type string `json:"type"`
}

// ConversionView is one inserted conversion gate.
type ConversionView struct {
	Gate  string `json:"gate"`
	Kind  string `json:"kind"`
	Input string `json:"input"`
}

// RetypeResult is the JSON payload of the retype command.
type RetypeResult struct {
	Unit        string           `json:"unit"`
	Types       []TypedGate      `json:"types"`
	Conversions []ConversionView `json:"conversions,omitempty"`
	ByKind      map[string]int   `json:"by_kind,omitempty"`
}

// NewRetypeCommand creates the retype command.
func NewRetypeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RetypeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "retype <circuit>",
		Short: "Infer machine representations and insert conversions",
		Long: `Run the Retype pass to a fixed point and print the representation chosen
for every value gate, then run Convert and list the conversion gates it added.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetype(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoConvert, "no-convert", false, "stop after Retype")

	return cmd
}

func runRetype(opts *RetypeOptions, arg string, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	src, err := loadSource(arg)
	if err != nil {
		return reportSource(e.out, err)
	}
	c := src.Circuit
	if errs := verifier.Verify(c); len(errs) > 0 {
		_ = e.out.Error(ErrCodeInvalidGraph, errs[0].Error(), nil)
		return WrapExitError(ExitFailure, src.Name+": rejected", errs[0])
	}

	before := c.GateCount()
	typing := retype.RunRetypePhase(c, retype.WithLogger(e.log))
	var stats retype.ConvertStats
	if !opts.NoConvert {
		stats = retype.RunConvertPhase(typing)
	}

	res := RetypeResult{Unit: src.Name}
	for _, ref := range c.AllGates() {
		if int(ref) >= before {
			continue
		}
		if ti := typing.TypeOf(ref); ti != retype.None {
			res.Types = append(res.Types, TypedGate{Gate: src.label(ref), Type: ti.String()})
		}
	}
	for _, ref := range c.AllGates() {
		if int(ref) < before {
			continue
		}
		res.Conversions = append(res.Conversions, ConversionView{
			Gate:  ir.Label(c, ref),
			Kind:  ir.ConvertKindOf(c, ref).String(),
			Input: src.label(c.GetValueIn(ref, 0)),
		})
	}
	if len(stats.ByKind) > 0 {
		res.ByKind = make(map[string]int, len(stats.ByKind))
		for k, n := range stats.ByKind {
			res.ByKind[k.String()] = n
		}
	}

	if e.out.IsJSON() {
		return e.out.Success(res)
	}
	printRetype(e.out, res, stats)
	return nil
}

func printRetype(out *OutputFormatter, res RetypeResult, stats retype.ConvertStats) {
	w := out.Writer
	width := 0
	for _, tg := range res.Types {
		width = max(width, len(tg.Gate))
	}
	fmt.Fprintf(w, "%s: %d typed gate(s)\n", res.Unit, len(res.Types))
	for _, tg := range res.Types {
		fmt.Fprintf(w, "  %-*s  %s\n", width, tg.Gate, tg.Type)
	}
	if len(res.Conversions) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d conversion(s), %d input(s) rewired\n", stats.Inserted, stats.Rewired)
	for _, cv := range res.Conversions {
		fmt.Fprintf(w, "  %s %s <- %s\n", cv.Gate, cv.Kind, cv.Input)
	}
	kinds := make([]string, 0, len(res.ByKind))
	for k := range res.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		out.VerboseLog("%s: %d", k, res.ByKind[k])
	}
}
