package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/gatesched/internal/config"
	"github.com/roach88/gatesched/internal/diag"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // explicit gatesched.toml; empty searches upward from the working directory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gatesched CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gatesched",
		Short: "gatesched - schedule sea-of-nodes circuits",
		Long: `Schedule gate circuits into basic blocks and retype them.

Circuits are read from YAML or CUE fixtures, or generated from a builtin
stub such as builtin:array_push/2.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to "+config.FileName)

	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewRetypeCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// env is what every subcommand needs before it starts.
type env struct {
	out *OutputFormatter
	cfg config.Config
	log *zap.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// setup loads configuration and builds the logger. Errors are already
// reported through the formatter.
func (o *RootOptions) setup(cmd *cobra.Command) (*env, error) {
	e := &env{out: o.formatter(cmd)}

	path := o.Config
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, commandError(e.out, ErrCodeConfig, "cannot determine working directory", err)
		}
		if path, err = config.Find(wd); err != nil {
			return nil, commandError(e.out, ErrCodeConfig, "cannot search for "+config.FileName, err)
		}
	}
	e.cfg = config.Default()
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, commandError(e.out, ErrCodeConfig, "invalid configuration", err)
		}
		e.cfg = cfg
		e.out.VerboseLog("Using %s", path)
	}

	level := e.cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	log, err := diag.New(level, e.cfg.Log.Format, e.out.GetErrWriter())
	if err != nil {
		return nil, commandError(e.out, ErrCodeConfig, "invalid log settings", err)
	}
	e.log = log
	return e, nil
}

// commandError reports err and returns an exit-2 error.
func commandError(out *OutputFormatter, code, message string, err error) error {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	_ = out.Error(code, msg, nil)
	return WrapExitError(ExitCommandError, code+": "+message, err)
}
