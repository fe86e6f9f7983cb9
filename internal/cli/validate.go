package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/safeprop/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Units  int                        `json:"units"`
	Types  int                        `json:"types"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <dir>",
		Short: "Validate a declaration graph without analyzing it",
		Long: `Load and compile the declaration graph in <dir> and check it for
declarations a Java compiler would reject or that make safety labels
ambiguous, such as two safety labels on one declaration.

Exit codes:
  0 - Program valid
  1 - Validation errors found
  2 - Command error (missing directory, malformed document, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file (default <dir>/safeprop.yaml)")

	return cmd
}

func runValidate(opts *ProjectOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.resolveConfig(cmd, dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid configuration", err)
	}
	lr, err := LoadProgram(dir, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to load program", err)
	}
	opts.Logger(cmd).Debug("program loaded", "dir", dir, "files", lr.FileCount)

	result := ValidationResult{
		Valid: true,
		Units: len(lr.Program.Units),
		Types: len(lr.Program.AllTypes()),
	}
	result.Errors = compiler.Validate(lr.Program, cfg.Labels)

	if len(result.Errors) > 0 {
		result.Valid = false
		return outputValidationErrors(formatter, result)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Program valid: %d unit(s), %d type(s)\n", result.Units, result.Types)
	return nil
}

// outputValidationErrors outputs every validation error and fails with
// ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.Unit, err.Line)
		} else {
			fmt.Fprintf(formatter.Writer, "%s\n", err.Unit)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
