package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	ProjectOptions
	FailOnProposals bool
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{ProjectOptions: ProjectOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "check <dir>",
		Short: "Report declarations that need a stronger safety label",
		Long: `Analyze the declaration graph in <dir> and report proposals.

Every type and method whose computed safety is more restrictive than its
declared label is reported with the label that should be added. Sources
are not modified. The run is recorded in the history store unless it is
disabled.

Exit codes:
  0 - Analysis completed (or no proposals with --fail-on-proposals)
  1 - Proposals found and --fail-on-proposals given
  2 - Command error (missing directory, malformed program, etc.)

Examples:
  safeprop check ./graph
  safeprop check ./graph --fail-on-proposals --store none
  safeprop check ./graph --workers 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	addProjectFlags(cmd, &opts.ProjectOptions)
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "units analyzed in parallel")
	cmd.Flags().BoolVar(&opts.FailOnProposals, "fail-on-proposals", false, "exit 1 when any proposal is made")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	a, err := opts.analyze(ctx, cmd, dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, "check failed", err)
	}
	recorded, err := opts.record(ctx, cmd, a, false)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to record run", err)
	}
	report := a.report(recorded)

	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{Status: "ok", Data: report, RunID: report.RunID}); err != nil {
			return err
		}
	} else {
		writeProposalsText(cmd, report.Proposals)
		fmt.Fprintf(cmd.OutOrStdout(), "%d proposal(s) in %d unit(s)\n", len(report.Proposals), report.Units)
	}

	if opts.FailOnProposals && len(report.Proposals) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d proposal(s) found", len(report.Proposals)))
	}
	return nil
}
