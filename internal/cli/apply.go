package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/safeprop/internal/rewrite"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	ProjectOptions
	Stdout bool // print rewritten sources instead of writing them
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{ProjectOptions: ProjectOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "apply <dir>",
		Short: "Add the proposed safety labels to unit sources",
		Long: `Analyze the declaration graph in <dir> and rewrite unit sources.

Units read from a source_file are rewritten in place; units with inline
source are printed. With --stdout nothing is written to disk. Edits to a
unit are applied together or not at all.

Examples:
  safeprop apply ./graph
  safeprop apply ./graph --stdout`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	addProjectFlags(cmd, &opts.ProjectOptions)
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "units analyzed in parallel")
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false, "print rewritten sources instead of writing files")

	return cmd
}

func runApply(opts *ApplyOptions, dir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)
	logger := opts.Logger(cmd)

	a, err := opts.analyze(ctx, cmd, dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, "apply failed", err)
	}
	prog := a.load.Program

	emitter := rewrite.NewEmitter(a.load.Config.Labels)
	batch := rewrite.NewBatch()
	for _, f := range a.findings {
		ed, err := emitter.Emit(prog.Unit(f.Unit), f)
		var applyErr *rewrite.ApplyError
		if errors.As(err, &applyErr) && applyErr.Code == rewrite.ErrCodeNoSource {
			logger.Debug("no source to rewrite", "unit", f.Unit, "target", f.Target)
			continue
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, fmt.Sprintf("cannot rewrite %s", f.Target), err)
		}
		batch.Add(ed)
	}

	sources, err := batch.Apply(prog)
	if err != nil {
		return formatter.Fail(ExitCommandError, "apply edits", err)
	}

	report := a.report(false)
	for _, path := range batch.Units() {
		u := prog.Unit(path)
		if opts.Stdout || u.SourceFile == "" {
			if report.Sources == nil {
				report.Sources = map[string]string{}
			}
			report.Sources[path] = sources[path]
			continue
		}
		file := resolvePath(dir, u.SourceFile)
		if err := writeSource(file, sources[path]); err != nil {
			return formatter.Fail(ExitCommandError, "write source",
				&LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
		}
		logger.Info("source rewritten", "unit", path, "file", file, "edits", len(batch.Edits(path)))
		report.Written = append(report.Written, file)
	}

	for i := range a.proposals {
		p := &a.proposals[i]
		if u := prog.Unit(p.Unit); u != nil && u.SourceFile != "" && slices.Contains(report.Written, resolvePath(dir, u.SourceFile)) {
			p.Applied = true
		}
	}

	recorded, err := opts.record(ctx, cmd, a, len(report.Written) > 0)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to record run", err)
	}
	report.Recorded = recorded

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: report, RunID: report.RunID})
	}

	w := cmd.OutOrStdout()
	writeProposalsText(cmd, report.Proposals)
	for _, file := range report.Written {
		fmt.Fprintf(w, "wrote %s\n", file)
	}
	for _, path := range batch.Units() {
		if src, ok := report.Sources[path]; ok {
			fmt.Fprintf(w, "--- %s\n%s", path, src)
		}
	}
	return nil
}

// writeSource replaces file's contents, keeping its permissions.
func writeSource(file, src string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	return os.WriteFile(file, []byte(src), info.Mode().Perm())
}
