package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/safeprop/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	ProjectOptions
	Dir      string
	Limit    int
	Proposal string   // show every run that made this proposal
	Where    []string // proposal filters, all of which must hold
}

// RunDetail is one run and the proposals it made.
type RunDetail struct {
	Run       store.Run        `json:"run"`
	Proposals []store.Proposal `json:"proposals"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{ProjectOptions: ProjectOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded analysis runs",
		Long: `Show runs recorded by check and apply.

Without arguments the most recent runs are listed. With a run ID the run
and its proposals are shown. With --proposal every run that made the given
proposal is listed, oldest first. With --where, proposals from every run
are filtered by field=value or level>=LEVEL, newest run first.

Examples:
  safeprop history --dir ./graph
  safeprop history --dir ./graph 0192f3c4-...
  safeprop history --dir ./graph --proposal 5e1a...
  safeprop history --dir ./graph --where level>=DO_NOT_LOG --where applied=false`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	addProjectFlags(cmd, &opts.ProjectOptions)
	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "program directory the history belongs to")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.Proposal, "proposal", "", "proposal ID to trace across runs")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "filter proposals by field=value or level>=LEVEL (repeatable)")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	var filter store.Predicate
	if len(opts.Where) > 0 {
		pred, err := store.ParseFilter(opts.Where)
		if err != nil {
			return formatter.Fail(ExitCommandError, "invalid filter", err)
		}
		filter = pred
	}

	cfg, err := opts.resolveConfig(cmd, opts.Dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid configuration", err)
	}
	path := storePath(cfg, opts.Dir)
	if path == "" {
		return formatter.Fail(ExitCommandError, "history is disabled",
			&LoadError{Code: ErrCodeStore, Message: "store is set to none"})
	}
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, "no history",
			&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("history store not found: %s", path)})
	}

	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open history",
			&LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	defer st.Close()

	switch {
	case len(args) == 1:
		return showRun(ctx, st, args[0], formatter)
	case opts.Proposal != "":
		return showProposal(ctx, st, opts.Proposal, formatter)
	case filter != nil:
		return queryProposals(ctx, st, filter, opts.Limit, formatter)
	default:
		return listRuns(ctx, st, opts.Limit, formatter)
	}
}

func listRuns(ctx context.Context, st *store.Store, limit int, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to list runs", err)
	}
	if runs == nil {
		runs = []store.Run{}
	}
	if formatter.JSON() {
		return formatter.Success(runs)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		applied := ""
		if r.Applied {
			applied = " applied"
		}
		fmt.Fprintf(w, "%s  %s  %d unit(s)  %d proposal(s)%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Units, r.Proposals, applied)
	}
	return nil
}

func showRun(ctx context.Context, st *store.Store, id string, formatter *OutputFormatter) error {
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, "run not found",
			&LoadError{Code: ErrCodeNotFound, Message: id})
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read run", err)
	}
	proposals, err := st.ReadProposals(ctx, id)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read proposals", err)
	}
	if proposals == nil {
		proposals = []store.Proposal{}
	}

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: RunDetail{Run: run, Proposals: proposals}, RunID: run.ID})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  root:     %s\n", run.Root)
	fmt.Fprintf(w, "  started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "  finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "  engine:   %s (ir %s)\n", run.EngineVersion, run.IRVersion)
	fmt.Fprintf(w, "  units:    %d\n", run.Units)
	fmt.Fprintf(w, "  applied:  %t\n", run.Applied)
	fmt.Fprintln(w)
	for _, p := range proposals {
		mark := " "
		if p.Applied {
			mark = "*"
		}
		fmt.Fprintf(w, "%s [%d] %s: %s: %s -> %s\n", mark, p.Seq, p.Unit, p.Target, p.Existing, p.Level)
	}
	return nil
}

func showProposal(ctx context.Context, st *store.Store, id string, formatter *OutputFormatter) error {
	history, err := st.ProposalHistory(ctx, id)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read proposal history", err)
	}
	if history == nil {
		history = []store.Proposal{}
	}
	if formatter.JSON() {
		return formatter.Success(history)
	}

	w := formatter.Writer
	if len(history) == 0 {
		fmt.Fprintf(w, "No runs proposed %s.\n", id)
		return nil
	}
	for _, p := range history {
		fmt.Fprintf(w, "%s  %s: %s -> %s  applied=%t\n", p.RunID, p.Target, p.Existing, p.Level, p.Applied)
	}
	return nil
}

func queryProposals(ctx context.Context, st *store.Store, filter store.Predicate, limit int, formatter *OutputFormatter) error {
	proposals, err := st.QueryProposals(ctx, filter, limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to query proposals", err)
	}
	if proposals == nil {
		proposals = []store.Proposal{}
	}
	if formatter.JSON() {
		return formatter.Success(proposals)
	}

	w := formatter.Writer
	if len(proposals) == 0 {
		fmt.Fprintln(w, "No matching proposals.")
		return nil
	}
	for _, p := range proposals {
		fmt.Fprintf(w, "%s  %s: %s: %s -> %s  applied=%t\n", p.RunID, p.Unit, p.Target, p.Existing, p.Level, p.Applied)
	}
	return nil
}
