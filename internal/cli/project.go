package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/safeprop/internal/config"
	"github.com/roach88/safeprop/internal/engine"
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/oracle"
	"github.com/roach88/safeprop/internal/store"
)

// ProjectOptions holds the flags that override safeprop.yaml.
type ProjectOptions struct {
	*RootOptions
	ConfigPath string
	Store      string
	Workers    int

	// RunIDs and Now override run identity (for testing). Nil means
	// UUIDv7 IDs and wall-clock time.
	RunIDs store.RunIDGenerator
	Now    func() time.Time
}

func addProjectFlags(cmd *cobra.Command, opts *ProjectOptions) {
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file (default <dir>/safeprop.yaml)")
	cmd.Flags().StringVar(&opts.Store, "store", "", `history database, relative to <dir> ("none" disables)`)
}

// resolveConfig loads the project config and applies flag overrides.
func (o *ProjectOptions) resolveConfig(cmd *cobra.Command, dir string) (config.Config, error) {
	cfg, err := LoadConfig(dir, o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if f := cmd.Flags().Lookup("store"); f != nil && f.Changed {
		cfg.Store = o.Store
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		cfg.Workers = o.Workers
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}
	return cfg, nil
}

// storePath is where the history database for dir lives, or "" when
// history is disabled.
func storePath(cfg config.Config, dir string) string {
	if !cfg.StoreEnabled() {
		return ""
	}
	return resolvePath(dir, cfg.Store)
}

func (o *ProjectOptions) newRunID() string {
	if o.RunIDs == nil {
		o.RunIDs = store.UUIDv7Generator{}
	}
	return o.RunIDs.Generate()
}

func (o *ProjectOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// analysis is one analyzer run over a program directory.
type analysis struct {
	load      *LoadResult
	run       store.Run
	findings  []engine.Finding
	proposals []store.Proposal
}

// analyze loads dir and runs the engine over it. Nothing is recorded yet.
func (o *ProjectOptions) analyze(ctx context.Context, cmd *cobra.Command, dir string) (*analysis, error) {
	logger := o.Logger(cmd)

	cfg, err := o.resolveConfig(cmd, dir)
	if err != nil {
		return nil, err
	}
	lr, err := LoadProgram(dir, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("program loaded", "dir", dir, "files", lr.FileCount, "units", len(lr.Program.Units))

	eng := engine.New(
		oracle.New(lr.Program, cfg.OracleOptions()...),
		engine.WithLogger(logger),
		engine.WithWorkers(cfg.Workers),
	)
	findings, err := eng.AnalyzeProgram(ctx, lr.Program)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		root = dir
	}
	a := &analysis{
		load: lr,
		run: store.Run{
			ID:            o.newRunID(),
			Root:          root,
			StartedAt:     o.now(),
			EngineVersion: ir.EngineVersion,
			IRVersion:     ir.IRVersion,
			Labels:        cfg.Labels,
			Units:         len(lr.Program.Units),
		},
		findings:  findings,
		proposals: make([]store.Proposal, 0, len(findings)),
	}
	for i, f := range findings {
		p, err := store.NewProposal(a.run.ID, i, lr.Program.Unit(f.Unit), f, cfg.Labels)
		if err != nil {
			return nil, err
		}
		a.proposals = append(a.proposals, p)
	}

	logger.Info("analysis complete",
		"run_id", a.run.ID,
		"units", a.run.Units,
		"proposals", len(a.proposals),
	)
	return a, nil
}

// record writes the run and its proposals to the history store, if one
// is configured, and reports whether it did.
func (o *ProjectOptions) record(ctx context.Context, cmd *cobra.Command, a *analysis, applied bool) (bool, error) {
	path := storePath(a.load.Config, a.load.Dir)
	if path == "" {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("create store directory: %v", err)}
	}
	st, err := store.Open(path)
	if err != nil {
		return false, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	defer st.Close()

	if err := st.WriteRun(ctx, a.run); err != nil {
		return false, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	if err := st.WriteProposals(ctx, a.proposals); err != nil {
		return false, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	if err := st.FinishRun(ctx, a.run.ID, o.now(), applied); err != nil {
		return false, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	o.Logger(cmd).Debug("run recorded", "run_id", a.run.ID, "store", path)
	return true, nil
}

// Report is the result of check and apply.
type Report struct {
	RunID     string           `json:"run_id"`
	Recorded  bool             `json:"recorded"`
	Units     int              `json:"units"`
	Proposals []store.Proposal `json:"proposals"`

	// Written lists files rewritten on disk (apply only).
	Written []string `json:"written,omitempty"`

	// Sources holds rewritten text that was not written to disk: units
	// with inline source, or every unit under --stdout (apply only).
	Sources map[string]string `json:"sources,omitempty"`
}

func (a *analysis) report(recorded bool) Report {
	return Report{
		RunID:     a.run.ID,
		Recorded:  recorded,
		Units:     a.run.Units,
		Proposals: a.proposals,
	}
}

func writeProposalsText(cmd *cobra.Command, proposals []store.Proposal) {
	w := cmd.OutOrStdout()
	for _, p := range proposals {
		fmt.Fprintf(w, "%s: %s: %s -> %s (@%s)\n", p.Unit, p.Target, p.Existing, p.Level, p.Label)
	}
}
