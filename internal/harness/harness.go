package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/safeprop/internal/compiler"
	"github.com/roach88/safeprop/internal/config"
	"github.com/roach88/safeprop/internal/engine"
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/oracle"
	"github.com/roach88/safeprop/internal/rewrite"
	"github.com/roach88/safeprop/internal/store"
	"github.com/roach88/safeprop/internal/testutil"
)

// Harness runs one scenario against a fresh in-memory history store with
// deterministic run IDs and timestamps.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	runIDs *testutil.FixedRunIDGenerator
	cfg    config.Config
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory store
//  2. Compile the scenario's CUE program
//  3. Analyze it and record the run and its proposals
//  4. Emit and apply edits for every unit with source text
//  5. Evaluate expectations and principles
//
// An error means the scenario could not be executed at all; failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := config.Default()
	overlay := scenario.Config
	overlay.Store, overlay.Workers = "", 0
	if err := cfg.Apply(overlay); err != nil {
		return nil, fmt.Errorf("invalid scenario config: %w", err)
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(testutil.DefaultEpoch),
		runIDs: testutil.NewFixedRunIDGenerator(scenario.Name),
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	prog, err := h.compile(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.analyze(ctx, scenario, prog, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateExpectations(result, scenario) {
		result.AddError(msg)
	}
	for _, msg := range CheckPrinciples(result) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) compile(scenario *Scenario) (*ir.Program, error) {
	var v cue.Value
	cctx := cuecontext.New()
	if scenario.Program != "" {
		data, err := os.ReadFile(scenario.Program)
		if err != nil {
			return nil, fmt.Errorf("failed to read program: %w", err)
		}
		v = cctx.CompileBytes(data, cue.Filename(scenario.Program))
	} else {
		v = cctx.CompileString(scenario.Document, cue.Filename(scenario.Name+".cue"))
	}

	base := scenario.baseDir
	c := compiler.New(compiler.WithSourceReader(func(path string) (string, error) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		data, err := os.ReadFile(path)
		return string(data), err
	}))
	prog, err := c.CompileProgram(v)
	if err != nil {
		return nil, fmt.Errorf("failed to compile program: %w", err)
	}
	return prog, nil
}

func (h *Harness) analyze(ctx context.Context, scenario *Scenario, prog *ir.Program, result *Result) error {
	eng := engine.New(oracle.New(prog, h.cfg.OracleOptions()...), engine.WithLogger(h.logger))
	findings, err := eng.AnalyzeProgram(ctx, prog)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	run := store.Run{
		ID:            h.runIDs.Generate(),
		Root:          scenario.Name,
		StartedAt:     h.clock.Now(),
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Labels:        h.cfg.Labels,
		Units:         len(prog.Units),
	}
	if err := h.store.WriteRun(ctx, run); err != nil {
		return err
	}
	result.RunID = run.ID

	emitter := rewrite.NewEmitter(h.cfg.Labels)
	batch := rewrite.NewBatch()
	proposals := make([]store.Proposal, 0, len(findings))
	for i, f := range findings {
		u := prog.Unit(f.Unit)
		p, err := store.NewProposal(run.ID, i, u, f, h.cfg.Labels)
		if err != nil {
			return err
		}
		if u.Source != "" {
			ed, err := emitter.Emit(u, f)
			if err != nil {
				return fmt.Errorf("emit %s: %w", f.Target, err)
			}
			batch.Add(ed)
			p.Applied = true
		}
		proposals = append(proposals, p)
	}

	sources, err := batch.Apply(prog)
	if err != nil {
		return fmt.Errorf("apply edits: %w", err)
	}
	for _, u := range prog.Units {
		if u.Source == "" {
			continue
		}
		if s, ok := sources[u.Path]; ok {
			result.Sources[u.Path] = s
		} else {
			result.Sources[u.Path] = u.Source
		}
	}
	result.Edited = batch.Units()

	if err := h.store.WriteProposals(ctx, proposals); err != nil {
		return err
	}
	if err := h.store.FinishRun(ctx, run.ID, h.clock.Now(), batch.Len() > 0); err != nil {
		return err
	}

	stored, err := h.store.ReadProposals(ctx, run.ID)
	if err != nil {
		return err
	}
	if stored != nil {
		result.Proposals = stored
	}

	h.logger.Info("scenario analyzed",
		"scenario", scenario.Name,
		"run_id", run.ID,
		"proposals", len(stored),
		"edited_units", len(sources),
	)
	return nil
}
