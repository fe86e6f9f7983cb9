package engine

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/oracle"
	"github.com/roach88/safeprop/internal/safety"
)

// Engine analyzes declarations against an oracle.
//
// An Engine holds no per-analysis state. All methods are safe for
// concurrent use as long as the oracle is.
type Engine struct {
	oracle  oracle.Oracle
	logger  *slog.Logger
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger decisions are written to at Debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers sets how many compilation units AnalyzeProgram processes at
// once. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = max(n, 1)
	}
}

// New creates an Engine.
func New(o oracle.Oracle, opts ...Option) *Engine {
	e := &Engine{
		oracle:  o,
		logger:  slog.Default(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeType decides whether t needs a stronger label.
func (e *Engine) AnalyzeType(t *ir.TypeDecl) Decision {
	if e.oracle.IsTestCode(t.Unit) {
		return e.log(t, KindSkipped, skip(ReasonTestCode))
	}
	kind := Classify(e.oracle, t)
	if kind == KindSkipped {
		return e.log(t, kind, skip(ReasonAnonymous))
	}
	computed := ComputeTypeSafety(e.oracle, t, kind)
	return e.log(t, kind, Decide(e.oracle.ExplicitSafety(t), computed))
}

// AnalyzeMethod decides whether m needs a stronger label, based on what its
// body returns.
//
// A method that already declares a level, directly or through its return
// type, is left alone: checking the body against a declared level is a
// different check. The exception is a redacted method, which is held to at
// least DO_NOT_LOG.
func (e *Engine) AnalyzeMethod(m *ir.MethodDecl) Decision {
	d := e.analyzeMethod(m)
	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("method decision",
			"decl", m.ID,
			"existing", d.Existing.String(),
			"computed", d.Computed.String(),
			"action", string(d.Action),
			"reason", string(d.Reason))
	}
	return d
}

func (e *Engine) analyzeMethod(m *ir.MethodDecl) Decision {
	if m.IsVoid() {
		return skip(ReasonVoid)
	}
	if m.Synthetic {
		return skip(ReasonSynthetic)
	}
	if m.Owner == nil || m.Owner.Anonymous {
		return skip(ReasonAnonymous)
	}

	declared := safety.JoinAssumingUnknownIsSame(e.oracle.ExplicitSafety(m), e.oracle.TypeSafety(m.Returns))
	if declared != safety.DoNotLog && declared != safety.Unsafe && e.oracle.IsRedacted(m) {
		return e.decide(m.Owner.Unit, declared, safety.DoNotLog)
	}
	if declared != safety.Unknown {
		d := skip(ReasonDeclared)
		d.Existing = declared
		return d
	}
	if m.IsAbstract() {
		return skip(ReasonAbstract)
	}
	if e.oracle.IsTestCode(m.Owner.Unit) {
		return skip(ReasonTestCode)
	}

	computed, found := ReturnSafety(e.oracle, m)
	if !found {
		return skip(ReasonNoReturns)
	}
	return Decide(declared, computed)
}

func (e *Engine) decide(unit *ir.Unit, existing, computed safety.Level) Decision {
	if e.oracle.IsTestCode(unit) {
		return skip(ReasonTestCode)
	}
	return Decide(existing, computed)
}

func (e *Engine) log(t *ir.TypeDecl, kind DeclarationKind, d Decision) Decision {
	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("type decision",
			"decl", t.Name,
			"kind", kind.String(),
			"existing", d.Existing.String(),
			"computed", d.Computed.String(),
			"action", string(d.Action),
			"reason", string(d.Reason))
	}
	return d
}

// AnalyzeProgram analyzes every type and method of every unit and returns
// the proposals. Findings are ordered by unit path, then by declaration
// order within the unit, regardless of how many workers ran.
//
// The only error is the context's.
func (e *Engine) AnalyzeProgram(ctx context.Context, prog *ir.Program) ([]Finding, error) {
	perUnit := make([][]Finding, len(prog.Units))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, u := range prog.Units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perUnit[i] = e.AnalyzeUnit(u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Finding
	for _, fs := range perUnit {
		out = append(out, fs...)
	}
	e.logger.Info("analysis complete", "units", len(prog.Units), "proposals", len(out))
	return out, nil
}

// AnalyzeUnit returns the proposals for one unit: each type followed by its
// methods, in source order.
func (e *Engine) AnalyzeUnit(u *ir.Unit) []Finding {
	var out []Finding
	u.WalkTypes(func(t *ir.TypeDecl) bool {
		if d := e.AnalyzeType(t); d.Annotates() {
			out = append(out, newTypeFinding(u, t, d))
		}
		for _, m := range t.Methods {
			if d := e.AnalyzeMethod(m); d.Annotates() {
				out = append(out, newMethodFinding(u, m, d))
			}
		}
		return true
	})
	return out
}
