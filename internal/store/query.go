package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// Predicate filters proposals in QueryProposals.
//
// This is a sealed interface: only types in this package implement it, so
// compilePredicate can switch over every case.
type Predicate interface {
	predicateNode()
}

// Equals matches a proposal column against a literal.
//
//	Equals{Field: "unit", Value: ir.Str("Test.java")}  →  p.unit = ?
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// AtLeast matches proposals at Level or any more restrictive level.
//
//	AtLeast{Level: safety.DoNotLog}  →  p.level IN (?, ?)
type AtLeast struct {
	Level safety.Level
}

func (AtLeast) predicateNode() {}

// And is a conjunction. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// filterColumns are the proposal columns a predicate may name.
var filterColumns = []string{"run_id", "id", "unit", "target", "kind", "existing", "level", "label", "source_hash", "applied"}

// QueryProposals returns proposals matching p across all runs, newest run
// first and in proposal order within a run. A nil predicate matches
// everything; a limit of zero or less returns every match.
func (s *Store) QueryProposals(ctx context.Context, p Predicate, limit int) ([]Proposal, error) {
	where, params, err := compilePredicate(p)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	params = append(params, limit)

	// Every query carries a total order so results are reproducible.
	return s.queryProposals(ctx, `
		SELECT p.run_id, p.id, p.seq, p.unit, p.target, p.kind, p.existing, p.level, p.label, p.source_hash, p.applied
		FROM proposals p
		JOIN runs r ON r.id = p.run_id
		WHERE `+where+`
		ORDER BY r.started_at DESC, p.run_id COLLATE BINARY DESC, p.seq ASC
		LIMIT ?
	`, params...)
}

// compilePredicate renders p as a WHERE fragment. Values are always bound
// as parameters, never interpolated.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case AtLeast:
		return compileAtLeast(pred)
	case *AtLeast:
		return compileAtLeast(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	if !slices.Contains(filterColumns, eq.Field) {
		return "", nil, fmt.Errorf("unknown field %q: must be one of %s", eq.Field, strings.Join(filterColumns, ", "))
	}
	param, err := valueToParam(eq.Field, eq.Value)
	if err != nil {
		return "", nil, err
	}
	return "p." + eq.Field + " = ?", []any{param}, nil
}

func compileAtLeast(a AtLeast) (string, []any, error) {
	if a.Level == safety.Unknown {
		return "1 = 1", nil, nil
	}
	var params []any
	for _, l := range []safety.Level{safety.Safe, safety.DoNotLog, safety.Unsafe} {
		if safety.Allows(l, a.Level) {
			params = append(params, l.String())
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return "p.level IN (" + placeholders + ")", params, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// valueToParam converts a literal to the column's stored form.
func valueToParam(field string, v ir.Value) (any, error) {
	switch field {
	case "applied":
		b, ok := v.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("field applied takes a boolean, got %T", v)
		}
		return boolInt(bool(b)), nil
	case "existing", "level":
		s, ok := v.(ir.Str)
		if !ok {
			return nil, fmt.Errorf("field %s takes a level name, got %T", field, v)
		}
		l, err := safety.Parse(string(s))
		if err != nil {
			return nil, err
		}
		return l.String(), nil
	default:
		s, ok := v.(ir.Str)
		if !ok {
			return nil, fmt.Errorf("field %s takes a string, got %T", field, v)
		}
		return string(s), nil
	}
}

// ParseFilter builds a predicate from "field=value" and "level>=LEVEL"
// expressions, all of which must hold.
func ParseFilter(exprs []string) (Predicate, error) {
	and := And{}
	for _, expr := range exprs {
		if field, value, ok := strings.Cut(expr, ">="); ok {
			if strings.TrimSpace(field) != "level" {
				return nil, fmt.Errorf("filter %q: >= only applies to level", expr)
			}
			l, err := safety.Parse(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", expr, err)
			}
			and.Predicates = append(and.Predicates, AtLeast{Level: l})
			continue
		}

		field, value, ok := strings.Cut(expr, "=")
		if !ok {
			return nil, fmt.Errorf("filter %q: expected field=value or level>=LEVEL", expr)
		}
		field, value = strings.TrimSpace(field), strings.TrimSpace(value)
		var v ir.Value = ir.Str(value)
		if field == "applied" {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("filter %q: %w", expr, err)
			}
			v = ir.Bool(b)
		}
		eq := Equals{Field: field, Value: v}
		if _, _, err := compileEquals(eq); err != nil {
			return nil, fmt.Errorf("filter %q: %w", expr, err)
		}
		and.Predicates = append(and.Predicates, eq)
	}
	return and, nil
}
