package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// Validation error codes (E100-E199)
const (
	ErrConflictingSafety = "E101" // more than one safety label on a declaration
	ErrAbstractWithBody  = "E102" // abstract method declares a body
	ErrVoidReturnsValue  = "E103" // void method returns a value
	ErrDuplicateMethod   = "E104" // same signature declared twice in a type
	ErrPermitsNotSealed  = "E105" // permits given on a type that is not sealed
	ErrPermitsNotSubtype = "E106" // permitted type does not extend the sealed type
)

// ValidationError represents a semantic problem in a compiled program.
type ValidationError struct {
	Unit    string `json:"unit"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] %s:%d: %s: %s", e.Code, e.Unit, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Unit, e.Field, e.Message)
}

// Validate checks a linked program for declarations a Java compiler would
// reject or that make safety labels ambiguous. Returns all errors found
// (does not fail-fast).
func Validate(prog *ir.Program, labels safety.Labels) []ValidationError {
	v := &validator{labels: labels, idx: ir.NewIndex(prog)}
	for _, u := range prog.Units {
		u.WalkTypes(func(t *ir.TypeDecl) bool {
			v.validateType(u, t)
			return true
		})
	}
	return v.errs
}

type validator struct {
	labels safety.Labels
	idx    *ir.Index
	errs   []ValidationError
}

func (v *validator) add(u *ir.Unit, offset int, field, code, format string, args ...any) {
	e := ValidationError{Unit: u.Path, Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
	if u.Source != "" && offset > 0 {
		e.Line = strings.Count(u.Source[:min(offset, len(u.Source))], "\n") + 1
	}
	v.errs = append(v.errs, e)
}

func (v *validator) validateType(u *ir.Unit, t *ir.TypeDecl) {
	v.checkLabels(u, t.Span.Start, t.Name, t.Annotations)

	if len(t.Permits) > 0 {
		if !t.HasModifier(ir.ModSealed) {
			v.add(u, t.Span.Start, t.Name+".permits", ErrPermitsNotSealed,
				"%s lists permitted subtypes but is not sealed", t.Name)
		}
		for _, p := range t.Permits {
			sub := v.idx.Type(p)
			if sub == nil {
				continue
			}
			extends := slices.ContainsFunc(sub.Supertypes, func(r ir.TypeRef) bool { return r.Name == t.Name })
			if !extends {
				v.add(u, t.Span.Start, t.Name+".permits", ErrPermitsNotSubtype,
					"permitted type %s does not extend %s", p, t.Name)
			}
		}
	}

	seen := make(map[string]bool, len(t.Methods))
	for _, m := range t.Methods {
		if seen[m.ID] {
			v.add(u, m.Span.Start, m.ID, ErrDuplicateMethod, "duplicate method %s", m.ID)
		}
		seen[m.ID] = true

		v.checkLabels(u, m.Span.Start, m.ID, m.Annotations)
		v.checkLabels(u, m.Span.Start, m.ID+".returns", m.Returns.Annotations)
		if m.HasModifier(ir.ModAbstract) && m.HasBody {
			v.add(u, m.Span.Start, m.ID, ErrAbstractWithBody, "abstract method has a body")
		}
		if m.IsVoid() && returnsValue(m.Body, m.ID) {
			v.add(u, m.Span.Start, m.ID, ErrVoidReturnsValue, "void method returns a value")
		}
	}
}

func (v *validator) checkLabels(u *ir.Unit, offset int, field string, anns []ir.Annotation) {
	var found []string
	for _, a := range anns {
		if level, ok := v.labels.Match(a.Name); ok {
			found = append(found, level.String())
		}
	}
	if len(found) > 1 {
		v.add(u, offset, field, ErrConflictingSafety,
			"conflicting safety annotations: %s", strings.Join(found, ", "))
	}
}

// returnsValue reports whether a return with a value belongs to scope.
func returnsValue(stmts []ir.Stmt, scope string) bool {
	for _, s := range stmts {
		if s.Kind == ir.StmtReturn && s.Expr != nil && s.Scope == scope {
			return true
		}
		if s.Kind == ir.StmtBlock && returnsValue(s.Body, scope) {
			return true
		}
	}
	return false
}
