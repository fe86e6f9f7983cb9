// Package oracle answers read-only questions about a linked program: which
// safety labels a declaration carries, how types relate, and which members
// a value-object generator turns into logical fields.
//
// Nothing here mutates the program. A Graph may be shared by any number of
// goroutines once built.
package oracle

import (
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// Oracle is the engine's only view of the program.
type Oracle interface {
	// ExplicitSafety is the join of safety labels written on sym,
	// Unknown when there are none.
	ExplicitSafety(sym ir.Symbol) safety.Level

	// Supertypes returns the direct superclass and interfaces of t that are
	// declared in the program, superclass first.
	Supertypes(t *ir.TypeDecl) []*ir.TypeDecl

	// KnownSubtypes returns subtypes registered through polymorphic
	// serialization metadata (including a default implementation) or a
	// sealed permits clause.
	KnownSubtypes(t *ir.TypeDecl) []*ir.TypeDecl

	IsRecord(t *ir.TypeDecl) bool
	IsGeneratedValueObject(t *ir.TypeDecl) bool
	RecordComponents(t *ir.TypeDecl) []*ir.RecordComponent

	// IsAccessorCandidate reports whether the value-object generator treats
	// m as a logical field.
	IsAccessorCandidate(m *ir.MethodDecl) bool

	IsRedacted(sym ir.Symbol) bool
	IsSerializationVisible(sym ir.Symbol) bool

	// StringConversionMethod resolves toString() on t, inherited or not.
	StringConversionMethod(t *ir.TypeDecl) *ir.MethodDecl

	IsTestCode(u *ir.Unit) bool

	// TypeSafety is the safety of values of a referenced type.
	TypeSafety(ref ir.TypeRef) safety.Level

	// ExpressionSafety is the safety of the value an expression produces.
	ExpressionSafety(e ir.Expr) safety.Level
}
