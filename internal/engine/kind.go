package engine

import (
	"fmt"

	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/oracle"
)

// DeclarationKind selects the strategy that computes a type's safety.
type DeclarationKind int

const (
	// KindSkipped types are never annotated. Anonymous classes have no
	// declaration site to annotate.
	KindSkipped DeclarationKind = iota
	KindRecord
	KindValueObject
	KindArbitrary
)

func (k DeclarationKind) String() string {
	switch k {
	case KindSkipped:
		return "skipped"
	case KindRecord:
		return "record"
	case KindValueObject:
		return "value_object"
	case KindArbitrary:
		return "arbitrary"
	default:
		return fmt.Sprintf("DeclarationKind(%d)", int(k))
	}
}

// Classify picks the strategy for t. Records take precedence over the
// value-object marker: a record's components are its fields whether or not
// a generator also runs over it.
func Classify(o oracle.Oracle, t *ir.TypeDecl) DeclarationKind {
	switch {
	case t.Anonymous:
		return KindSkipped
	case o.IsRecord(t):
		return KindRecord
	case o.IsGeneratedValueObject(t):
		return KindValueObject
	default:
		return KindArbitrary
	}
}
