package engine

import (
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/oracle"
	"github.com/roach88/safeprop/internal/safety"
)

// maxHierarchyDepth bounds supertype walks. Linked programs are acyclic, so
// the bound only matters for programs built by hand.
const maxHierarchyDepth = 64

// ComputeTypeSafety returns the level a consumer could observe through t
// under the strategy for kind. KindSkipped yields Unknown.
func ComputeTypeSafety(o oracle.Oracle, t *ir.TypeDecl, kind DeclarationKind) safety.Level {
	switch kind {
	case KindSkipped:
		return safety.Unknown
	case KindRecord:
		return recordSafety(o, t)
	case KindValueObject:
		return valueObjectSafety(o, t)
	case KindArbitrary:
		return arbitrarySafety(o, t)
	default:
		panic("engine: unhandled declaration kind " + kind.String())
	}
}

// AncestorSafety joins the labels declared on every supertype of t,
// transitively. Library supertypes contribute their known safety.
func AncestorSafety(o oracle.Oracle, t *ir.TypeDecl) safety.Level {
	return ancestorSafety(o, t, map[*ir.TypeDecl]bool{t: true}, 0)
}

func ancestorSafety(o oracle.Oracle, t *ir.TypeDecl, seen map[*ir.TypeDecl]bool, depth int) safety.Level {
	if depth >= maxHierarchyDepth {
		return safety.Unknown
	}
	level := safety.Unknown
	for _, ref := range t.Supertypes {
		level = safety.Join(level, o.TypeSafety(ir.TypeRef{Name: ref.Name}))
	}
	for _, st := range o.Supertypes(t) {
		if seen[st] {
			continue
		}
		seen[st] = true
		level = safety.Join(level, ancestorSafety(o, st, seen, depth+1))
	}
	return level
}

// SubtypeSafety joins the labels declared on the registered subtypes of t.
func SubtypeSafety(o oracle.Oracle, t *ir.TypeDecl) safety.Level {
	level := safety.Unknown
	for _, sub := range o.KnownSubtypes(t) {
		level = safety.Join(level, o.ExplicitSafety(sub))
	}
	return level
}

func recordSafety(o oracle.Oracle, t *ir.TypeDecl) safety.Level {
	level := safety.Join(AncestorSafety(o, t), SubtypeSafety(o, t))
	for _, c := range o.RecordComponents(t) {
		level = safety.Join(level, safety.JoinAssumingUnknownIsSame(o.ExplicitSafety(c), o.TypeSafety(c.Type)))
	}
	return level
}

func arbitrarySafety(o oracle.Oracle, t *ir.TypeDecl) safety.Level {
	var toString safety.Level
	if m := o.StringConversionMethod(t); m != nil {
		toString = o.ExplicitSafety(m)
	}
	return safety.JoinAssumingUnknownIsSame(toString, SubtypeSafety(o, t), AncestorSafety(o, t))
}

func valueObjectSafety(o oracle.Oracle, t *ir.TypeDecl) safety.Level {
	baseline := safety.Join(AncestorSafety(o, t), SubtypeSafety(o, t))
	return safety.Join(baseline, MemberSafety(o, t))
}

// MemberSafety joins the contribution of every accessor the value-object
// generator sees on t and its supertypes.
//
// Whether redacted accessors count depends on how t itself is serialized:
// the generated toString omits them, but a JSON-serialized object writes
// them out. That decision is made once for t and applies to accessors
// inherited from any supertype.
func MemberSafety(o oracle.Oracle, t *ir.TypeDecl) safety.Level {
	return scanMembers(o, t, o.IsSerializationVisible(t), make(map[*ir.TypeDecl]bool), 0)
}

func scanMembers(o oracle.Oracle, t *ir.TypeDecl, serialized bool, seen map[*ir.TypeDecl]bool, depth int) safety.Level {
	if depth >= maxHierarchyDepth || seen[t] {
		return safety.Unknown
	}
	seen[t] = true
	level := safety.Unknown
	for _, m := range t.Methods {
		if !o.IsAccessorCandidate(m) {
			continue
		}
		if c, ok := AccessorSafety(o, m, serialized); ok {
			level = safety.Join(level, c)
		}
	}
	// A shared ancestor is scanned once; Join is idempotent, so skipping
	// later paths to it loses nothing.
	for _, st := range o.Supertypes(t) {
		level = safety.JoinAssumingUnknownIsSame(level, scanMembers(o, st, serialized, seen, depth+1))
	}
	return level
}

// AccessorSafety is the contribution of one accessor. ok is false when a
// redacted accessor is left out of the generated string form entirely.
// A redacted accessor that is written out is at least DO_NOT_LOG.
func AccessorSafety(o oracle.Oracle, m *ir.MethodDecl, serialized bool) (level safety.Level, ok bool) {
	redacted := o.IsRedacted(m)
	if redacted && !serialized && !o.IsSerializationVisible(m) {
		return safety.Unknown, false
	}
	level = safety.JoinAssumingUnknownIsSame(o.ExplicitSafety(m), o.TypeSafety(m.Returns))
	if redacted && (level == safety.Unknown || level == safety.Safe) {
		level = safety.DoNotLog
	}
	return level, true
}
