package engine

import (
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// TargetKind distinguishes type findings from method findings.
type TargetKind string

const (
	TargetType   TargetKind = "type"
	TargetMethod TargetKind = "method"
)

// Finding is a proposal to annotate one declaration with Level.
type Finding struct {
	Unit     string       `json:"unit"`
	Target   string       `json:"target"` // qualified type name or method ID
	Kind     TargetKind   `json:"kind"`
	Existing safety.Level `json:"existing"`
	Level    safety.Level `json:"level"`

	Type   *ir.TypeDecl   `json:"-"`
	Method *ir.MethodDecl `json:"-"`
}

func newTypeFinding(u *ir.Unit, t *ir.TypeDecl, d Decision) Finding {
	return Finding{Unit: u.Path, Target: t.Name, Kind: TargetType, Existing: d.Existing, Level: d.Computed, Type: t}
}

func newMethodFinding(u *ir.Unit, m *ir.MethodDecl, d Decision) Finding {
	return Finding{Unit: u.Path, Target: m.ID, Kind: TargetMethod, Existing: d.Existing, Level: d.Computed, Method: m}
}

// Symbol returns the declaration the finding targets.
func (f Finding) Symbol() ir.Symbol {
	if f.Method != nil {
		return f.Method
	}
	return f.Type
}
