package oracle

import (
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// ExpressionSafety joins what the expression's own form says with the
// safety of its static type. References that did not link to a program
// declaration contribute only their static type.
func (g *Graph) ExpressionSafety(e ir.Expr) safety.Level {
	level := g.exprSafety(e)
	if e.Type != nil {
		level = safety.Join(level, g.TypeSafety(*e.Type))
	}
	return level
}

func (g *Graph) exprSafety(e ir.Expr) safety.Level {
	switch e.Kind {
	case ir.ExprLiteral:
		return safety.Safe
	case ir.ExprParam:
		if p := g.idx.Param(e.Ref); p != nil {
			return safety.Join(g.ExplicitSafety(p), g.TypeSafety(p.Type))
		}
	case ir.ExprCall:
		if m := g.idx.MethodByID(e.Ref); m != nil {
			return g.DeclaredSafety(m)
		}
	case ir.ExprField:
		if f := g.idx.Field(e.Ref); f != nil {
			return safety.Join(g.ExplicitSafety(f), g.TypeSafety(f.Type))
		}
	case ir.ExprNew:
		// static type handled by the caller
	case ir.ExprConcat, ir.ExprCond:
		level := safety.Unknown
		for _, arg := range e.Args {
			level = safety.Join(level, g.ExpressionSafety(arg))
		}
		return level
	case ir.ExprLocal, ir.ExprThis, ir.ExprUnknown:
	}
	return safety.Unknown
}

// DeclaredSafety is what a method's signature promises about its result:
// labels on the method joined with the safety of its return type.
func (g *Graph) DeclaredSafety(m *ir.MethodDecl) safety.Level {
	return safety.JoinAssumingUnknownIsSame(g.ExplicitSafety(m), g.TypeSafety(m.Returns))
}
