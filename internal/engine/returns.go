package engine

import (
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/oracle"
	"github.com/roach88/safeprop/internal/safety"
)

// ReturnSafety joins the safety of every value m returns from its own
// scope. found is false when the body has no return with a value, for
// example when every path throws.
//
// Lambdas, anonymous classes and local classes are not entered: their
// returns belong to other methods. A return that is reached but whose scope
// is not m contributes Unknown, never Safe.
func ReturnSafety(o oracle.Oracle, m *ir.MethodDecl) (level safety.Level, found bool) {
	return scanReturns(o, m.ID, m.Body)
}

func scanReturns(o oracle.Oracle, scope string, stmts []ir.Stmt) (safety.Level, bool) {
	level, found := safety.Unknown, false
	for i := range stmts {
		s := &stmts[i]
		var l safety.Level
		var ok bool
		switch s.Kind {
		case ir.StmtReturn:
			l, ok = returnSafety(o, scope, s)
		case ir.StmtBlock:
			l, ok = scanReturns(o, scope, s.Body)
		case ir.StmtLambda, ir.StmtAnonymous, ir.StmtLocalClass:
			continue
		case ir.StmtThrow, ir.StmtExpr:
			continue
		}
		if ok {
			level, found = safety.Join(level, l), true
		}
	}
	return level, found
}

func returnSafety(o oracle.Oracle, scope string, s *ir.Stmt) (safety.Level, bool) {
	if s.Expr == nil {
		return safety.Unknown, false
	}
	if s.Scope != scope {
		return safety.Unknown, true
	}
	return o.ExpressionSafety(*s.Expr), true
}
