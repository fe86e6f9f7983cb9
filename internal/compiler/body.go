package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/safeprop/internal/ir"
)

// bodyState tracks the scope a statement belongs to while compiling a
// method body. Lambdas open a new scope inside the same method.
type bodyState struct {
	method  *ir.MethodDecl
	scope   string
	lambdas *int // shared across the method so lambda IDs are unique
}

var stmtKeys = []string{"return", "throw", "expr", "block", "lambda", "anonymous", "class"}

var exprKeys = []string{"param", "local", "literal", "call", "field", "new", "concat", "cond", "this", "unknown"}

// onlyKey returns the single key of v drawn from keys, ignoring "type" and
// "args" which annotate the expression rather than select its kind.
func onlyKey(v cue.Value, keys []string, path string) (string, cue.Value, error) {
	var found string
	var val cue.Value
	for _, k := range keys {
		f := field(v, k)
		if !f.Exists() {
			continue
		}
		if found != "" {
			return "", cue.Value{}, &CompileError{Field: path, Message: fmt.Sprintf("both %q and %q given", found, k), Pos: v.Pos()}
		}
		found, val = k, f
	}
	if found == "" {
		return "", cue.Value{}, &CompileError{Field: path, Message: fmt.Sprintf("expected one of %v", keys), Pos: v.Pos()}
	}
	return found, val, nil
}

func (uc *unitState) compileStmts(list cue.Value, path string, bs *bodyState) ([]ir.Stmt, error) {
	iter, err := list.List()
	if err != nil {
		return nil, &CompileError{Field: path, Message: "must be a list of statements", Pos: list.Pos()}
	}
	out := []ir.Stmt{}
	for i := 0; iter.Next(); i++ {
		s, err := uc.compileStmt(iter.Value(), fmt.Sprintf("%s[%d]", path, i), bs)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (uc *unitState) compileStmt(v cue.Value, path string, bs *bodyState) (ir.Stmt, error) {
	key, val, err := onlyKey(v, stmtKeys, path)
	if err != nil {
		return ir.Stmt{}, err
	}
	s := ir.Stmt{Scope: bs.scope}

	switch key {
	case "return", "throw", "expr":
		s.Kind = map[string]ir.StmtKind{"return": ir.StmtReturn, "throw": ir.StmtThrow, "expr": ir.StmtExpr}[key]
		if val.IncompleteKind() == cue.NullKind {
			if key != "return" {
				return ir.Stmt{}, &CompileError{Field: path + "." + key, Message: "expression required", Pos: val.Pos()}
			}
			return s, nil
		}
		e, err := uc.compileExpr(val, path+"."+key, bs)
		if err != nil {
			return ir.Stmt{}, err
		}
		s.Expr = &e
	case "block":
		s.Kind = ir.StmtBlock
		if s.Body, err = uc.compileStmts(val, path+".block", bs); err != nil {
			return ir.Stmt{}, err
		}
	case "lambda":
		*bs.lambdas++
		inner := &bodyState{
			method:  bs.method,
			scope:   fmt.Sprintf("%s$lambda%d", bs.method.ID, *bs.lambdas),
			lambdas: bs.lambdas,
		}
		s.Kind = ir.StmtLambda
		s.Scope = inner.scope
		if s.Body, err = uc.compileStmts(val, path+".lambda", inner); err != nil {
			return ir.Stmt{}, err
		}
	case "anonymous":
		s.Kind = ir.StmtAnonymous
		if s.Decl, err = uc.compileType(val, bs.method.Owner, true); err != nil {
			return ir.Stmt{}, err
		}
	case "class":
		s.Kind = ir.StmtLocalClass
		if s.Decl, err = uc.compileType(val, bs.method.Owner, false); err != nil {
			return ir.Stmt{}, err
		}
	}
	return s, nil
}

func (uc *unitState) compileExpr(v cue.Value, path string, bs *bodyState) (ir.Expr, error) {
	key, val, err := onlyKey(v, exprKeys, path)
	if err != nil {
		return ir.Expr{}, err
	}
	e := ir.Expr{Kind: ir.ExprKind(key)}
	str := func() (string, error) {
		s, err := val.String()
		if err != nil {
			return "", &CompileError{Field: path + "." + key, Message: "must be a string", Pos: val.Pos()}
		}
		return s, nil
	}

	switch key {
	case "param":
		name, err := str()
		if err != nil {
			return ir.Expr{}, err
		}
		e.Ref = uc.paramID(name)
	case "local":
		if e.Ref, err = str(); err != nil {
			return ir.Expr{}, err
		}
	case "literal":
		if val.IncompleteKind() != cue.NullKind {
			if e.Literal, err = toIRValue(val, path+".literal"); err != nil {
				return ir.Expr{}, err
			}
		}
	case "call", "field":
		if e.Ref, err = str(); err != nil {
			return ir.Expr{}, err
		}
	case "new":
		ty, err := compileTypeRef(val, path+".new")
		if err != nil {
			return ir.Expr{}, err
		}
		e.Type = &ty
	case "concat", "cond":
		iter, err := val.List()
		if err != nil {
			return ir.Expr{}, &CompileError{Field: path + "." + key, Message: "must be a list", Pos: val.Pos()}
		}
		for i := 0; iter.Next(); i++ {
			arg, err := uc.compileExpr(iter.Value(), fmt.Sprintf("%s.%s[%d]", path, key, i), bs)
			if err != nil {
				return ir.Expr{}, err
			}
			e.Args = append(e.Args, arg)
		}
	}

	if key == "call" {
		err := eachElem(v, "args", func(i int, elem cue.Value) error {
			arg, err := uc.compileExpr(elem, fmt.Sprintf("%s.args[%d]", path, i), bs)
			if err != nil {
				return err
			}
			e.Args = append(e.Args, arg)
			return nil
		})
		if err != nil {
			return ir.Expr{}, err
		}
	}

	if tv := field(v, "type"); tv.Exists() {
		ty, err := compileTypeRef(tv, path+".type")
		if err != nil {
			return ir.Expr{}, err
		}
		e.Type = &ty
	}
	return e, nil
}

// paramID resolves a parameter name against the methods being compiled,
// innermost first, so anonymous and local class bodies see captured
// parameters. Unknown names (lambda parameters) resolve to "".
func (uc *unitState) paramID(name string) string {
	for i := len(uc.bodies) - 1; i >= 0; i-- {
		for _, p := range uc.bodies[i].method.Params {
			if p.Name == name {
				return p.ID
			}
		}
	}
	return ""
}
