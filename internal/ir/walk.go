package ir

// WalkTypes calls fn for every type declaration in the unit in source order:
// top-level types, nested member types, and classes declared inside method
// bodies (local and anonymous). Returning false from fn skips that type's
// members but continues with its siblings.
func (u *Unit) WalkTypes(fn func(*TypeDecl) bool) {
	for _, t := range u.Types {
		walkType(t, fn)
	}
}

func walkType(t *TypeDecl, fn func(*TypeDecl) bool) {
	if !fn(t) {
		return
	}
	for _, n := range t.Nested {
		walkType(n, fn)
	}
	for _, m := range t.Methods {
		walkStmtTypes(m.Body, fn)
	}
}

func walkStmtTypes(stmts []Stmt, fn func(*TypeDecl) bool) {
	for i := range stmts {
		s := &stmts[i]
		if s.Decl != nil {
			walkType(s.Decl, fn)
		}
		walkStmtTypes(s.Body, fn)
	}
}

// Methods returns every method declared in the unit, in WalkTypes order.
func (u *Unit) Methods() []*MethodDecl {
	var out []*MethodDecl
	u.WalkTypes(func(t *TypeDecl) bool {
		out = append(out, t.Methods...)
		return true
	})
	return out
}

// AllTypes returns every type declared in the program.
func (p *Program) AllTypes() []*TypeDecl {
	var out []*TypeDecl
	for _, u := range p.Units {
		u.WalkTypes(func(t *TypeDecl) bool {
			out = append(out, t)
			return true
		})
	}
	return out
}

// Unit returns the unit with the given path, or nil.
func (p *Program) Unit(path string) *Unit {
	for _, u := range p.Units {
		if u.Path == path {
			return u
		}
	}
	return nil
}
