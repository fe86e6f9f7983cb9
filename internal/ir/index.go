package ir

import "strings"

// Index maps qualified names to declarations for one program.
// It is built once and read concurrently afterwards.
type Index struct {
	types   map[string]*TypeDecl
	methods map[string]*MethodDecl
	fields  map[string]*FieldDecl
	params  map[string]*Param
}

// NewIndex indexes every declaration reachable from the program.
func NewIndex(p *Program) *Index {
	idx := &Index{
		types:   make(map[string]*TypeDecl),
		methods: make(map[string]*MethodDecl),
		fields:  make(map[string]*FieldDecl),
		params:  make(map[string]*Param),
	}
	for _, t := range p.AllTypes() {
		if _, dup := idx.types[t.Name]; !dup {
			idx.types[t.Name] = t
		}
		for _, m := range t.Methods {
			idx.methods[m.ID] = m
			for _, prm := range m.Params {
				idx.params[prm.ID] = prm
			}
		}
		for _, f := range t.Fields {
			idx.fields[f.ID] = f
		}
	}
	return idx
}

// Type returns the type with exactly this qualified name.
func (x *Index) Type(name string) *TypeDecl { return x.types[name] }

// MethodByID returns the method with this ID.
func (x *Index) MethodByID(id string) *MethodDecl { return x.methods[id] }

// Field returns the field with this ID.
func (x *Index) Field(id string) *FieldDecl { return x.fields[id] }

// Param returns the parameter with this ID.
func (x *Index) Param(id string) *Param { return x.params[id] }

// Resolve looks name up the way a Java compiler would from inside from:
// member types of each enclosing type (innermost first), then the unit's
// package, then the name as written. Generic arguments and array suffixes
// must already be stripped. Returns nil for names declared outside the
// program (library types).
func (x *Index) Resolve(name string, from *TypeDecl) *TypeDecl {
	if name == "" {
		return nil
	}
	for scope := from; scope != nil; scope = scope.Enclosing {
		if t := x.types[scope.Name+"."+name]; t != nil {
			return t
		}
		if t := x.memberOfSupertypes(scope, name, map[*TypeDecl]bool{}, 0); t != nil {
			return t
		}
	}
	if from != nil && from.Unit != nil && from.Unit.Package != "" {
		if t := x.types[from.Unit.Package+"."+name]; t != nil {
			return t
		}
	}
	if t := x.types[name]; t != nil {
		return t
	}
	// A name like "Outer.Inner" written from another unit of the same package
	// is handled above; a simple name declared in another package is not
	// resolvable without imports, so the last resort is a unique suffix match.
	return x.uniqueSuffix(name)
}

// memberOfSupertypes finds inherited member types (interface DnlIface nested
// in a supertype is visible by simple name in subtypes). Each supertype is
// searched once even when reachable along several paths.
func (x *Index) memberOfSupertypes(t *TypeDecl, name string, seen map[*TypeDecl]bool, depth int) *TypeDecl {
	if depth > maxResolveDepth {
		return nil
	}
	for _, st := range t.Supertypes {
		sup := x.types[st.Name]
		if sup == nil || seen[sup] {
			continue
		}
		seen[sup] = true
		if m := x.types[sup.Name+"."+name]; m != nil {
			return m
		}
		if m := x.memberOfSupertypes(sup, name, seen, depth+1); m != nil {
			return m
		}
	}
	return nil
}

const maxResolveDepth = 32

func (x *Index) uniqueSuffix(name string) *TypeDecl {
	var found *TypeDecl
	for qn, t := range x.types {
		if qn == name || strings.HasSuffix(qn, "."+name) {
			if found != nil && found != t {
				return nil
			}
			found = t
		}
	}
	return found
}
