package compiler

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/safeprop/internal/ir"
)

// Option configures a Compiler.
type Option func(*Compiler)

// WithSourceReader sets how a unit's source_file is read. The path is
// passed through as written in the document.
func WithSourceReader(read func(path string) (string, error)) Option {
	return func(c *Compiler) { c.readSource = read }
}

// Compiler turns declaration-graph documents into an ir.Program.
// It is stateless between calls and safe for concurrent use.
type Compiler struct {
	readSource func(path string) (string, error)
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileProgram compiles every unit under the document's "unit" struct,
// links references across units, and checks the type hierarchy.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`unit: "Test.java": { types: [...] }`)
//	prog, err := compiler.New().CompileProgram(v)
func (c *Compiler) CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unitsVal := field(v, "unit")
	if !unitsVal.Exists() {
		return nil, &CompileError{Field: "unit", Message: "at least one unit is required", Pos: v.Pos()}
	}
	iter, err := unitsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	prog := &ir.Program{}
	for iter.Next() {
		u, err := c.CompileUnit(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		prog.Units = append(prog.Units, u)
	}
	if len(prog.Units) == 0 {
		return nil, &CompileError{Field: "unit", Message: "at least one unit is required", Pos: unitsVal.Pos()}
	}
	slices.SortFunc(prog.Units, func(a, b *ir.Unit) int { return strings.Compare(a.Path, b.Path) })

	if err := Link(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// CompileUnit compiles one unit without linking. Spans are located when the
// unit carries source text.
func (c *Compiler) CompileUnit(path string, v cue.Value) (*ir.Unit, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	u := &ir.Unit{Path: path}
	var err error
	if u.Package, err = optString(v, "package"); err != nil {
		return nil, err
	}
	if u.Test, err = optBool(v, "test"); err != nil {
		return nil, err
	}
	if u.Source, err = optString(v, "source"); err != nil {
		return nil, err
	}
	if u.SourceFile, err = optString(v, "source_file"); err != nil {
		return nil, err
	}
	if u.Source == "" && u.SourceFile != "" && c.readSource != nil {
		src, err := c.readSource(u.SourceFile)
		if err != nil {
			return nil, fmt.Errorf("unit %s: read source: %w", path, err)
		}
		u.Source = src
	}

	uc := &unitState{
		unit:     u,
		anon:     make(map[*ir.TypeDecl]int),
		typeAt:   make(map[*ir.TypeDecl]string),
		methodAt: make(map[*ir.MethodDecl]string),
	}
	err = eachElem(v, "types", func(_ int, elem cue.Value) error {
		t, err := uc.compileType(elem, nil, false)
		if err != nil {
			return err
		}
		u.Types = append(u.Types, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if u.Source != "" {
		if err := uc.locate(); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// unitState carries per-unit bookkeeping while compiling.
type unitState struct {
	unit     *ir.Unit
	anon     map[*ir.TypeDecl]int // anonymous class counter per enclosing type
	typeAt   map[*ir.TypeDecl]string
	methodAt map[*ir.MethodDecl]string
	bodies   []*bodyState // methods being compiled, innermost last
}

func (uc *unitState) compileType(v cue.Value, enclosing *ir.TypeDecl, anonymous bool) (*ir.TypeDecl, error) {
	t := &ir.TypeDecl{Unit: uc.unit, Enclosing: enclosing, Anonymous: anonymous}

	if anonymous {
		uc.anon[enclosing]++
		t.Name = fmt.Sprintf("%s$%d", enclosing.Name, uc.anon[enclosing])
	} else {
		simple, err := reqString(v, "name")
		if err != nil {
			return nil, err
		}
		if strings.Contains(simple, ".") {
			return nil, &CompileError{Field: "name", Message: fmt.Sprintf("%q must be a simple name", simple), Pos: v.Pos()}
		}
		t.SimpleName = simple
		switch {
		case enclosing != nil:
			t.Name = enclosing.Name + "." + simple
		case uc.unit.Package != "":
			t.Name = uc.unit.Package + "." + simple
		default:
			t.Name = simple
		}
	}

	kind, err := optString(v, "kind")
	if err != nil {
		return nil, err
	}
	if kind == "" {
		if !anonymous {
			return nil, &CompileError{Field: "kind", Message: fmt.Sprintf("kind is required for %s", t.Name), Pos: v.Pos()}
		}
		kind = string(ir.KindClass)
	}
	if !ir.ValidTypeKinds[ir.TypeKind(kind)] {
		return nil, &CompileError{Field: "kind", Message: fmt.Sprintf("invalid kind %q for %s", kind, t.Name), Pos: field(v, "kind").Pos()}
	}
	t.Kind = ir.TypeKind(kind)

	at, err := optString(v, "at")
	if err != nil {
		return nil, err
	}
	if at == "" && !anonymous {
		at = typeKeyword(t.Kind) + " " + t.SimpleName
	}
	uc.typeAt[t] = at

	if t.Modifiers, err = stringList(v, "modifiers"); err != nil {
		return nil, err
	}
	if t.Annotations, err = compileAnnotations(v, "annotations"); err != nil {
		return nil, err
	}
	err = eachElem(v, "extends", func(i int, elem cue.Value) error {
		ref, err := compileTypeRef(elem, fmt.Sprintf("%s.extends[%d]", t.Name, i))
		if err != nil {
			return err
		}
		t.Supertypes = append(t.Supertypes, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if t.Permits, err = stringList(v, "permits"); err != nil {
		return nil, err
	}

	err = eachElem(v, "components", func(i int, elem cue.Value) error {
		name, ty, anns, err := compileVariable(elem, fmt.Sprintf("%s.components[%d]", t.Name, i))
		if err != nil {
			return err
		}
		t.Components = append(t.Components, &ir.RecordComponent{
			ID: t.Name + "#" + name, Name: name, Type: ty, Annotations: anns,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(t.Components) > 0 && t.Kind != ir.KindRecord {
		return nil, &CompileError{Field: "components", Message: fmt.Sprintf("%s is a %s; only records have components", t.Name, t.Kind), Pos: v.Pos()}
	}

	err = eachElem(v, "fields", func(i int, elem cue.Value) error {
		path := fmt.Sprintf("%s.fields[%d]", t.Name, i)
		name, ty, anns, err := compileVariable(elem, path)
		if err != nil {
			return err
		}
		mods, err := stringList(elem, "modifiers")
		if err != nil {
			return err
		}
		t.Fields = append(t.Fields, &ir.FieldDecl{
			ID: t.Name + "#" + name, Name: name, Type: ty, Modifiers: mods, Annotations: anns,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachElem(v, "methods", func(_ int, elem cue.Value) error {
		m, err := uc.compileMethod(elem, t)
		if err != nil {
			return err
		}
		t.Methods = append(t.Methods, m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachElem(v, "types", func(_ int, elem cue.Value) error {
		n, err := uc.compileType(elem, t, false)
		if err != nil {
			return err
		}
		t.Nested = append(t.Nested, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func typeKeyword(k ir.TypeKind) string {
	if k == ir.KindAnnotation {
		return "@interface"
	}
	return string(k)
}

func (uc *unitState) compileMethod(v cue.Value, owner *ir.TypeDecl) (*ir.MethodDecl, error) {
	name, err := reqString(v, "name")
	if err != nil {
		return nil, err
	}
	m := &ir.MethodDecl{Name: name, Owner: owner}
	path := owner.Name + "." + name

	if m.Modifiers, err = stringList(v, "modifiers"); err != nil {
		return nil, err
	}
	if m.Annotations, err = compileAnnotations(v, "annotations"); err != nil {
		return nil, err
	}
	if m.Synthetic, err = optBool(v, "synthetic"); err != nil {
		return nil, err
	}
	if m.Constructor, err = optBool(v, "constructor"); err != nil {
		return nil, err
	}

	var paramTypes []string
	err = eachElem(v, "params", func(i int, elem cue.Value) error {
		pname, ty, anns, err := compileVariable(elem, fmt.Sprintf("%s.params[%d]", path, i))
		if err != nil {
			return err
		}
		m.Params = append(m.Params, &ir.Param{Name: pname, Type: ty, Annotations: anns})
		paramTypes = append(paramTypes, ty.String())
		return nil
	})
	if err != nil {
		return nil, err
	}

	returns := field(v, "returns")
	if returns.Exists() {
		if m.Returns, err = compileTypeRef(returns, path+".returns"); err != nil {
			return nil, err
		}
	} else if name == owner.SimpleName {
		m.Constructor = true
	}

	m.ID = owner.Name + "#" + name + "(" + strings.Join(paramTypes, ",") + ")"
	for _, p := range m.Params {
		p.ID = m.ID + "/" + p.Name
	}

	at, err := optString(v, "at")
	if err != nil {
		return nil, err
	}
	uc.methodAt[m] = at

	body := field(v, "body")
	if body.Exists() {
		m.HasBody = true
		bs := &bodyState{method: m, scope: m.ID, lambdas: new(int)}
		uc.bodies = append(uc.bodies, bs)
		m.Body, err = uc.compileStmts(body, path+".body", bs)
		uc.bodies = uc.bodies[:len(uc.bodies)-1]
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// compileVariable reads the {name, type, annotations} shape shared by
// parameters, fields and record components.
func compileVariable(v cue.Value, path string) (string, ir.TypeRef, []ir.Annotation, error) {
	name, err := reqString(v, "name")
	if err != nil {
		return "", ir.TypeRef{}, nil, err
	}
	tv := field(v, "type")
	if !tv.Exists() {
		return "", ir.TypeRef{}, nil, &CompileError{Field: path + ".type", Message: "type is required", Pos: v.Pos()}
	}
	ty, err := compileTypeRef(tv, path+".type")
	if err != nil {
		return "", ir.TypeRef{}, nil, err
	}
	anns, err := compileAnnotations(v, "annotations")
	if err != nil {
		return "", ir.TypeRef{}, nil, err
	}
	return name, ty, anns, nil
}

// compileTypeRef accepts either a bare name ("String", "byte[]") or the
// struct form {name, args, array, annotations}.
func compileTypeRef(v cue.Value, path string) (ir.TypeRef, error) {
	if v.IncompleteKind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return ir.TypeRef{}, formatCUEError(err)
		}
		ref := ir.TypeRef{Name: s}
		if strings.HasSuffix(s, "[]") {
			ref = ir.TypeRef{Name: strings.TrimSuffix(s, "[]"), Array: true}
		}
		if strings.ContainsAny(ref.Name, "<>[]") {
			return ir.TypeRef{}, &CompileError{Field: path, Message: fmt.Sprintf("%q: use the struct form for generic or nested array types", s), Pos: v.Pos()}
		}
		return ref, nil
	}

	name, err := reqString(v, "name")
	if err != nil {
		return ir.TypeRef{}, err
	}
	ref := ir.TypeRef{Name: name}
	if ref.Array, err = optBool(v, "array"); err != nil {
		return ir.TypeRef{}, err
	}
	err = eachElem(v, "args", func(i int, elem cue.Value) error {
		arg, err := compileTypeRef(elem, fmt.Sprintf("%s.args[%d]", path, i))
		if err != nil {
			return err
		}
		ref.Args = append(ref.Args, arg)
		return nil
	})
	if err != nil {
		return ir.TypeRef{}, err
	}
	if ref.Annotations, err = compileAnnotations(v, "annotations"); err != nil {
		return ir.TypeRef{}, err
	}
	return ref, nil
}

// compileAnnotations reads a list of annotations; each is a bare name or
// {name, args}.
func compileAnnotations(v cue.Value, name string) ([]ir.Annotation, error) {
	var out []ir.Annotation
	err := eachElem(v, name, func(i int, elem cue.Value) error {
		path := fmt.Sprintf("%s[%d]", name, i)
		if elem.IncompleteKind() == cue.StringKind {
			s, err := elem.String()
			if err != nil {
				return formatCUEError(err)
			}
			out = append(out, ir.Annotation{Name: strings.TrimPrefix(s, "@")})
			return nil
		}
		aname, err := reqString(elem, "name")
		if err != nil {
			return err
		}
		a := ir.Annotation{Name: strings.TrimPrefix(aname, "@")}
		if args := field(elem, "args"); args.Exists() {
			val, err := toIRValue(args, path+".args")
			if err != nil {
				return err
			}
			obj, ok := val.(ir.Object)
			if !ok {
				return &CompileError{Field: path + ".args", Message: "args must be a struct", Pos: args.Pos()}
			}
			a.Args = obj
		}
		out = append(out, a)
		return nil
	})
	return out, err
}
