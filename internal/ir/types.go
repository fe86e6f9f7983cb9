package ir

import "strings"

// Span is a half-open byte range [Start, End) in a unit's source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the span was located in source.
func (s Span) Valid() bool {
	return s.End > s.Start && s.Start >= 0
}

// Contains reports whether offset falls strictly inside the span.
func (s Span) Contains(offset int) bool {
	return offset > s.Start && offset < s.End
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Program is the resolved declaration graph of one analysis pass.
type Program struct {
	Units []*Unit `json:"units"`
}

// Unit is one compilation unit (source file).
type Unit struct {
	Path       string      `json:"path"`
	Package    string      `json:"package,omitempty"`
	Test       bool        `json:"test,omitempty"`
	Source     string      `json:"source,omitempty"`
	SourceFile string      `json:"source_file,omitempty"` // on-disk file the source was read from
	Types      []*TypeDecl `json:"types"`
}

// TypeKind is the syntactic kind of a type declaration.
type TypeKind string

const (
	KindClass      TypeKind = "class"
	KindInterface  TypeKind = "interface"
	KindRecord     TypeKind = "record"
	KindEnum       TypeKind = "enum"
	KindAnnotation TypeKind = "annotation"
)

// ValidTypeKinds lists the accepted kinds.
var ValidTypeKinds = map[TypeKind]bool{
	KindClass:      true,
	KindInterface:  true,
	KindRecord:     true,
	KindEnum:       true,
	KindAnnotation: true,
}

// Modifier keywords the engine inspects.
const (
	ModAbstract = "abstract"
	ModStatic   = "static"
	ModDefault  = "default"
	ModPrivate  = "private"
	ModFinal    = "final"
	ModSealed   = "sealed"
)

// Annotation is one annotation use on a declaration or type reference.
type Annotation struct {
	Name string `json:"name"`
	Args Object `json:"args,omitempty"`
	Span Span   `json:"span,omitzero"`
}

// Symbol is anything that can carry annotations.
type Symbol interface {
	SymbolID() string
	SymbolAnnotations() []Annotation
}

// TypeRef is a use of a type: a return type, parameter type, supertype, etc.
type TypeRef struct {
	Name        string       `json:"name"`
	Args        []TypeRef    `json:"args,omitempty"`
	Array       bool         `json:"array,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// IsVoid reports whether the reference denotes no value.
func (t TypeRef) IsVoid() bool {
	return t.Name == "" || t.Name == "void" || t.Name == "java.lang.Void"
}

// String renders the reference in source-like form.
func (t TypeRef) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	if t.Array {
		b.WriteString("[]")
	}
	return b.String()
}

// TypeDecl is a class, interface, record, enum or annotation type.
type TypeDecl struct {
	Name        string             `json:"name"` // qualified
	SimpleName  string             `json:"simple_name"`
	Kind        TypeKind           `json:"kind"`
	Anonymous   bool               `json:"anonymous,omitempty"`
	Modifiers   []string           `json:"modifiers,omitempty"`
	Annotations []Annotation       `json:"annotations,omitempty"`
	Supertypes  []TypeRef          `json:"supertypes,omitempty"` // superclass first, then interfaces
	Permits     []string           `json:"permits,omitempty"`
	Components  []*RecordComponent `json:"components,omitempty"`
	Fields      []*FieldDecl       `json:"fields,omitempty"`
	Methods     []*MethodDecl      `json:"methods,omitempty"`
	Nested      []*TypeDecl        `json:"nested,omitempty"`

	// Start is where an annotation inserted on this declaration goes:
	// before its first annotation or modifier.
	Start int  `json:"start"`
	Span  Span `json:"span,omitzero"` // the located header text

	Unit      *Unit     `json:"-"`
	Enclosing *TypeDecl `json:"-"`
}

// SymbolID implements Symbol.
func (t *TypeDecl) SymbolID() string { return t.Name }

// SymbolAnnotations implements Symbol.
func (t *TypeDecl) SymbolAnnotations() []Annotation { return t.Annotations }

// HasModifier reports whether mod is present.
func (t *TypeDecl) HasModifier(mod string) bool { return hasModifier(t.Modifiers, mod) }

// Method returns the first declared method with the given name and arity.
func (t *TypeDecl) Method(name string, arity int) *MethodDecl {
	for _, m := range t.Methods {
		if m.Name == name && len(m.Params) == arity {
			return m
		}
	}
	return nil
}

// MethodDecl is a method or constructor.
type MethodDecl struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Modifiers   []string     `json:"modifiers,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Params      []*Param     `json:"params,omitempty"`
	Returns     TypeRef      `json:"returns"`
	HasBody     bool         `json:"has_body,omitempty"`
	Body        []Stmt       `json:"body,omitempty"`
	Synthetic   bool         `json:"synthetic,omitempty"`
	Constructor bool         `json:"constructor,omitempty"`

	Start int  `json:"start"`
	Span  Span `json:"span,omitzero"`

	Owner *TypeDecl `json:"-"`
}

// SymbolID implements Symbol.
func (m *MethodDecl) SymbolID() string { return m.ID }

// SymbolAnnotations implements Symbol.
func (m *MethodDecl) SymbolAnnotations() []Annotation { return m.Annotations }

// HasModifier reports whether mod is present.
func (m *MethodDecl) HasModifier(mod string) bool { return hasModifier(m.Modifiers, mod) }

// IsVoid reports whether the method returns nothing.
func (m *MethodDecl) IsVoid() bool { return m.Constructor || m.Returns.IsVoid() }

// IsStatic reports whether the method is static.
func (m *MethodDecl) IsStatic() bool { return m.HasModifier(ModStatic) }

// IsAbstract reports whether the method has no implementation.
// Interface methods without a body that are neither static, default nor
// private are implicitly abstract.
func (m *MethodDecl) IsAbstract() bool {
	if m.HasModifier(ModAbstract) {
		return true
	}
	if m.Owner != nil && m.Owner.Kind == KindInterface && !m.HasBody {
		return !m.IsStatic() && !m.HasModifier(ModDefault) && !m.HasModifier(ModPrivate)
	}
	return false
}

// Param is a method parameter.
type Param struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        TypeRef      `json:"type"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// SymbolID implements Symbol.
func (p *Param) SymbolID() string { return p.ID }

// SymbolAnnotations implements Symbol.
func (p *Param) SymbolAnnotations() []Annotation { return p.Annotations }

// FieldDecl is a field of a class.
type FieldDecl struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        TypeRef      `json:"type"`
	Modifiers   []string     `json:"modifiers,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// SymbolID implements Symbol.
func (f *FieldDecl) SymbolID() string { return f.ID }

// SymbolAnnotations implements Symbol.
func (f *FieldDecl) SymbolAnnotations() []Annotation { return f.Annotations }

// RecordComponent is a constructor-promoted field of a record.
type RecordComponent struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        TypeRef      `json:"type"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// SymbolID implements Symbol.
func (c *RecordComponent) SymbolID() string { return c.ID }

// SymbolAnnotations implements Symbol.
func (c *RecordComponent) SymbolAnnotations() []Annotation { return c.Annotations }

func hasModifier(mods []string, mod string) bool {
	for _, m := range mods {
		if m == mod {
			return true
		}
	}
	return false
}
