package oracle

import (
	"slices"
	"strings"

	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// metaAnnotationDepth bounds how far annotation-of-annotation chains are
// followed. Annotation types may annotate themselves.
const metaAnnotationDepth = 1

// Option configures a Graph.
type Option func(*Graph)

// WithLabels sets the annotation names recognized as safety labels.
func WithLabels(labels safety.Labels) Option {
	return func(g *Graph) { g.labels = labels.WithDefaults() }
}

// WithKnownTypes classifies types declared outside the program. Keys are
// qualified names; references written with a shorter name still match.
func WithKnownTypes(known map[string]safety.Level) Option {
	return func(g *Graph) { g.known = known }
}

// WithTestPaths sets the path fragments that mark test-only units.
func WithTestPaths(paths []string) Option {
	return func(g *Graph) { g.testPaths = paths }
}

// Graph is the Oracle over a linked ir.Program.
type Graph struct {
	prog      *ir.Program
	idx       *ir.Index
	labels    safety.Labels
	known     map[string]safety.Level
	knownKeys []string
	testPaths []string
}

var _ Oracle = (*Graph)(nil)

// New builds an oracle for prog. The program must already be linked.
func New(prog *ir.Program, opts ...Option) *Graph {
	g := &Graph{
		prog:      prog,
		idx:       ir.NewIndex(prog),
		labels:    safety.DefaultLabels,
		known:     DefaultKnownTypes,
		testPaths: DefaultTestPaths,
	}
	for _, opt := range opts {
		opt(g)
	}
	for k := range g.known {
		g.knownKeys = append(g.knownKeys, k)
	}
	slices.Sort(g.knownKeys)
	return g
}

// Index exposes the declaration index the oracle resolves against.
func (g *Graph) Index() *ir.Index { return g.idx }

// Labels returns the recognized safety labels.
func (g *Graph) Labels() safety.Labels { return g.labels }

func (g *Graph) ExplicitSafety(sym ir.Symbol) safety.Level {
	if sym == nil {
		return safety.Unknown
	}
	return g.annotationSafety(sym.SymbolAnnotations())
}

func (g *Graph) annotationSafety(anns []ir.Annotation) safety.Level {
	level := safety.Unknown
	for _, a := range anns {
		if l, ok := g.labels.Match(a.Name); ok {
			level = safety.Join(level, l)
		}
	}
	return level
}

func (g *Graph) Supertypes(t *ir.TypeDecl) []*ir.TypeDecl {
	var out []*ir.TypeDecl
	for _, st := range t.Supertypes {
		if d := g.idx.Type(st.Name); d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (g *Graph) KnownSubtypes(t *ir.TypeDecl) []*ir.TypeDecl {
	var names []string
	for _, a := range t.Annotations {
		switch {
		case safety.NameMatches(a.Name, jsonSubTypes):
			// value = {@Type(value = X.class), ...}, or the single-element form
			for _, ty := range listOrSingle(a.Args["value"]) {
				if obj, ok := ty.(ir.Object); ok {
					names = append(names, obj.Strings("value")...)
				} else if s, ok := ty.(ir.Str); ok {
					names = append(names, string(s))
				}
			}
		case safety.NameMatches(a.Name, jsonTypeInfo):
			names = append(names, a.Args.Strings("defaultImpl")...)
		}
	}
	names = append(names, t.Permits...)

	var out []*ir.TypeDecl
	for _, n := range names {
		d := g.idx.Resolve(strings.TrimSuffix(n, ".class"), t)
		if d != nil && d != t && !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

func listOrSingle(v ir.Value) []ir.Value {
	switch val := v.(type) {
	case nil:
		return nil
	case ir.List:
		return val
	default:
		return []ir.Value{val}
	}
}

func (g *Graph) IsRecord(t *ir.TypeDecl) bool { return t.Kind == ir.KindRecord }

func (g *Graph) IsGeneratedValueObject(t *ir.TypeDecl) bool {
	return hasAnnotation(t.Annotations, immutable)
}

func (g *Graph) RecordComponents(t *ir.TypeDecl) []*ir.RecordComponent { return t.Components }

func (g *Graph) IsAccessorCandidate(m *ir.MethodDecl) bool {
	if m.Constructor || m.IsVoid() || len(m.Params) > 0 || m.IsStatic() || m.HasModifier(ir.ModPrivate) {
		return false
	}
	return m.IsAbstract() ||
		hasAnyAnnotation(m.Annotations, generatedAccessorMarkers) ||
		(m.Owner != nil && g.DefaultAsDefault(m.Owner)) ||
		g.IsSerializationVisible(m) ||
		isToString(m)
}

// DefaultAsDefault reports whether t's value style turns every default
// method into a field, either directly or through a custom style
// annotation.
func (g *Graph) DefaultAsDefault(t *ir.TypeDecl) bool {
	return g.defaultAsDefault(t.Annotations, t, metaAnnotationDepth)
}

func (g *Graph) defaultAsDefault(anns []ir.Annotation, from *ir.TypeDecl, depth int) bool {
	for _, a := range anns {
		if safety.NameMatches(a.Name, style) {
			return a.Args.Bool("defaultAsDefault")
		}
		if depth > 0 {
			if decl := g.idx.Resolve(a.Name, from); decl != nil && g.defaultAsDefault(decl.Annotations, decl, depth-1) {
				return true
			}
		}
	}
	return false
}

func (g *Graph) IsRedacted(sym ir.Symbol) bool {
	return hasAnnotation(sym.SymbolAnnotations(), redacted)
}

// IsSerializationVisible reports whether sym carries a Jackson annotation
// and is not ignored by Jackson.
func (g *Graph) IsSerializationVisible(sym ir.Symbol) bool {
	anns := sym.SymbolAnnotations()
	return g.hasJacksonAnnotation(anns, scopeOf(sym), metaAnnotationDepth) &&
		!hasAnnotation(anns, jsonIgnore)
}

func (g *Graph) hasJacksonAnnotation(anns []ir.Annotation, from *ir.TypeDecl, depth int) bool {
	for _, a := range anns {
		if safety.NameMatches(a.Name, jacksonAnnotation) {
			return true
		}
		if depth == 0 {
			continue
		}
		if matchesAny(a.Name, jacksonBuiltins) {
			return true
		}
		decl := g.idx.Resolve(a.Name, from)
		if decl == nil {
			// Library annotation we cannot inspect: assume it serializes when
			// it looks like Jackson's rather than drop data from the scan.
			if looksLikeJackson(a.Name) {
				return true
			}
			continue
		}
		if decl.Kind == ir.KindAnnotation && g.hasJacksonAnnotation(decl.Annotations, decl, depth-1) {
			return true
		}
	}
	return false
}

// scopeOf is the type annotation names on sym are resolved from.
func scopeOf(sym ir.Symbol) *ir.TypeDecl {
	switch s := sym.(type) {
	case *ir.TypeDecl:
		return s
	case *ir.MethodDecl:
		return s.Owner
	default:
		return nil
	}
}

func (g *Graph) StringConversionMethod(t *ir.TypeDecl) *ir.MethodDecl {
	visited := make(map[*ir.TypeDecl]bool)
	queue := []*ir.TypeDecl{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, m := range cur.Methods {
			if isToString(m) {
				return m
			}
		}
		queue = append(queue, g.Supertypes(cur)...)
	}
	return nil
}

func isToString(m *ir.MethodDecl) bool {
	return m.Name == "toString" && len(m.Params) == 0 && !m.Constructor && !m.IsStatic() && isStringType(m.Returns)
}

func isStringType(ref ir.TypeRef) bool {
	return !ref.Array && len(ref.Args) == 0 && (ref.Name == "String" || ref.Name == "java.lang.String")
}

func (g *Graph) IsTestCode(u *ir.Unit) bool {
	if u == nil {
		return false
	}
	if u.Test {
		return true
	}
	path := "/" + strings.ReplaceAll(u.Path, "\\", "/")
	for _, frag := range g.testPaths {
		if frag != "" && strings.Contains(path, frag) {
			return true
		}
	}
	return false
}

func (g *Graph) TypeSafety(ref ir.TypeRef) safety.Level {
	level := g.annotationSafety(ref.Annotations)
	if d := g.idx.Type(ref.Name); d != nil {
		level = safety.Join(level, g.ExplicitSafety(d))
	} else {
		level = safety.Join(level, g.knownSafety(ref.Name))
	}
	for _, arg := range ref.Args {
		level = safety.Join(level, g.TypeSafety(arg))
	}
	return level
}

func (g *Graph) knownSafety(name string) safety.Level {
	if l, ok := g.known[name]; ok {
		return l
	}
	for _, k := range g.knownKeys {
		if safety.NameMatches(name, k) {
			return g.known[k]
		}
	}
	return safety.Unknown
}

func hasAnnotation(anns []ir.Annotation, qualified string) bool {
	for _, a := range anns {
		if safety.NameMatches(a.Name, qualified) {
			return true
		}
	}
	return false
}

func hasAnyAnnotation(anns []ir.Annotation, qualified []string) bool {
	for _, a := range anns {
		if matchesAny(a.Name, qualified) {
			return true
		}
	}
	return false
}
