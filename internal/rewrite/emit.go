package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/safeprop/internal/engine"
	"github.com/roach88/safeprop/internal/ir"
	"github.com/roach88/safeprop/internal/safety"
)

// Edit annotates one declaration.
type Edit struct {
	Unit    string    `json:"unit"`
	Target  string    `json:"target"`
	Decl    ir.Span   `json:"decl"`              // located declaration header
	Removed []ir.Span `json:"removed,omitempty"` // existing safety annotations
	Label   string    `json:"label"`             // qualified annotation inserted
	Insert  string    `json:"insert"`            // text inserted at At
	At      int       `json:"at"`

	// Import is set when the unit cannot refer to Label by its simple name.
	Import string `json:"import,omitempty"`
}

// Emitter builds edits using a fixed label table.
type Emitter struct {
	labels safety.Labels
}

// NewEmitter creates an Emitter. Empty labels fall back to the defaults.
func NewEmitter(labels safety.Labels) *Emitter {
	return &Emitter{labels: labels.WithDefaults()}
}

// Emit builds the edit for f in u.
func (e *Emitter) Emit(u *ir.Unit, f engine.Finding) (Edit, error) {
	label := e.labels.Name(f.Level)
	if label == "" {
		return Edit{}, fmt.Errorf("rewrite: no label for level %s", f.Level)
	}
	if u.Source == "" {
		return Edit{}, &ApplyError{Code: ErrCodeNoSource, Message: "unit has no source text", Unit: u.Path}
	}

	var start int
	var header ir.Span
	var anns []ir.Annotation
	var typeDecl bool
	switch {
	case f.Method != nil:
		start, header, anns = f.Method.Start, f.Method.Span, f.Method.Annotations
	case f.Type != nil:
		start, header, anns, typeDecl = f.Type.Start, f.Type.Span, f.Type.Annotations, true
	default:
		return Edit{}, fmt.Errorf("rewrite: finding %s has no declaration", f.Target)
	}
	if !header.Valid() || header.End > len(u.Source) {
		return Edit{}, &ApplyError{Code: ErrCodeNoSource, Message: fmt.Sprintf("%s was not located in source", f.Target), Unit: u.Path}
	}

	ed := Edit{Unit: u.Path, Target: f.Target, Decl: header, Label: label, At: start}
	for _, a := range anns {
		if _, ok := e.labels.Match(a.Name); ok && a.Span.Valid() {
			ed.Removed = append(ed.Removed, removalSpan(u.Source, a.Span))
		}
	}

	name := label
	if canUseSimpleName(u, label) {
		name = safety.SimpleName(label)
	} else if !declaresSimpleName(u, safety.SimpleName(label)) {
		ed.Import = label
		name = safety.SimpleName(label)
	}

	sep := " "
	if typeDecl || annotationThenNewline(u.Source, start) {
		sep = "\n" + lineIndent(u.Source, start)
	}
	ed.Insert = "@" + name + sep
	return ed, nil
}

// removalSpan widens an annotation span over the blanks that follow it.
// When the annotation ends its line, the newline and the next line's
// indentation go too, so the declaration keeps its own indentation.
func removalSpan(src string, s ir.Span) ir.Span {
	end := skipBlanks(src, s.End)
	switch {
	case strings.HasPrefix(src[end:], "\r\n"):
		end = skipBlanks(src, end+2)
	case strings.HasPrefix(src[end:], "\n"):
		end = skipBlanks(src, end+1)
	}
	return ir.Span{Start: s.Start, End: end}
}

func skipBlanks(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	return i
}

// annotationThenNewline reports whether the text at i is an annotation
// alone on its line.
func annotationThenNewline(src string, i int) bool {
	if i >= len(src) || src[i] != '@' {
		return false
	}
	j := i + 1
	for j < len(src) && (isIdent(src[j]) || src[j] == '.') {
		j++
	}
	j = skipBlanks(src, j)
	if j < len(src) && src[j] == '(' {
		j = closeParen(src, j)
		j = skipBlanks(src, j)
	}
	return j < len(src) && (src[j] == '\n' || src[j] == '\r')
}

// closeParen returns the offset after the parenthesis matching src[open].
func closeParen(src string, open int) int {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '"':
			for i++; i < len(src) && src[i] != '"'; i++ {
				if src[i] == '\\' {
					i++
				}
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(src)
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// lineIndent returns the leading whitespace of the line containing i.
func lineIndent(src string, i int) string {
	ls := strings.LastIndexByte(src[:i], '\n') + 1
	end := skipBlanks(src, ls)
	return src[ls:end]
}

// canUseSimpleName reports whether the unit already imports the label or
// shares its package.
func canUseSimpleName(u *ir.Unit, qualified string) bool {
	dot := strings.LastIndexByte(qualified, '.')
	if dot < 0 {
		return true
	}
	pkg := qualified[:dot]
	if u.Package == pkg {
		return true
	}
	for _, imp := range imports(u.Source) {
		if imp == qualified || imp == pkg+".*" {
			return true
		}
	}
	return false
}

// declaresSimpleName reports whether importing a label would clash with a
// type of the same simple name declared or imported in the unit.
func declaresSimpleName(u *ir.Unit, simple string) bool {
	clash := false
	u.WalkTypes(func(t *ir.TypeDecl) bool {
		if t.SimpleName == simple {
			clash = true
		}
		return !clash
	})
	if clash {
		return true
	}
	for _, imp := range imports(u.Source) {
		if strings.HasSuffix(imp, "."+simple) {
			return true
		}
	}
	return false
}

// importDecl matches a single-type or on-demand import; static imports are
// not type imports and are skipped.
var importDecl = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+(?:\.\*)?)\s*;`)

// imports lists the names imported by src.
func imports(src string) []string {
	var out []string
	for _, m := range importDecl.FindAllStringSubmatch(src, -1) {
		out = append(out, m[1])
	}
	return out
}
