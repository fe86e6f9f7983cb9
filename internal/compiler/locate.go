package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/safeprop/internal/ir"
)

// locate finds every declaration header and annotation of the unit in its
// source text. Members are searched after their owner's header, each member
// list with its own cursor, so the document does not need to interleave
// methods and nested types in source order.
func (uc *unitState) locate() error {
	l := &locator{src: uc.unit.Source, unit: uc.unit.Path, uc: uc}
	cursor := 0
	for _, t := range uc.unit.Types {
		end, err := l.locateType(t, cursor)
		if err != nil {
			return err
		}
		cursor = end
	}
	return nil
}

type locator struct {
	src  string
	unit string
	uc   *unitState
}

// locateType locates t at or after from and returns the offset following
// its header.
func (l *locator) locateType(t *ir.TypeDecl, from int) (int, error) {
	at := l.uc.typeAt[t]
	end := from
	if at != "" {
		span, ok := l.find(at, from, false)
		if !ok {
			return 0, &LocateError{Unit: l.unit, Decl: t.Name, Message: fmt.Sprintf("declaration text %q not found", at)}
		}
		if err := l.attach(t.Name, span, &t.Start, &t.Span, t.Annotations); err != nil {
			return 0, err
		}
		end = span.End
	}

	cursor := end
	for _, m := range t.Methods {
		next, err := l.locateMethod(m, cursor)
		if err != nil {
			return 0, err
		}
		cursor = next
	}
	cursor = end
	for _, n := range t.Nested {
		next, err := l.locateType(n, cursor)
		if err != nil {
			return 0, err
		}
		cursor = next
	}
	return end, nil
}

func (l *locator) locateMethod(m *ir.MethodDecl, from int) (int, error) {
	at := l.uc.methodAt[m]
	guessed := at == ""
	if guessed {
		at = m.Name + "("
	}
	span, ok := l.find(at, from, guessed)
	if !ok {
		if m.Synthetic {
			return from, nil
		}
		return 0, &LocateError{Unit: l.unit, Decl: m.ID, Message: fmt.Sprintf("declaration text %q not found", at)}
	}
	if err := l.attach(m.ID, span, &m.Start, &m.Span, m.Annotations); err != nil {
		return 0, err
	}

	cursor := span.End
	var err error
	walkDecls(m.Body, func(d *ir.TypeDecl) bool {
		if err != nil {
			return false
		}
		cursor, err = l.locateType(d, cursor)
		return err == nil
	})
	if err != nil {
		return 0, err
	}
	return span.End, nil
}

// walkDecls visits type declarations appearing directly in a body, without
// descending into them.
func walkDecls(stmts []ir.Stmt, fn func(*ir.TypeDecl) bool) bool {
	for i := range stmts {
		if d := stmts[i].Decl; d != nil && !fn(d) {
			return false
		}
		if !walkDecls(stmts[i].Body, fn) {
			return false
		}
	}
	return true
}

// attach records the header span, the insertion point and the annotation
// spans of one declaration.
func (l *locator) attach(decl string, header ir.Span, start *int, span *ir.Span, anns []ir.Annotation) error {
	*span = header
	*start = l.declStart(header.Start)

	cursor := *start
	for i := range anns {
		a := &anns[i]
		s, ok := l.findAnnotation(a.Name, cursor, header.Start)
		if !ok {
			return &LocateError{Unit: l.unit, Decl: decl, Message: fmt.Sprintf("annotation @%s not found before %q", a.Name, l.src[header.Start:header.End])}
		}
		a.Span = s
		cursor = s.End
	}
	return nil
}

// find returns the first word-aligned occurrence of at at or after from.
// When guessing a method header from its name, occurrences that are calls
// (preceded by '.', '(', an operator, or a statement keyword) are skipped.
func (l *locator) find(at string, from int, guessing bool) (ir.Span, bool) {
	for pos := from; pos <= len(l.src); {
		i := strings.Index(l.src[pos:], at)
		if i < 0 {
			return ir.Span{}, false
		}
		start := pos + i
		end := start + len(at)
		pos = start + 1
		if isIdent(at[0]) && start > 0 && isIdent(l.src[start-1]) {
			continue
		}
		if isIdent(at[len(at)-1]) && end < len(l.src) && isIdent(l.src[end]) {
			continue
		}
		if guessing && !l.looksLikeHeader(start) {
			continue
		}
		return ir.Span{Start: start, End: end}, true
	}
	return ir.Span{}, false
}

var statementWords = map[string]bool{
	"return": true, "new": true, "throw": true, "else": true,
	"case": true, "yield": true, "assert": true,
}

// looksLikeHeader reports whether the text before pos ends in a type, as in
// "String name(" or "List<T> name(" or "byte[] name(".
func (l *locator) looksLikeHeader(pos int) bool {
	i := pos - 1
	for i >= 0 && isSpace(l.src[i]) {
		i--
	}
	if i < 0 {
		return false
	}
	c := l.src[i]
	if c == '>' || c == ']' {
		return true
	}
	if !isIdent(c) {
		return false
	}
	j := i
	for j >= 0 && isIdent(l.src[j]) {
		j--
	}
	return !statementWords[l.src[j+1:i+1]]
}

// declStart scans back from a header to the end of the previous statement
// or member (a ';', '{' or '}' outside parentheses), then forward past
// whitespace and comments. The result is where modifiers and annotations of
// the declaration begin.
func (l *locator) declStart(header int) int {
	lo := 0
	depth := 0
scan:
	for i := header - 1; i >= 0; i-- {
		switch l.src[i] {
		case ')':
			depth++
		case '(':
			depth--
		case ';', '{', '}':
			if depth <= 0 {
				lo = i + 1
				break scan
			}
		}
	}

	i := lo
	for i < header {
		switch {
		case isSpace(l.src[i]):
			i++
		case strings.HasPrefix(l.src[i:], "//"):
			nl := strings.IndexByte(l.src[i:], '\n')
			if nl < 0 || i+nl >= header {
				return header
			}
			i += nl + 1
		case strings.HasPrefix(l.src[i:], "/*"):
			end := strings.Index(l.src[i+2:], "*/")
			if end < 0 || i+2+end+2 > header {
				return header
			}
			i += 2 + end + 2
		default:
			return i
		}
	}
	return header
}

// findAnnotation locates "@name" (or "@SimpleName") in [lo, hi), including
// a parenthesized argument list.
func (l *locator) findAnnotation(name string, lo, hi int) (ir.Span, bool) {
	// also try progressively shorter qualifications: a.b.C.D, b.C.D, C.D, D
	candidates := []string{name}
	for rest := name; ; {
		dot := strings.IndexByte(rest, '.')
		if dot < 0 {
			break
		}
		rest = rest[dot+1:]
		candidates = append(candidates, rest)
	}
	for _, c := range candidates {
		if s, ok := l.findToken("@"+c, lo, hi); ok {
			return s, true
		}
	}
	return ir.Span{}, false
}

func (l *locator) findToken(tok string, lo, hi int) (ir.Span, bool) {
	for pos := lo; pos < hi; {
		i := strings.Index(l.src[pos:hi], tok)
		if i < 0 {
			return ir.Span{}, false
		}
		start := pos + i
		end := start + len(tok)
		pos = start + 1
		if end < len(l.src) && (isIdent(l.src[end]) || l.src[end] == '.') {
			continue
		}
		// optional argument list, possibly after whitespace
		j := end
		for j < hi && isSpace(l.src[j]) {
			j++
		}
		if j < hi && l.src[j] == '(' {
			if close := matchParen(l.src, j); close > 0 && close <= hi {
				end = close
			}
		}
		return ir.Span{Start: start, End: end}, true
	}
	return ir.Span{}, false
}

// matchParen returns the offset just past the ')' matching the '(' at
// open, skipping string and char literals. Returns -1 if unbalanced.
func matchParen(src string, open int) int {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '"', '\'':
			q := src[i]
			for i++; i < len(src) && src[i] != q; i++ {
				if src[i] == '\\' {
					i++
				}
			}
		}
	}
	return -1
}

func isIdent(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
