package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/safeprop/internal/ir"
)

// Link resolves type references, permitted subtypes, and call and field
// references across the whole program, then rejects cyclic hierarchies.
// Names that do not resolve to a declaration in the program are left as
// written; they denote library types.
func Link(prog *ir.Program) error {
	types := prog.AllTypes()
	seen := make(map[string]bool, len(types))
	for _, t := range types {
		if seen[t.Name] {
			return &LinkError{Path: []string{t.Name}, Message: "duplicate type declaration"}
		}
		seen[t.Name] = true
	}

	lk := &linker{idx: ir.NewIndex(prog)}

	// Supertypes first: member types inherited from supertypes are visible
	// by simple name, so later lookups depend on them.
	for _, t := range types {
		for i := range t.Supertypes {
			lk.typeRef(&t.Supertypes[i], scopeOf(t))
		}
	}

	for _, t := range types {
		for i, p := range t.Permits {
			if d := lk.idx.Resolve(p, t); d != nil {
				t.Permits[i] = d.Name
			}
		}
		for _, c := range t.Components {
			lk.typeRef(&c.Type, t)
		}
		for _, f := range t.Fields {
			lk.typeRef(&f.Type, t)
		}
		for _, m := range t.Methods {
			lk.typeRef(&m.Returns, t)
			for _, p := range m.Params {
				lk.typeRef(&p.Type, t)
			}
			lk.stmts(m.Body, t)
		}
	}

	return checkHierarchy(types)
}

// scopeOf is the scope a type's own extends clause is resolved in: its
// enclosing type, since a type cannot name its own members there.
func scopeOf(t *ir.TypeDecl) *ir.TypeDecl {
	if t.Enclosing != nil {
		return t.Enclosing
	}
	return &ir.TypeDecl{Unit: t.Unit}
}

type linker struct {
	idx *ir.Index
}

func (lk *linker) typeRef(r *ir.TypeRef, from *ir.TypeDecl) {
	if d := lk.idx.Resolve(r.Name, from); d != nil {
		r.Name = d.Name
	}
	for i := range r.Args {
		lk.typeRef(&r.Args[i], from)
	}
}

func (lk *linker) stmts(stmts []ir.Stmt, from *ir.TypeDecl) {
	for i := range stmts {
		s := &stmts[i]
		if s.Expr != nil {
			lk.expr(s.Expr, from)
		}
		lk.stmts(s.Body, from)
	}
}

func (lk *linker) expr(e *ir.Expr, from *ir.TypeDecl) {
	if e.Type != nil {
		lk.typeRef(e.Type, from)
	}
	switch e.Kind {
	case ir.ExprCall:
		if lk.idx.MethodByID(e.Ref) == nil {
			e.Ref = lk.memberRef(e.Ref, from, func(t *ir.TypeDecl, name string) string {
				if m := t.Method(name, len(e.Args)); m != nil {
					return m.ID
				}
				return ""
			})
		}
	case ir.ExprField:
		if lk.idx.Field(e.Ref) == nil {
			e.Ref = lk.memberRef(e.Ref, from, func(t *ir.TypeDecl, name string) string {
				for _, f := range t.Fields {
					if f.Name == name {
						return f.ID
					}
				}
				return ""
			})
		}
	}
	for i := range e.Args {
		lk.expr(&e.Args[i], from)
	}
}

// memberRef resolves "name" or "Type#name" to a member ID using find. An
// explicit type is searched with its ancestors; a bare name also searches
// the enclosing types. Unresolved references keep the qualified type when
// it is known.
func (lk *linker) memberRef(ref string, from *ir.TypeDecl, find func(*ir.TypeDecl, string) string) string {
	typ, name, qualified := strings.Cut(ref, "#")
	if !qualified {
		typ, name = "", ref
	}

	if typ != "" {
		owner := lk.idx.Resolve(typ, from)
		if owner == nil {
			return ref
		}
		if id := lk.inHierarchy(owner, name, find); id != "" {
			return id
		}
		return owner.Name + "#" + name
	}

	for scope := from; scope != nil; scope = scope.Enclosing {
		if id := lk.inHierarchy(scope, name, find); id != "" {
			return id
		}
	}
	return ref
}

func (lk *linker) inHierarchy(t *ir.TypeDecl, name string, find func(*ir.TypeDecl, string) string) string {
	visited := make(map[*ir.TypeDecl]bool)
	queue := []*ir.TypeDecl{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if id := find(cur, name); id != "" {
			return id
		}
		for _, st := range cur.Supertypes {
			if sup := lk.idx.Type(st.Name); sup != nil {
				queue = append(queue, sup)
			}
		}
	}
	return ""
}

// hierarchyGraph maps a type name to the names of its in-program supertypes.
type hierarchyGraph map[string][]string

// checkHierarchy rejects programs in which a type is its own ancestor.
// Such programs cannot come from a real compiler, and every hierarchy walk
// downstream relies on their absence.
func checkHierarchy(types []*ir.TypeDecl) error {
	graph := make(hierarchyGraph, len(types))
	for _, t := range types {
		graph[t.Name] = []string{}
	}
	for _, t := range types {
		for _, st := range t.Supertypes {
			if _, ok := graph[st.Name]; ok {
				graph[t.Name] = append(graph[t.Name], st.Name)
			}
		}
	}

	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || slices.Contains(graph[scc[0]], scc[0]) {
			path := cyclePath(scc, graph)
			return &LinkError{
				Path:    path,
				Message: fmt.Sprintf("cyclic inheritance involving %s", path[0]),
			}
		}
	}
	return nil
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the reported cycle is deterministic.
func tarjanSCC(graph hierarchyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks edges inside the SCC from its first member until it
// returns there.
func cyclePath(scc []string, graph hierarchyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{}
	for cur := start; ; {
		visited[cur] = true
		next := ""
		for _, n := range graph[cur] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		cur = next
	}
}
