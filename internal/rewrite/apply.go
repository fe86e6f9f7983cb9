package rewrite

import (
	"cmp"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/safeprop/internal/ir"
)

// op is one primitive change: an insertion when end < 0, otherwise the
// removal of [pos, end).
type op struct {
	pos, end int
	text     string
	edit     int
}

func (o op) insert() bool { return o.end < 0 }

// Apply applies every edit to src at once. Edits are validated together
// before any text changes: a removal may not overlap another removal, and
// an insertion may not land strictly inside a removed span. An insertion at
// the start of a removal replaces it.
func Apply(src string, edits []Edit) (string, error) {
	var ops []op
	imports := map[string]bool{}
	for i, ed := range edits {
		if ed.At < 0 || ed.At > len(src) {
			return "", &ApplyError{Code: ErrCodeSpanOutOfRange, Message: fmt.Sprintf("%s: insertion at %d outside source of length %d", ed.Target, ed.At, len(src)), Unit: ed.Unit}
		}
		ops = append(ops, op{pos: ed.At, end: -1, text: ed.Insert, edit: i})
		for _, r := range ed.Removed {
			if r.Start < 0 || r.End > len(src) || r.Start > r.End {
				return "", &ApplyError{Code: ErrCodeSpanOutOfRange, Message: fmt.Sprintf("%s: removal [%d,%d) outside source of length %d", ed.Target, r.Start, r.End, len(src)), Unit: ed.Unit}
			}
			ops = append(ops, op{pos: r.Start, end: r.End, edit: i})
		}
		if ed.Import != "" {
			imports[ed.Import] = true
		}
	}
	if len(imports) > 0 {
		pos, text := importInsertion(src, slices.Sorted(maps.Keys(imports)))
		ops = append(ops, op{pos: pos, end: -1, text: text, edit: -1})
	}

	// At the same offset: new imports, then insertions, then removals.
	slices.SortFunc(ops, func(a, b op) int {
		return cmp.Or(cmp.Compare(a.pos, b.pos), cmp.Compare(a.end, b.end), cmp.Compare(a.edit, b.edit))
	})
	if err := checkOverlaps(ops, edits); err != nil {
		return "", err
	}

	var b strings.Builder
	cur := 0
	for _, o := range ops {
		b.WriteString(src[cur:o.pos])
		if o.insert() {
			b.WriteString(o.text)
			cur = o.pos
		} else {
			cur = o.end
		}
	}
	b.WriteString(src[cur:])
	return b.String(), nil
}

func checkOverlaps(ops []op, edits []Edit) error {
	name := func(i int) string {
		if i < 0 {
			return "imports"
		}
		return edits[i].Target
	}
	unit := ""
	if len(edits) > 0 {
		unit = edits[0].Unit
	}
	removedTo := -1 // end of the last removal seen
	lastRemoval := -1
	insertedAt := map[int]int{}
	for _, o := range ops {
		if o.insert() {
			if prev, ok := insertedAt[o.pos]; ok && prev >= 0 && prev != o.edit {
				return &ApplyError{Code: ErrCodeOverlappingEdits, Message: fmt.Sprintf("%s and %s insert at the same offset %d", name(prev), name(o.edit), o.pos), Unit: unit}
			}
			insertedAt[o.pos] = o.edit
			if o.pos < removedTo {
				return &ApplyError{Code: ErrCodeOverlappingEdits, Message: fmt.Sprintf("%s inserts inside text removed by %s", name(o.edit), name(lastRemoval)), Unit: unit}
			}
			continue
		}
		if o.pos < removedTo {
			return &ApplyError{Code: ErrCodeOverlappingEdits, Message: fmt.Sprintf("%s and %s remove overlapping text", name(lastRemoval), name(o.edit)), Unit: unit}
		}
		removedTo, lastRemoval = o.end, o.edit
	}
	return nil
}

var (
	importLine  = regexp.MustCompile(`(?m)^[ \t]*import\s+[^;]+;[ \t]*\r?\n?`)
	packageLine = regexp.MustCompile(`(?m)^[ \t]*package\s+[^;]+;[ \t]*\r?\n?`)
)

// importInsertion returns where new import statements go and their text:
// after the last import, else after the package clause, else at the top.
func importInsertion(src string, imports []string) (int, string) {
	var b strings.Builder
	for _, imp := range imports {
		b.WriteString("import " + imp + ";\n")
	}
	if locs := importLine.FindAllStringIndex(src, -1); len(locs) > 0 {
		end := locs[len(locs)-1][1]
		if end > 0 && src[end-1] != '\n' {
			return end, "\n" + b.String()
		}
		return end, b.String()
	}
	if loc := packageLine.FindStringIndex(src); loc != nil {
		return loc[1], "\n" + b.String()
	}
	return 0, b.String() + "\n"
}

// Batch collects edits per unit.
type Batch struct {
	edits map[string][]Edit
}

// NewBatch creates an empty Batch.
func NewBatch() *Batch {
	return &Batch{edits: make(map[string][]Edit)}
}

// Add queues an edit for its unit.
func (b *Batch) Add(ed Edit) {
	b.edits[ed.Unit] = append(b.edits[ed.Unit], ed)
}

// Units returns the units with queued edits, sorted by path.
func (b *Batch) Units() []string {
	return slices.Sorted(maps.Keys(b.edits))
}

// Edits returns the edits queued for unit in the order they were added.
func (b *Batch) Edits(unit string) []Edit { return b.edits[unit] }

// Len returns the number of queued edits.
func (b *Batch) Len() int {
	n := 0
	for _, eds := range b.edits {
		n += len(eds)
	}
	return n
}

// Apply rewrites every unit with queued edits and returns the new source
// by unit path. No unit is returned unless all of them apply cleanly.
func (b *Batch) Apply(prog *ir.Program) (map[string]string, error) {
	out := make(map[string]string, len(b.edits))
	for _, path := range b.Units() {
		u := prog.Unit(path)
		if u == nil || u.Source == "" {
			return nil, &ApplyError{Code: ErrCodeNoSource, Message: "unit has no source text", Unit: path}
		}
		src, err := Apply(u.Source, b.edits[path])
		if err != nil {
			return nil, err
		}
		out[path] = src
	}
	return out, nil
}
