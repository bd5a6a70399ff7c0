package navigate

import (
	"fmt"
	"sort"

	"github.com/jward/shade/internal/classify"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/scope"
	"github.com/jward/shade/internal/span"
)

// Direction selects which candidate Goto jumps to.
type Direction uint8

const (
	Next Direction = iota
	Prev
	First
	Last
)

var directionNames = [...]string{"next", "prev", "first", "last"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", d)
}

// ParseDirection parses next, prev, first or last.
func ParseDirection(s string) (Direction, error) {
	for i, name := range directionNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Goto kinds besides the category names.
const (
	KindName     = "name"
	KindFunction = "function"
	KindClass    = "class"
	KindImport   = "import"
)

// Goto returns the start of the next (or previous, first, last) occurrence
// of kind relative to pos. Next and Prev wrap around. kind is name (the
// group of the occurrence under pos), function, class, import or a
// category name. The boolean is false when there is no candidate.
func Goto(st *scope.Tree, kind string, dir Direction, pos span.Position) (span.Position, bool, error) {
	here := pos
	if id, ok := st.OccurrenceAt(pos); ok {
		here = st.Occurrence(id).Range.Start
	}

	var cands []scope.OccurrenceID
	switch kind {
	case KindName:
		id, ok := st.OccurrenceAt(pos)
		if !ok {
			return span.Position{}, false, nil
		}
		cands = group(st, id)
	case KindFunction, KindClass:
		want := scope.Function
		if kind == KindClass {
			want = scope.Class
		}
		cands = filter(st, func(o *scope.Occurrence) bool {
			return o.Defines != scope.NoScope && st.Scope(o.Defines).Kind == want
		})
	case KindImport:
		cands = filter(st, func(o *scope.Occurrence) bool {
			return o.Role == scope.RoleBind && o.Kind.Has(scope.DeclImport)
		})
	default:
		cat, err := highlight.ParseCategory(kind)
		if err != nil {
			return span.Position{}, false, fmt.Errorf("goto: unknown target %q", kind)
		}
		cands = filter(st, func(o *scope.Occurrence) bool { return classify.Of(st, o.ID) == cat })
	}

	starts := make([]span.Position, 0, len(cands))
	for _, id := range cands {
		starts = append(starts, st.Occurrence(id).Range.Start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Less(starts[j]) })
	p, ok := pick(starts, dir, here)
	return p, ok, nil
}

func filter(st *scope.Tree, keep func(*scope.Occurrence) bool) []scope.OccurrenceID {
	var out []scope.OccurrenceID
	for _, id := range st.InSourceOrder() {
		if keep(st.Occurrence(id)) {
			out = append(out, id)
		}
	}
	return out
}

func pick(starts []span.Position, dir Direction, here span.Position) (span.Position, bool) {
	if len(starts) == 0 {
		return span.Position{}, false
	}
	switch dir {
	case First:
		return starts[0], true
	case Last:
		return starts[len(starts)-1], true
	case Prev:
		for i := len(starts) - 1; i >= 0; i-- {
			if starts[i].Less(here) {
				return starts[i], true
			}
		}
		return starts[len(starts)-1], true
	}
	for _, p := range starts {
		if here.Less(p) {
			return p, true
		}
	}
	return starts[0], true
}
