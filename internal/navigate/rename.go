package navigate

import (
	"fmt"
	"sort"

	"github.com/jward/shade/internal/pylang"
	"github.com/jward/shade/internal/scope"
	"github.com/jward/shade/internal/span"
)

// Edit replaces the text of Range with NewText.
type Edit struct {
	Range   span.Range `json:"range"`
	NewText string     `json:"newText"`
}

// RenameError explains why a rename was refused. The buffer is left alone.
type RenameError struct {
	Name   string // the requested new name
	Reason string
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("rename to %q: %s", e.Name, e.Reason)
}

// Rename returns the edits that rename the entity under pos to newName,
// one per occurrence, sorted by range. Each edit covers exactly the
// identifier token, so a self attribute only has its attribute part
// replaced. Shadowing introduced by the new name is not checked.
func Rename(st *scope.Tree, pos span.Position, newName string) ([]Edit, error) {
	switch {
	case pylang.IsKeyword(newName):
		return nil, &RenameError{Name: newName, Reason: "is a keyword"}
	case !pylang.IsIdentifier(newName):
		return nil, &RenameError{Name: newName, Reason: "is not a valid identifier"}
	}

	id, ok := st.OccurrenceAt(pos)
	if !ok {
		return nil, &RenameError{Name: newName, Reason: fmt.Sprintf("no name at %s", pos)}
	}
	o := st.Occurrence(id)
	if o.Binding == scope.NoBinding && o.Role != scope.RoleAttribute && isBuiltin(st, id) {
		return nil, &RenameError{Name: newName, Reason: fmt.Sprintf("%q is a builtin", o.Name)}
	}
	members := group(st, id)
	if len(members) == 0 {
		return nil, &RenameError{Name: newName, Reason: fmt.Sprintf("attribute %q is not accessed on self or cls", o.Name)}
	}

	edits := make([]Edit, 0, len(members))
	for _, m := range members {
		edits = append(edits, Edit{Range: st.Occurrence(m).Range, NewText: newName})
	}
	return edits, nil
}

// ApplyEdits writes edits into src. Edits must not overlap.
func ApplyEdits(src []byte, edits []Edit) ([]byte, error) {
	sorted := append([]Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Compare(sorted[j].Range) < 0 })

	lines := span.NewLines(src)
	out := make([]byte, 0, len(src))
	last := 0
	for _, e := range sorted {
		start, end := lines.Offset(e.Range.Start), lines.Offset(e.Range.End)
		if start < last || end < start {
			return nil, fmt.Errorf("navigate: edit at %s overlaps a previous edit", e.Range)
		}
		out = append(out, src[last:start]...)
		out = append(out, e.NewText...)
		last = end
	}
	return append(out, src[last:]...), nil
}
