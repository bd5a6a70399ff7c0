// Package navigate answers cursor questions over an analysed buffer: which
// other occurrences denote the same entity (Mark), how to rename it
// (Rename), and where the next definition, import or category occurrence
// is (Goto).
package navigate

import (
	"sort"

	"github.com/jward/shade/internal/classify"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/scope"
	"github.com/jward/shade/internal/span"
)

// Options configures Mark.
type Options struct {
	// MarkOriginal includes the occurrence under the cursor itself.
	MarkOriginal bool

	// SelfToAttribute mirrors classify.Options: a cursor on the self of
	// self.name targets the attribute, and marked attributes span both
	// tokens.
	SelfToAttribute bool
}

// Mark returns the ranges of every occurrence denoting the same entity as
// the one at pos, sorted. The cursor's own range is left out unless
// opts.MarkOriginal is set. No name at pos, or an attribute that is not
// accessed on self or cls, marks nothing.
func Mark(st *scope.Tree, pos span.Position, opts Options) []span.Range {
	id, ok := target(st, pos, opts.SelfToAttribute)
	if !ok {
		return nil
	}
	var out []span.Range
	for _, m := range group(st, id) {
		if m == id && !opts.MarkOriginal {
			continue
		}
		out = append(out, markRange(st, m, opts.SelfToAttribute))
	}
	return out
}

func markRange(st *scope.Tree, id scope.OccurrenceID, selfToAttribute bool) span.Range {
	o := st.Occurrence(id)
	if selfToAttribute && classify.IsSelfAttribute(st, id) {
		return st.Occurrence(o.Base).Range.Union(o.Range)
	}
	return o.Range
}

// target finds the occurrence at pos. With selfToAttribute, a self token
// that starts a self attribute access resolves to the attribute.
func target(st *scope.Tree, pos span.Position, selfToAttribute bool) (scope.OccurrenceID, bool) {
	id, ok := st.OccurrenceAt(pos)
	if !ok {
		return scope.NoOccurrence, false
	}
	if selfToAttribute && st.Occurrence(id).Role == scope.RoleUse {
		if attr, ok := attributeOn(st, id); ok {
			return attr, true
		}
	}
	return id, true
}

func attributeOn(st *scope.Tree, base scope.OccurrenceID) (scope.OccurrenceID, bool) {
	for i := range st.Occurrences {
		o := &st.Occurrences[i]
		if o.Base == base && classify.IsSelfAttribute(st, o.ID) {
			return o.ID, true
		}
	}
	return scope.NoOccurrence, false
}

// group returns the occurrences that denote the same entity as id, sorted
// by range. It includes id itself.
//
// Bound names group by binding. Unbound names share the module and builtin
// namespaces, so they group by name and category. Attributes group only
// when accessed on self or cls: by name within the enclosing class. Other
// attributes are not tracked and have no group.
func group(st *scope.Tree, id scope.OccurrenceID) []scope.OccurrenceID {
	o := st.Occurrence(id)
	var out []scope.OccurrenceID
	switch {
	case o.Role == scope.RoleAttribute:
		if !classify.IsSelfAttribute(st, id) {
			return nil
		}
		cls := st.EnclosingClass(o.Scope)
		for i := range st.Occurrences {
			a := &st.Occurrences[i]
			if a.Role == scope.RoleAttribute && a.Name == o.Name &&
				classify.IsSelfAttribute(st, a.ID) && st.EnclosingClass(a.Scope) == cls {
				out = append(out, a.ID)
			}
		}
	case o.Binding != scope.NoBinding:
		out = append(out, st.Binding(o.Binding).Occurrences...)
	default:
		cat := classify.Of(st, id)
		for i := range st.Occurrences {
			u := &st.Occurrences[i]
			if u.Binding == scope.NoBinding && u.Role != scope.RoleAttribute &&
				u.Name == o.Name && classify.Of(st, u.ID) == cat {
				out = append(out, u.ID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return st.Occurrence(out[i]).Range.Compare(st.Occurrence(out[j]).Range) < 0
	})
	return out
}

// isBuiltin reports whether id names an entry of the builtin namespace.
func isBuiltin(st *scope.Tree, id scope.OccurrenceID) bool {
	return classify.Of(st, id) == highlight.Builtin
}
