package analysis

import (
	"fmt"

	"github.com/jward/shade/internal/classify"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/scope"
	"github.com/jward/shade/internal/store"
)

// Export writes the scopes, bindings and occurrences of a into ds under
// fileID. Scopes are written parents first, so ds may hand out fake IDs
// that a later commit remaps.
func Export(ds store.DataStore, fileID int64, a *Analysis) error {
	st := a.Scopes

	scopeIDs := make([]int64, len(st.Scopes))
	for i := range st.Scopes {
		s := &st.Scopes[i]
		row := &store.Scope{
			FileID:    fileID,
			Kind:      s.Kind.String(),
			Name:      s.Name,
			Path:      s.Path,
			StartLine: s.Range.Start.Line,
			StartCol:  s.Range.Start.Col,
			EndLine:   s.Range.End.Line,
			EndCol:    s.Range.End.Col,
		}
		if s.Parent != scope.NoScope {
			parent := scopeIDs[s.Parent]
			row.ParentScopeID = &parent
		}
		id, err := ds.InsertScope(row)
		if err != nil {
			return fmt.Errorf("export scope %s: %w", s.Path, err)
		}
		scopeIDs[i] = id
	}

	bindingIDs := make([]int64, len(st.Bindings))
	for i := range st.Bindings {
		b := &st.Bindings[i]
		id, err := ds.InsertBinding(&store.Binding{
			FileID:  fileID,
			ScopeID: scopeIDs[b.Scope],
			Name:    b.Name,
			Kinds:   int(b.Kinds),
			IsSelf:  b.Self,
			Used:    b.Used,
		})
		if err != nil {
			return fmt.Errorf("export binding %s: %w", b.Name, err)
		}
		bindingIDs[i] = id
	}

	for _, id := range st.InSourceOrder() {
		o := st.Occurrence(id)
		row := &store.Occurrence{
			FileID:    fileID,
			ScopeID:   scopeIDs[o.Scope],
			Name:      o.Name,
			Role:      o.Role.String(),
			Category:  category(a, id).String(),
			StartLine: o.Range.Start.Line,
			StartCol:  o.Range.Start.Col,
			EndLine:   o.Range.End.Line,
			EndCol:    o.Range.End.Col,
			Ordinal:   o.Ordinal,
		}
		if o.Binding != scope.NoBinding {
			b := bindingIDs[o.Binding]
			row.BindingID = &b
		}
		if _, err := ds.InsertOccurrence(row); err != nil {
			return fmt.Errorf("export occurrence %s at %s: %w", o.Name, o.Range, err)
		}
	}
	return nil
}

// category prefers the classified entry so that merged self attributes
// export as attributes.
func category(a *Analysis, id scope.OccurrenceID) highlight.Category {
	if e, ok := a.Set[classify.KeyOf(a.Scopes, id)]; ok {
		return e.Category
	}
	return classify.Of(a.Scopes, id)
}
