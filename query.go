package shade

import (
	"fmt"
	"sort"

	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/store"
)

// Query answers offline questions over an indexed database.
type Query struct {
	store *store.Store
}

// Location is one occurrence in an indexed file. Lines are 1-based,
// columns 0-based code points, end exclusive.
type Location struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
	Name      string `json:"name"`
	Category  string `json:"category"`
}

// References returns every occurrence of the name at (line, col) in file
// that refers to the same thing: the occurrences of its binding, or, for an
// unresolved or builtin name, every unbound use of that name in the file.
// Names are not followed across files.
func (q *Query) References(file string, line, col int) ([]Location, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("references: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}

	at, err := q.store.OccurrencesAt(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("references: occurrences at: %w", err)
	}
	if len(at) == 0 {
		return nil, nil
	}
	o := at[0]

	var occs []*store.Occurrence
	if o.BindingID != nil {
		occs, err = q.store.OccurrencesByBinding(*o.BindingID)
	} else if o.Role == "attr" {
		occs = []*store.Occurrence{o}
	} else {
		occs, err = q.store.UnboundByName(f.ID, o.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("references: %w", err)
	}
	return q.locations(occs)
}

// Unresolved returns every unresolved name across the database.
func (q *Query) Unresolved() ([]Location, error) {
	return q.ByCategory(highlight.Unresolved.String())
}

// ByCategory returns every occurrence of a highlight category.
func (q *Query) ByCategory(category string) ([]Location, error) {
	if _, err := highlight.ParseCategory(category); err != nil {
		return nil, err
	}
	occs, err := q.store.OccurrencesByCategory(category)
	if err != nil {
		return nil, fmt.Errorf("by category: %w", err)
	}
	return q.locations(occs)
}

// Summary counts the occurrences per category across the database.
func (q *Query) Summary() (map[string]int, error) {
	return q.store.CategoryCounts()
}

// Files returns the indexed files ordered by path.
func (q *Query) Files() ([]*File, error) {
	files, err := q.store.Files()
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (q *Query) locations(occs []*store.Occurrence) ([]Location, error) {
	paths := make(map[int64]string)
	out := make([]Location, 0, len(occs))
	for _, o := range occs {
		path, ok := paths[o.FileID]
		if !ok {
			f, err := q.store.FileByID(o.FileID)
			if err != nil {
				return nil, fmt.Errorf("lookup file %d: %w", o.FileID, err)
			}
			if f != nil {
				path = f.Path
			}
			paths[o.FileID] = path
		}
		out = append(out, Location{
			File:      path,
			StartLine: o.StartLine,
			StartCol:  o.StartCol,
			EndLine:   o.EndLine,
			EndCol:    o.EndCol,
			Name:      o.Name,
			Category:  o.Category,
		})
	}
	return out, nil
}
