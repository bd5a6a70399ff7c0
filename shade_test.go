package shade

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jward/shade/internal/errtrack"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/span"
)

// fakeBuffer is a Buffer whose text and cursor tests set directly.
type fakeBuffer struct {
	mu     sync.Mutex
	text   string
	cursor span.Position
}

func newFakeBuffer(text string) *fakeBuffer {
	return &fakeBuffer{text: text, cursor: span.Position{Line: 1}}
}

func (b *fakeBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *fakeBuffer) SetText(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = s
}

func (b *fakeBuffer) Cursor() span.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

func (b *fakeBuffer) MoveTo(line, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = span.Position{Line: line, Col: col}
}

func (b *fakeBuffer) Viewport() (int, int) { return 0, 0 }

// fakeRenderer records every call.
type fakeRenderer struct {
	mu       sync.Mutex
	applies  []highlight.Result
	marks    [][]span.Range
	shown    []errtrack.Record
	cleared  int
	panicked bool
}

func (r *fakeRenderer) Apply(_ BufferID, res highlight.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.panicked {
		panic("renderer exploded")
	}
	r.applies = append(r.applies, res)
}

func (r *fakeRenderer) Mark(_ BufferID, ranges []span.Range) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, ranges)
}

func (r *fakeRenderer) ShowError(_ BufferID, rec *errtrack.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, *rec)
}

func (r *fakeRenderer) ClearError(BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

func (r *fakeRenderer) counts() (applies, marks, shown, cleared int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applies), len(r.marks), len(r.shown), r.cleared
}

func (r *fakeRenderer) lastMark() []span.Range {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.marks) == 0 {
		return nil
	}
	return r.marks[len(r.marks)-1]
}

var (
	_ Buffer   = (*fakeBuffer)(nil)
	_ Renderer = (*fakeRenderer)(nil)
)

func newTestIndexer(t *testing.T, opts ...IndexerOption) *Indexer {
	t.Helper()
	ix, err := NewIndexer(filepath.Join(t.TempDir(), "shade.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

// categoriesByName flattens a set for assertions: name -> categories seen.
func categoriesByName(s highlight.Set) map[string][]highlight.Category {
	out := make(map[string][]highlight.Category)
	for _, it := range s.Sorted() {
		out[it.Entry.Name] = append(out[it.Entry.Name], it.Entry.Category)
	}
	return out
}
