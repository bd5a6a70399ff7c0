package navigate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shade/internal/parser"
	"github.com/jward/shade/internal/scope"
	"github.com/jward/shade/internal/span"
)

func src(lines ...string) string { return strings.Join(lines, "\n") + "\n" }

func analyze(t *testing.T, text string) *scope.Tree {
	t.Helper()
	pt, err := parser.Parse(context.Background(), []byte(text), parser.Options{})
	require.NoError(t, err)
	t.Cleanup(pt.Close)
	st, err := scope.Build(pt)
	require.NoError(t, err)
	return st
}

func at(line, col int) span.Position { return span.Position{Line: line, Col: col} }

func TestMark_Binding(t *testing.T) {
	t.Parallel()
	st := analyze(t, src(
		"def f():",
		"    x = 1",
		"    y = x + x",
		"    return x",
	))

	got := Mark(st, at(2, 4), Options{})
	assert.Equal(t, []span.Range{
		span.New(3, 8, 3, 9),
		span.New(3, 12, 3, 13),
		span.New(4, 11, 4, 12),
	}, got)

	got = Mark(st, at(3, 12), Options{MarkOriginal: true})
	assert.Len(t, got, 4)
	assert.Equal(t, span.New(2, 4, 2, 5), got[0])
}

func TestMark_NothingUnderCursor(t *testing.T) {
	t.Parallel()
	st := analyze(t, src("x = 1", "a.b"))
	assert.Empty(t, Mark(st, at(1, 2), Options{}))
	assert.Empty(t, Mark(st, at(2, 2), Options{MarkOriginal: true}), "plain attributes have no group")
}

func TestMark_UnresolvedGroupsByName(t *testing.T) {
	t.Parallel()
	st := analyze(t, src(
		"foo()",
		"def g():",
		"    foo",
		"    len",
	))
	assert.Equal(t, []span.Range{span.New(3, 4, 3, 7)}, Mark(st, at(1, 0), Options{}))
}

func TestMark_SelfAttributesGroupPerClass(t *testing.T) {
	t.Parallel()
	st := analyze(t, src(
		"class A:",
		"    def __init__(self):",
		"        self.foo = 1",
		"    def get(self):",
		"        return self.foo",
		"class B:",
		"    def m(self):",
		"        self.foo = 2",
	))

	got := Mark(st, at(3, 14), Options{MarkOriginal: true})
	assert.Equal(t, []span.Range{
		span.New(3, 13, 3, 16),
		span.New(5, 20, 5, 23),
	}, got)

	// The self token of a merged node targets the attribute.
	got = Mark(st, at(3, 8), Options{SelfToAttribute: true})
	assert.Equal(t, []span.Range{span.New(5, 15, 5, 23)}, got)

	// Without merging, the self token marks the parameter binding.
	got = Mark(st, at(3, 8), Options{})
	assert.Equal(t, []span.Range{span.New(2, 17, 2, 21)}, got)
}

func TestRename_LocalUsedThreeTimes(t *testing.T) {
	t.Parallel()
	text := src(
		"def f():",
		"    x = 1",
		"    return x + x",
	)
	st := analyze(t, text)

	edits, err := Rename(st, at(3, 11), "z")
	require.NoError(t, err)
	assert.Equal(t, []Edit{
		{Range: span.New(2, 4, 2, 5), NewText: "z"},
		{Range: span.New(3, 11, 3, 12), NewText: "z"},
		{Range: span.New(3, 15, 3, 16), NewText: "z"},
	}, edits)

	out, err := ApplyEdits([]byte(text), edits)
	require.NoError(t, err)
	assert.Equal(t, src("def f():", "    z = 1", "    return z + z"), string(out))
}

func TestRename_Rejected(t *testing.T) {
	t.Parallel()
	st := analyze(t, src(
		"x = len(a.b)",
	))
	tests := []struct {
		name string
		pos  span.Position
		to   string
	}{
		{"keyword", at(1, 0), "class"},
		{"invalid identifier", at(1, 0), "1abc"},
		{"empty", at(1, 0), ""},
		{"builtin target", at(1, 4), "length"},
		{"no name", at(1, 2), "y"},
		{"untracked attribute", at(1, 10), "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits, err := Rename(st, tt.pos, tt.to)
			assert.Nil(t, edits)
			var re *RenameError
			require.True(t, errors.As(err, &re), "got %v", err)
			assert.Equal(t, tt.to, re.Name)
		})
	}
}

func TestRename_SelfAttributeEditsAttributeOnly(t *testing.T) {
	t.Parallel()
	text := src(
		"class A:",
		"    def m(self):",
		"        self.foo = self.foo + 1",
	)
	st := analyze(t, text)

	edits, err := Rename(st, at(3, 13), "bar")
	require.NoError(t, err)
	out, err := ApplyEdits([]byte(text), edits)
	require.NoError(t, err)
	assert.Equal(t, src("class A:", "    def m(self):", "        self.bar = self.bar + 1"), string(out))
}

func TestApplyEdits_Overlap(t *testing.T) {
	t.Parallel()
	_, err := ApplyEdits([]byte("abcdef\n"), []Edit{
		{Range: span.New(1, 0, 1, 3), NewText: "x"},
		{Range: span.New(1, 2, 1, 4), NewText: "y"},
	})
	assert.Error(t, err)
}

func TestGoto(t *testing.T) {
	t.Parallel()
	st := analyze(t, src(
		"import os",
		"class A:",
		"    def m(self):",
		"        pass",
		"def f():",
		"    return undefined",
	))

	tests := []struct {
		kind string
		dir  Direction
		from span.Position
		want span.Position
	}{
		{KindFunction, Next, at(1, 0), at(3, 8)},
		{KindFunction, Next, at(3, 9), at(5, 4)},
		{KindFunction, Next, at(5, 4), at(3, 8)},
		{KindFunction, Prev, at(3, 8), at(5, 4)},
		{KindFunction, Last, at(1, 0), at(5, 4)},
		{KindClass, First, at(6, 0), at(2, 6)},
		{KindImport, Next, at(4, 0), at(1, 7)},
		{"unresolved", Next, at(1, 0), at(6, 11)},
		{"self", Next, at(1, 0), at(3, 10)},
	}
	for _, tt := range tests {
		got, ok, err := Goto(st, tt.kind, tt.dir, tt.from)
		require.NoError(t, err)
		require.True(t, ok, "%s %s from %s", tt.kind, tt.dir, tt.from)
		assert.Equal(t, tt.want, got, "%s %s from %s", tt.kind, tt.dir, tt.from)
	}

	_, ok, err := Goto(st, "builtin", Next, at(1, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Goto(st, "bogus", Next, at(1, 0))
	assert.Error(t, err)
}

func TestGoto_Name(t *testing.T) {
	t.Parallel()
	st := analyze(t, src(
		"x = 1",
		"y = x",
		"print(x)",
	))
	got, ok, err := Goto(st, KindName, Next, at(2, 4))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, at(3, 6), got)

	got, ok, _ = Goto(st, KindName, Prev, at(2, 4))
	require.True(t, ok)
	assert.Equal(t, at(1, 0), got)

	_, ok, _ = Goto(st, KindName, Next, at(1, 2))
	assert.False(t, ok)
}

func TestParseDirection(t *testing.T) {
	t.Parallel()
	for _, d := range []Direction{Next, Prev, First, Last} {
		got, err := ParseDirection(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}
