package shade

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/navigate"
	"github.com/jward/shade/internal/parser"
	"github.com/jward/shade/internal/span"
)

const handlerSource = `def f(a):
    return a + undefined
x = f(1)
`

func newTestHandler(t *testing.T, text string, opts ...Option) (*Handler, *fakeBuffer, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	e := New(r, opts...)
	t.Cleanup(e.Shutdown)
	buf := newFakeBuffer(text)
	return e.Open(1, buf), buf, r
}

func intolerant() config.Options {
	opts := config.Default()
	opts.TolerateSyntaxErrors = false
	return opts
}

func TestHandler_RefreshRenders(t *testing.T) {
	h, _, r := newTestHandler(t, handlerSource)

	require.NoError(t, h.Refresh(context.Background()))

	applies, _, _, _ := r.counts()
	assert.Equal(t, 1, applies)

	got := categoriesByName(h.Rendered())
	assert.Equal(t, []highlight.Category{highlight.Global, highlight.Global}, got["f"])
	assert.Equal(t, []highlight.Category{highlight.Parameter, highlight.Parameter}, got["a"])
	assert.Equal(t, []highlight.Category{highlight.Unresolved}, got["undefined"])
	assert.Len(t, h.Rendered(), 6)
	require.NotNil(t, h.Current())
}

func TestHandler_RefreshUnchangedTextRendersNothing(t *testing.T) {
	h, _, r := newTestHandler(t, handlerSource)

	require.NoError(t, h.Refresh(context.Background()))
	require.NoError(t, h.Refresh(context.Background()))

	applies, _, _, _ := r.counts()
	assert.Equal(t, 1, applies, "an empty diff is not sent")
}

func TestHandler_IncrementalUpdate(t *testing.T) {
	h, buf, r := newTestHandler(t, handlerSource)
	require.NoError(t, h.Refresh(context.Background()))

	buf.SetText("def f(a):\n    return a + a\nx = f(1)\n")
	require.NoError(t, h.Refresh(context.Background()))

	r.mu.Lock()
	last := r.applies[len(r.applies)-1]
	r.mu.Unlock()
	assert.Equal(t, highlight.Incremental, last.Mode)
	adds, removes := last.Counts()
	assert.Equal(t, 1, adds)
	assert.Equal(t, 1, removes)
	assert.NotContains(t, categoriesByName(h.Rendered()), "undefined")
}

func TestHandler_SyntaxErrorKeepsHighlights(t *testing.T) {
	h, buf, r := newTestHandler(t, handlerSource, WithOptions(intolerant()))
	require.NoError(t, h.Refresh(context.Background()))
	before := h.Rendered()

	buf.SetText("def f(:\n")
	err := h.Refresh(context.Background())
	var synErr *parser.SyntaxError
	require.ErrorAs(t, err, &synErr)

	applies, _, _, _ := r.counts()
	assert.Equal(t, 1, applies)
	assert.True(t, before.Equal(h.Rendered()))

	rec, ok := h.SyntaxError()
	require.True(t, ok)
	assert.Equal(t, synErr.Range, rec.Range)
}

func TestHandler_ErrorSignDelay(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}
	opts := intolerant()
	opts.ErrorSignDelay = time.Hour

	h, buf, r := newTestHandler(t, "def f(:\n", WithOptions(opts), WithClock(clock))

	require.Error(t, h.Refresh(context.Background()))
	_, _, shown, _ := r.counts()
	assert.Equal(t, 0, shown, "pending until the delay elapses")

	clockMu.Lock()
	now = now.Add(2 * time.Hour)
	clockMu.Unlock()
	h.tickErrors()
	_, _, shown, _ = r.counts()
	assert.Equal(t, 1, shown)

	buf.SetText("x = 1\n")
	require.NoError(t, h.Refresh(context.Background()))
	_, _, _, cleared := r.counts()
	assert.Equal(t, 1, cleared)
	_, ok := h.SyntaxError()
	assert.False(t, ok)
}

func TestHandler_ErrorSignZeroDelayShowsImmediately(t *testing.T) {
	opts := intolerant()
	opts.ErrorSignDelay = 0
	h, _, r := newTestHandler(t, "def f(:\n", WithOptions(opts))

	require.Error(t, h.Refresh(context.Background()))
	_, _, shown, _ := r.counts()
	assert.Equal(t, 1, shown)
}

func TestHandler_ErrorSignDisabled(t *testing.T) {
	opts := intolerant()
	opts.ErrorSign = false
	opts.ErrorSignDelay = 0
	h, _, r := newTestHandler(t, "def f(:\n", WithOptions(opts))

	require.Error(t, h.Refresh(context.Background()))
	_, _, shown, _ := r.counts()
	assert.Equal(t, 0, shown)
	_, ok := h.SyntaxError()
	assert.False(t, ok)
}

func TestHandler_RepairedParseTracksError(t *testing.T) {
	opts := config.Default()
	opts.ErrorSignDelay = 0
	h, _, r := newTestHandler(t, "x = (1,\ny = 2\n", WithOptions(opts))

	require.NoError(t, h.Refresh(context.Background()))
	applies, _, shown, _ := r.counts()
	assert.Equal(t, 1, applies, "repaired text still renders")
	assert.Equal(t, 1, shown)
}

func TestHandler_StaleResultDropped(t *testing.T) {
	h, buf, r := newTestHandler(t, handlerSource)
	require.NoError(t, h.Refresh(context.Background()))

	// Revision 1 has been applied; a late result for it must not render.
	buf.SetText("y = 2\n")
	require.NoError(t, h.run(context.Background(), 1, buf.Text(), h.Options()))

	applies, _, _, _ := r.counts()
	assert.Equal(t, 1, applies)
	assert.Contains(t, categoriesByName(h.Rendered()), "undefined")
}

func TestHandler_SupersededRevisionDropped(t *testing.T) {
	opts := config.Default()
	opts.UpdateDelayFactor = 3600 // keeps the scheduled run pending
	h, _, r := newTestHandler(t, handlerSource, WithOptions(opts))

	h.Update() // revision 1, pending
	h.Update() // revision 2, pending; revision 1 cancelled
	require.NoError(t, h.run(context.Background(), 1, handlerSource, opts))

	applies, _, _, _ := r.counts()
	assert.Equal(t, 0, applies)
	assert.Nil(t, h.Current())
}

func TestHandler_UpdateCoalesces(t *testing.T) {
	opts := config.Default()
	opts.UpdateDelayFactor = 0.02
	h, buf, r := newTestHandler(t, "", WithOptions(opts))

	for i := range 5 {
		buf.SetText("value_" + string(rune('a'+i)) + " = missing\n")
		h.Update()
	}
	h.Wait()

	assert.Contains(t, h.String(), "revision=5")
	got := categoriesByName(h.Rendered())
	assert.Contains(t, got, "value_e")
	assert.NotContains(t, got, "value_a")
	applies, _, _, _ := r.counts()
	assert.GreaterOrEqual(t, applies, 1)
}

func TestHandler_UpdateWithoutDelayRunsInBackground(t *testing.T) {
	h, _, _ := newTestHandler(t, handlerSource)

	h.Update()
	h.Wait()
	assert.NotNil(t, h.Current())
}

func TestHandler_PanicIsReported(t *testing.T) {
	var (
		mu    sync.Mutex
		diags []Diagnostic
	)
	r := &fakeRenderer{panicked: true}
	e := New(r, WithDiagnostics(DiagnosticsFunc(func(d Diagnostic) {
		mu.Lock()
		defer mu.Unlock()
		diags = append(diags, d)
	})))
	t.Cleanup(e.Shutdown)
	h := e.Open(1, newFakeBuffer(handlerSource))

	err := h.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, diags, 1)
	assert.NotEmpty(t, diags[0].RunID)
	assert.Contains(t, diags[0].Stack, "fakeRenderer")
	assert.Equal(t, BufferID(1), diags[0].Buffer)
}

func TestHandler_RefreshCancelled(t *testing.T) {
	h, _, r := newTestHandler(t, handlerSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	applies, _, _, _ := r.counts()
	assert.Equal(t, 0, applies)
}

func TestHandler_MarkSelected(t *testing.T) {
	h, buf, r := newTestHandler(t, handlerSource)
	require.NoError(t, h.Refresh(context.Background()))

	buf.MoveTo(1, 6)
	h.MarkSelected()
	require.Equal(t, []span.Range{span.New(2, 11, 2, 12)}, r.lastMark())

	h.MarkSelected()
	_, marks, _, _ := r.counts()
	assert.Equal(t, 1, marks, "unchanged marks are not re-sent")

	buf.MoveTo(1, 0)
	h.MarkSelected()
	_, marks, _, _ = r.counts()
	assert.Equal(t, 2, marks)
	assert.Empty(t, r.lastMark())
}

func TestHandler_MarkNone(t *testing.T) {
	opts := config.Default()
	opts.MarkSelectedNodes = config.MarkNone
	h, buf, r := newTestHandler(t, handlerSource, WithOptions(opts))
	require.NoError(t, h.Refresh(context.Background()))

	buf.MoveTo(1, 6)
	h.MarkSelected()
	_, marks, _, _ := r.counts()
	assert.Equal(t, 0, marks)
}

func TestHandler_Clear(t *testing.T) {
	h, buf, r := newTestHandler(t, handlerSource)
	require.NoError(t, h.Refresh(context.Background()))
	buf.MoveTo(1, 6)
	h.MarkSelected()

	h.Clear()
	assert.Empty(t, h.Rendered())
	assert.Nil(t, r.lastMark())
	r.mu.Lock()
	last := r.applies[len(r.applies)-1]
	r.mu.Unlock()
	assert.Equal(t, highlight.Full, last.Mode)
	assert.Empty(t, last.Ops)

	// The next run renders everything again.
	require.NoError(t, h.Refresh(context.Background()))
	assert.Len(t, h.Rendered(), 6)
}

func TestHandler_RenameAndGoto(t *testing.T) {
	h, buf, _ := newTestHandler(t, handlerSource)

	_, err := h.Rename("b")
	require.ErrorIs(t, err, ErrNoAnalysis)

	require.NoError(t, h.Refresh(context.Background()))
	buf.MoveTo(1, 6)
	edits, err := h.Rename("b")
	require.NoError(t, err)
	out, err := navigate.ApplyEdits([]byte(buf.Text()), edits)
	require.NoError(t, err)
	assert.Equal(t, "def f(b):\n    return b + undefined\nx = f(1)\n", string(out))

	buf.MoveTo(1, 0)
	pos, ok, err := h.Goto("unresolved", navigate.Next)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, span.Position{Line: 2, Col: 15}, pos)

	_, ok, err = h.Goto("error", navigate.Next)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandler_ShutdownStopsUpdates(t *testing.T) {
	h, _, r := newTestHandler(t, handlerSource)
	h.Shutdown()

	h.Update()
	h.Wait()
	assert.ErrorIs(t, h.Refresh(context.Background()), ErrClosed)
	applies, _, _, _ := r.counts()
	assert.Equal(t, 0, applies)
}

func TestHandler_SetOptionsResetsTracker(t *testing.T) {
	opts := intolerant()
	opts.ErrorSignDelay = time.Hour
	h, _, _ := newTestHandler(t, "def f(:\n", WithOptions(opts))
	require.Error(t, h.Refresh(context.Background()))
	_, ok := h.SyntaxError()
	require.True(t, ok)

	h.setOptions(config.Default())
	_, ok = h.SyntaxError()
	assert.False(t, ok)
	assert.True(t, h.Options().TolerateSyntaxErrors)
}

// Every line prefix of a valid program either analyses or fails with a
// syntax error when repairs are enabled; nothing else aborts a run.
func TestAnalyze_PrefixesNeverAbort(t *testing.T) {
	src := `import os

class Point:
    def __init__(self, x, y=0):
        self.x = x
        self.y = [v for v in (x, y) if v]

    def norm(self):
        return (self.x ** 2 + self.y ** 2) ** 0.5

def main(argv):
    p = Point(*argv)
    try:
        print(p.norm(), os.sep)
    except ValueError as exc:
        raise SystemExit(exc)
`
	lines := strings.SplitAfter(src, "\n")
	for i := range lines {
		prefix := strings.Join(lines[:i+1], "")
		for cut := range []int{0, 1} {
			text := prefix
			if cut == 1 && len(text) > 2 {
				text = text[:len(text)-2]
			}
			a, err := Analyze(context.Background(), []byte(text), config.Default())
			if err != nil {
				var synErr *parser.SyntaxError
				assert.ErrorAs(t, err, &synErr, "prefix %d: %q", i, text)
				continue
			}
			assert.NotNil(t, a.Scopes, "prefix %d", i)
		}
	}
}
