package shade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/span"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	e := New(r, opts...)
	t.Cleanup(e.Shutdown)
	return e, r
}

func TestEngine_OpenReturnsSameHandler(t *testing.T) {
	e, _ := newTestEngine(t)
	buf := newFakeBuffer(handlerSource)

	h1 := e.Open(1, buf)
	h2 := e.Open(1, buf)
	assert.Same(t, h1, h2)

	got, ok := e.Handler(1)
	require.True(t, ok)
	assert.Same(t, h1, got)

	_, ok = e.Handler(2)
	assert.False(t, ok)
}

func TestEngine_EnableAttaches(t *testing.T) {
	e, r := newTestEngine(t)
	buf := newFakeBuffer(handlerSource)
	buf.MoveTo(1, 6)
	e.Open(1, buf)

	reply, err := e.Dispatch(context.Background(), 1, CmdEnable)
	require.NoError(t, err)
	assert.Empty(t, reply.Message)
	assert.True(t, e.Attached(1))

	applies, marks, _, _ := r.counts()
	assert.Equal(t, 1, applies)
	assert.Equal(t, 1, marks, "enable marks the name under the cursor")
}

func TestEngine_EventsOnlyReachAttachedBuffers(t *testing.T) {
	e, r := newTestEngine(t)
	buf := newFakeBuffer(handlerSource)
	h := e.Open(1, buf)

	e.TextChanged(1)
	h.Wait()
	applies, _, _, _ := r.counts()
	assert.Equal(t, 0, applies)

	_, err := e.Dispatch(context.Background(), 1, CmdEnable)
	require.NoError(t, err)

	buf.SetText("def f(a):\n    return a + a\nx = f(1)\n")
	e.TextChanged(1)
	h.Wait()
	assert.NotContains(t, categoriesByName(h.Rendered()), "undefined")

	buf.MoveTo(2, 11)
	e.CursorMoved(1)
	assert.NotEmpty(t, r.lastMark())
}

func TestEngine_PauseKeepsHighlights(t *testing.T) {
	e, r := newTestEngine(t)
	e.Open(1, newFakeBuffer(handlerSource))
	_, err := e.Dispatch(context.Background(), 1, CmdEnable)
	require.NoError(t, err)

	_, err = e.Dispatch(context.Background(), 1, CmdPause)
	require.NoError(t, err)
	assert.False(t, e.Attached(1))

	h, ok := e.Handler(1)
	require.True(t, ok)
	assert.Len(t, h.Rendered(), 6)
	applies, _, _, _ := r.counts()
	assert.Equal(t, 1, applies)
}

func TestEngine_DisableClearsAndForgets(t *testing.T) {
	e, r := newTestEngine(t)
	e.Open(1, newFakeBuffer(handlerSource))
	_, err := e.Dispatch(context.Background(), 1, CmdEnable)
	require.NoError(t, err)

	_, err = e.Dispatch(context.Background(), 1, CmdDisable)
	require.NoError(t, err)

	_, ok := e.Handler(1)
	assert.False(t, ok)
	assert.False(t, e.Attached(1))
	r.mu.Lock()
	last := r.applies[len(r.applies)-1]
	r.mu.Unlock()
	assert.Equal(t, highlight.Full, last.Mode)
	assert.Empty(t, last.Ops)
}

func TestEngine_Toggle(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Open(1, newFakeBuffer(handlerSource))

	_, err := e.Dispatch(context.Background(), 1, CmdToggle)
	require.NoError(t, err)
	assert.True(t, e.Attached(1))

	_, err = e.Dispatch(context.Background(), 1, CmdToggle)
	require.NoError(t, err)
	assert.False(t, e.Attached(1))
	_, ok := e.Handler(1)
	assert.False(t, ok)
}

func TestEngine_HighlightSyntaxErrorIsAMessage(t *testing.T) {
	opts := config.Default()
	opts.TolerateSyntaxErrors = false
	e, _ := newTestEngine(t, WithOptions(opts))
	e.Open(1, newFakeBuffer("def f(:\n"))

	reply, err := e.Dispatch(context.Background(), 1, CmdHighlight)
	require.NoError(t, err)
	assert.Contains(t, reply.Message, "syntax error")
	require.NotNil(t, reply.Position)
	assert.Equal(t, 1, reply.Position.Line)

	reply, err = e.Dispatch(context.Background(), 1, CmdError)
	require.NoError(t, err)
	require.NotNil(t, reply.Position)
	assert.NotEmpty(t, reply.Message)
}

func TestEngine_ErrorCommandWithoutError(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Open(1, newFakeBuffer(handlerSource))

	reply, err := e.Dispatch(context.Background(), 1, CmdError)
	require.NoError(t, err)
	assert.Equal(t, "no syntax error", reply.Message)
	assert.Nil(t, reply.Position)
}

func TestEngine_RenameCommand(t *testing.T) {
	e, _ := newTestEngine(t)
	buf := newFakeBuffer(handlerSource)
	buf.MoveTo(2, 11)
	e.Open(1, buf)
	_, err := e.Dispatch(context.Background(), 1, CmdHighlight)
	require.NoError(t, err)

	reply, err := e.Dispatch(context.Background(), 1, CmdRename, "value")
	require.NoError(t, err)
	require.Len(t, reply.Edits, 2)
	assert.Equal(t, "value", reply.Edits[0].NewText)
	assert.Equal(t, "2 occurrence(s) renamed", reply.Message)

	_, err = e.Dispatch(context.Background(), 1, CmdRename)
	assert.Error(t, err)

	_, err = e.Dispatch(context.Background(), 1, CmdRename, "for")
	assert.Error(t, err)
}

func TestEngine_GotoCommand(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Open(1, newFakeBuffer(handlerSource))
	_, err := e.Dispatch(context.Background(), 1, CmdHighlight)
	require.NoError(t, err)

	reply, err := e.Dispatch(context.Background(), 1, CmdGoto, "unresolved")
	require.NoError(t, err)
	require.NotNil(t, reply.Position)
	assert.Equal(t, span.Position{Line: 2, Col: 15}, *reply.Position)

	reply, err = e.Dispatch(context.Background(), 1, CmdGoto, "class", "first")
	require.NoError(t, err)
	assert.Equal(t, "no class found", reply.Message)

	_, err = e.Dispatch(context.Background(), 1, CmdGoto, "unresolved", "sideways")
	assert.Error(t, err)
	_, err = e.Dispatch(context.Background(), 1, CmdGoto)
	assert.Error(t, err)
}

func TestEngine_DispatchErrors(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Dispatch(context.Background(), 1, "explode")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = e.Dispatch(context.Background(), 7, CmdHighlight)
	assert.ErrorIs(t, err, ErrUnknownBuffer)
}

func TestEngine_Status(t *testing.T) {
	e, _ := newTestEngine(t)

	reply, err := e.Dispatch(context.Background(), 3, CmdStatus)
	require.NoError(t, err)
	assert.Contains(t, reply.Message, "shade is detached on buffer 3")
	assert.Contains(t, reply.Message, "current handler: (none)")

	e.Open(3, newFakeBuffer(handlerSource))
	_, err = e.Dispatch(context.Background(), 3, CmdEnable)
	require.NoError(t, err)
	reply, err = e.Dispatch(context.Background(), 3, CmdStatus)
	require.NoError(t, err)
	assert.Contains(t, reply.Message, "attached on buffer 3")
	assert.Contains(t, reply.Message, "Handler(buffer=3, revision=1)")
	assert.Contains(t, reply.Message, "syntax error: (none)")
}

func TestEngine_SetOptions(t *testing.T) {
	e, _ := newTestEngine(t)
	h := e.Open(1, newFakeBuffer(handlerSource))

	bad := config.Default()
	bad.MarkSelectedNodes = 9
	require.Error(t, e.SetOptions(bad))

	opts := config.Default()
	opts.SelfToAttribute = false
	require.NoError(t, e.SetOptions(opts))
	assert.False(t, e.Options().SelfToAttribute)
	assert.False(t, h.Options().SelfToAttribute)
}

func TestComplete(t *testing.T) {
	assert.Equal(t, []string{CmdEnable, CmdError}, Complete("e"))
	assert.Equal(t, Commands, Complete(""))
	assert.Empty(t, Complete("zzz"))
}
