package shade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jward/shade/internal/analysis"
	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/errtrack"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/navigate"
	"github.com/jward/shade/internal/parser"
	"github.com/jward/shade/internal/span"
)

// ErrNoAnalysis is returned by queries on a handler that has not completed
// a successful run yet.
var ErrNoAnalysis = errors.New("shade: buffer has not been analysed")

// ErrClosed is returned by Refresh after Shutdown.
var ErrClosed = errors.New("shade: handler is shut down")

// Handler runs the analysis pipeline for one buffer. Runs are triggered by
// Update (debounced, on a background goroutine) or Refresh (synchronous).
// A run started for a revision that has since been superseded is cancelled
// and its result dropped; results are applied in revision order.
type Handler struct {
	id       BufferID
	buf      Buffer
	renderer Renderer
	diag     Diagnostics
	logger   *slog.Logger
	now      func() time.Time

	// mu guards scheduling state.
	mu       sync.Mutex
	opts     config.Options
	revision uint64
	cancel   context.CancelFunc
	timer    *time.Timer
	closed   bool
	wg       sync.WaitGroup

	// applyMu serializes applying results and guards the rendered state.
	applyMu  sync.Mutex
	applied  uint64
	rendered highlight.Set
	current  *analysis.Analysis
	marked   []span.Range
	errs     *errtrack.Tracker
	errTimer *time.Timer
}

func newHandler(e *Engine, id BufferID, buf Buffer) *Handler {
	return &Handler{
		id:       id,
		buf:      buf,
		renderer: e.renderer,
		diag:     e.diag,
		logger:   e.logger.With("buffer", int(id)),
		now:      e.now,
		opts:     e.opts,
		rendered: highlight.Set{},
		errs:     errtrack.New(e.opts.ErrorSignDelay),
	}
}

// ID returns the buffer the handler serves.
func (h *Handler) ID() BufferID { return h.id }

// Options returns the options the next run will use.
func (h *Handler) Options() config.Options {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts
}

func (h *Handler) setOptions(opts config.Options) {
	h.mu.Lock()
	h.opts = opts
	h.mu.Unlock()

	h.applyMu.Lock()
	h.errs = errtrack.New(opts.ErrorSignDelay)
	h.applyMu.Unlock()
}

// Update schedules a run for the buffer's current text. Pending and
// in-flight runs for older text are cancelled. The run starts after the
// configured per-line delay; calls within the delay coalesce.
func (h *Handler) Update() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	rev, ctx := h.bumpLocked()
	text := h.buf.Text()
	opts := h.opts

	h.wg.Add(1)
	run := func() {
		defer h.wg.Done()
		_ = h.run(ctx, rev, text, opts)
	}
	delay := opts.UpdateDelay(strings.Count(text, "\n") + 1)
	if delay <= 0 {
		go run()
		return
	}
	h.timer = time.AfterFunc(delay, run)
}

// Refresh analyses the current text synchronously and applies the result.
// It returns the run's error: a *parser.SyntaxError when the text does not
// parse, the diagnostic error of an aborted run, or ctx's error.
func (h *Handler) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	rev, runCtx := h.bumpLocked()
	text := h.buf.Text()
	opts := h.opts
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	stop := context.AfterFunc(ctx, h.cancelRevision(rev))
	defer stop()
	return h.run(runCtx, rev, text, opts)
}

// bumpLocked starts a new revision and cancels the work of the previous
// one.
func (h *Handler) bumpLocked() (uint64, context.Context) {
	if h.cancel != nil {
		h.cancel()
	}
	if h.timer != nil && h.timer.Stop() {
		h.wg.Done()
	}
	h.timer = nil

	h.revision++
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	return h.revision, ctx
}

func (h *Handler) cancelRevision(rev uint64) func() {
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.revision == rev && h.cancel != nil {
			h.cancel()
		}
	}
}

func (h *Handler) latest() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revision
}

// run analyses text and applies the result if rev is still the latest
// revision when the analysis finishes.
func (h *Handler) run(ctx context.Context, rev uint64, text string, opts config.Options) (err error) {
	runID := uuid.NewString()
	log := h.logger.With("run", runID, "revision", rev)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("shade: panic during analysis: %v", r)
			h.report(Diagnostic{RunID: runID, Buffer: h.id, Revision: rev, Err: err, Stack: string(debug.Stack())})
		}
	}()

	start := h.now()
	a, err := analysis.Analyze(ctx, []byte(text), opts)
	if ctx.Err() != nil {
		log.Debug("run cancelled")
		return ctx.Err()
	}

	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	if rev != h.latest() || rev <= h.applied {
		log.Debug("dropping stale result", "latest", h.latest(), "applied", h.applied)
		return nil
	}
	h.applied = rev

	var synErr *parser.SyntaxError
	switch {
	case errors.As(err, &synErr):
		log.Debug("syntax error, keeping previous highlights", "error", synErr)
		h.trackError(synErr, opts)
		return err
	case err != nil:
		log.Error("analysis aborted", "error", err)
		h.report(Diagnostic{RunID: runID, Buffer: h.id, Revision: rev, Err: err})
		return err
	}

	h.render(a, opts)
	if a.Recovered != nil {
		h.trackError(a.Recovered, opts)
	} else {
		h.errorChange(h.errs.Succeed())
	}
	log.Debug("run applied", "nodes", len(a.Set), "repaired", a.Repaired, "took", h.now().Sub(start))
	return nil
}

func (h *Handler) report(d Diagnostic) {
	h.logger.Error("run aborted", "run", d.RunID, "revision", d.Revision, "error", d.Err)
	h.diag.Report(d)
}

// render diffs a against the rendered state. Caller holds applyMu.
func (h *Handler) render(a *analysis.Analysis, opts config.Options) {
	dopts := opts.Diff()
	dopts.ViewportFirst, dopts.ViewportLast = h.buf.Viewport()
	res := highlight.Diff(h.rendered, a.Set, dopts)
	if !res.Empty() {
		h.renderer.Apply(h.id, res)
		h.rendered = highlight.Apply(h.rendered, res)
	}
	h.current = a
}

// trackError feeds a syntax error to the tracker. Caller holds applyMu.
func (h *Handler) trackError(synErr *parser.SyntaxError, opts config.Options) {
	if !opts.ErrorSign {
		return
	}
	h.errorChange(h.errs.Fail(errtrack.Record{Range: synErr.Range, Message: synErr.Message}, h.now()))
}

// errorChange forwards a tracker transition to the renderer and arms the
// timer of a pending error. Caller holds applyMu.
func (h *Handler) errorChange(c errtrack.Change) {
	switch c {
	case errtrack.Show:
		if rec, ok := h.errs.Current(); ok {
			h.renderer.ShowError(h.id, &rec)
		}
	case errtrack.Hide:
		h.renderer.ClearError(h.id)
	}

	if h.errTimer != nil {
		h.errTimer.Stop()
		h.errTimer = nil
	}
	if deadline, ok := h.errs.Deadline(); ok {
		h.errTimer = time.AfterFunc(deadline.Sub(h.now()), h.tickErrors)
	}
}

func (h *Handler) tickErrors() {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	if c := h.errs.Tick(h.now()); c != errtrack.Unchanged {
		h.errorChange(c)
	}
}

// MarkSelected marks the nodes related to the name under the cursor,
// according to the mark_selected_nodes option. The renderer is called only
// when the marked set changes.
func (h *Handler) MarkSelected() {
	opts := h.Options()

	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	var ranges []span.Range
	if opts.MarkSelectedNodes != config.MarkNone && h.current != nil {
		ranges = navigate.Mark(h.current.Scopes, h.buf.Cursor(), opts.Navigate())
	}
	if slices.Equal(ranges, h.marked) {
		return
	}
	h.marked = ranges
	h.renderer.Mark(h.id, ranges)
}

// Clear removes every highlight and mark of the buffer. The next run
// renders from scratch.
func (h *Handler) Clear() {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	if len(h.rendered) > 0 {
		h.renderer.Apply(h.id, highlight.Result{Mode: highlight.Full})
		h.rendered = highlight.Set{}
	}
	if h.marked != nil {
		h.marked = nil
		h.renderer.Mark(h.id, nil)
	}
}

// Rename computes the edits renaming the name under the cursor. The edits
// refer to the last successfully analysed text.
func (h *Handler) Rename(newName string) ([]navigate.Edit, error) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	if h.current == nil {
		return nil, ErrNoAnalysis
	}
	return navigate.Rename(h.current.Scopes, h.buf.Cursor(), newName)
}

// Goto returns the start of the next node of kind in direction dir from
// the cursor. Kind "error" jumps to the current syntax error.
func (h *Handler) Goto(kind string, dir navigate.Direction) (span.Position, bool, error) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	if kind == "error" {
		rec, ok := h.errs.Current()
		return rec.Range.Start, ok, nil
	}
	if h.current == nil {
		return span.Position{}, false, ErrNoAnalysis
	}
	return navigate.Goto(h.current.Scopes, kind, dir, h.buf.Cursor())
}

// SyntaxError returns the tracked syntax error, pending or visible.
func (h *Handler) SyntaxError() (errtrack.Record, bool) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	return h.errs.Current()
}

// ShowError draws the tracked error immediately, regardless of its delay.
func (h *Handler) ShowError() (errtrack.Record, bool) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	rec, ok := h.errs.Current()
	if ok {
		h.renderer.ShowError(h.id, &rec)
	}
	return rec, ok
}

// Current returns the last applied analysis, or nil.
func (h *Handler) Current() *analysis.Analysis {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	return h.current
}

// Rendered returns a copy of the highlights as the renderer shows them.
func (h *Handler) Rendered() highlight.Set {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	out := make(highlight.Set, len(h.rendered))
	for k, e := range h.rendered {
		out[k] = e
	}
	return out
}

// Wait blocks until every scheduled run has finished or been cancelled.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Shutdown cancels pending work and waits for in-flight runs. Later
// Updates are ignored.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		h.bumpLocked()
		h.cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()

	h.applyMu.Lock()
	if h.errTimer != nil {
		h.errTimer.Stop()
		h.errTimer = nil
	}
	h.applyMu.Unlock()
}

func (h *Handler) String() string {
	return fmt.Sprintf("Handler(buffer=%d, revision=%d)", h.id, h.latest())
}
