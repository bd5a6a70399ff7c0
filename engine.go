package shade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/logx"
	"github.com/jward/shade/internal/navigate"
	"github.com/jward/shade/internal/parser"
	"github.com/jward/shade/internal/span"
)

var (
	// ErrUnknownBuffer is returned for buffers that were never opened.
	ErrUnknownBuffer = errors.New("shade: unknown buffer")
	// ErrUnknownCommand is wrapped by Dispatch for unknown command names.
	ErrUnknownCommand = errors.New("shade: unknown command")
)

// Command names accepted by Dispatch.
const (
	CmdEnable    = "enable"
	CmdDisable   = "disable"
	CmdToggle    = "toggle"
	CmdPause     = "pause"
	CmdClear     = "clear"
	CmdHighlight = "highlight"
	CmdRename    = "rename"
	CmdError     = "error"
	CmdGoto      = "goto"
	CmdStatus    = "status"
)

// Commands lists the command names in completion order.
var Commands = []string{
	CmdEnable, CmdDisable, CmdToggle, CmdPause, CmdClear,
	CmdHighlight, CmdRename, CmdError, CmdGoto, CmdStatus,
}

// Engine owns one Handler per open buffer and routes host events and
// commands to them. Buffers share nothing but the renderer and options.
type Engine struct {
	renderer Renderer
	diag     Diagnostics
	logger   *slog.Logger
	now      func() time.Time
	opts     config.Options

	mu       sync.Mutex
	handlers map[BufferID]*Handler

	// attached buffers react to TextChanged and CursorMoved.
	attached map[BufferID]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithOptions sets the user options. They must be valid.
func WithOptions(opts config.Options) Option {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock replaces time.Now, for the error sign delay.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDiagnostics sets the receiver of aborted-run reports.
func WithDiagnostics(d Diagnostics) Option {
	return func(e *Engine) {
		e.diag = d
	}
}

// New creates an Engine that renders through r.
func New(r Renderer, opts ...Option) *Engine {
	e := &Engine{
		renderer: r,
		diag:     discardDiagnostics{},
		logger:   logx.NewDiscardLogger(),
		now:      time.Now,
		opts:     config.Default(),
		handlers: make(map[BufferID]*Handler),
		attached: make(map[BufferID]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options returns the engine-wide options.
func (e *Engine) Options() config.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// SetOptions validates and installs new options. Runs scheduled after the
// call use them; the error tracker of every buffer restarts.
func (e *Engine) SetOptions(opts config.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.opts = opts
	handlers := e.handlerList()
	e.mu.Unlock()

	for _, h := range handlers {
		h.setOptions(opts)
	}
	return nil
}

// Open returns the handler of buffer id, creating it for buf on first use.
func (e *Engine) Open(id BufferID, buf Buffer) *Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.handlers[id]; ok {
		return h
	}
	h := newHandler(e, id, buf)
	e.handlers[id] = h
	e.logger.Debug("buffer opened", "buffer", int(id))
	return h
}

// Handler returns the handler of an open buffer.
func (e *Engine) Handler(id BufferID) (*Handler, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handlers[id]
	return h, ok
}

// Close shuts the buffer's handler down and forgets the buffer.
func (e *Engine) Close(id BufferID) {
	e.mu.Lock()
	h, ok := e.handlers[id]
	delete(e.handlers, id)
	delete(e.attached, id)
	e.mu.Unlock()
	if ok {
		h.Shutdown()
	}
}

// Shutdown closes every buffer.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	handlers := e.handlerList()
	e.handlers = make(map[BufferID]*Handler)
	e.attached = make(map[BufferID]bool)
	e.mu.Unlock()
	for _, h := range handlers {
		h.Shutdown()
	}
}

// Attached reports whether the buffer reacts to edits and cursor moves.
func (e *Engine) Attached(id BufferID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached[id]
}

// TextChanged schedules an update of an attached buffer.
func (e *Engine) TextChanged(id BufferID) {
	if h, ok := e.attachedHandler(id); ok {
		h.Update()
	}
}

// CursorMoved refreshes the marked nodes of an attached buffer.
func (e *Engine) CursorMoved(id BufferID) {
	if h, ok := e.attachedHandler(id); ok {
		h.MarkSelected()
	}
}

func (e *Engine) attachedHandler(id BufferID) (*Handler, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.attached[id] {
		return nil, false
	}
	h, ok := e.handlers[id]
	return h, ok
}

// handlerList returns the handlers ordered by buffer. Caller holds mu.
func (e *Engine) handlerList() []*Handler {
	out := make([]*Handler, 0, len(e.handlers))
	for _, h := range e.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Reply is the outcome of a command.
type Reply struct {
	Message  string          `json:"message,omitempty"`
	Edits    []navigate.Edit `json:"edits,omitempty"`
	Position *span.Position  `json:"position,omitempty"`
}

// Complete returns the command names starting with prefix.
func Complete(prefix string) []string {
	var out []string
	for _, c := range Commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Dispatch runs a named command against buffer id.
//
//	enable             attach the buffer and highlight it now
//	disable            clear highlights, detach and forget the buffer
//	toggle             enable a detached buffer, disable an attached one
//	pause              detach, keeping the current highlights
//	clear              remove every highlight and mark
//	highlight          analyse and render now
//	rename NAME        compute the edits renaming the name under the cursor
//	error              show the tracked syntax error now
//	goto KIND [DIR]    locate the next (prev, first, last) node of KIND
//	status             describe the engine state
func (e *Engine) Dispatch(ctx context.Context, id BufferID, name string, args ...string) (Reply, error) {
	e.logger.Debug("dispatch", "buffer", int(id), "command", name, "args", args)

	if name == CmdStatus {
		return Reply{Message: e.status(id)}, nil
	}
	if !isCommand(name) {
		return Reply{}, fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	h, ok := e.Handler(id)
	if !ok {
		return Reply{}, fmt.Errorf("%s: %w %d", name, ErrUnknownBuffer, id)
	}

	switch name {
	case CmdEnable:
		return e.enable(ctx, h)
	case CmdDisable:
		h.Clear()
		e.Close(id)
		return Reply{}, nil
	case CmdToggle:
		if e.Attached(id) {
			return e.Dispatch(ctx, id, CmdDisable)
		}
		return e.enable(ctx, h)
	case CmdPause:
		e.setAttached(id, false)
		return Reply{}, nil
	case CmdClear:
		h.Clear()
		return Reply{}, nil
	case CmdHighlight:
		return highlightReply(h.Refresh(ctx))
	case CmdRename:
		if len(args) != 1 {
			return Reply{}, fmt.Errorf("rename: expected a new name")
		}
		edits, err := h.Rename(args[0])
		if err != nil {
			return Reply{}, err
		}
		return Reply{Edits: edits, Message: fmt.Sprintf("%d occurrence(s) renamed", len(edits))}, nil
	case CmdError:
		rec, ok := h.ShowError()
		if !ok {
			return Reply{Message: "no syntax error"}, nil
		}
		return Reply{Message: rec.Message, Position: &rec.Range.Start}, nil
	case CmdGoto:
		return gotoReply(h, args)
	}
	return Reply{}, fmt.Errorf("%w %q", ErrUnknownCommand, name)
}

func (e *Engine) enable(ctx context.Context, h *Handler) (Reply, error) {
	e.setAttached(h.id, true)
	reply, err := highlightReply(h.Refresh(ctx))
	if err != nil {
		return reply, err
	}
	h.MarkSelected()
	return reply, nil
}

func (e *Engine) setAttached(id BufferID, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on {
		e.attached[id] = true
	} else {
		delete(e.attached, id)
	}
}

// highlightReply turns a syntax error into a message: highlighting keeps
// its previous state and the tracker takes care of the error.
func highlightReply(err error) (Reply, error) {
	var synErr *parser.SyntaxError
	if errors.As(err, &synErr) {
		return Reply{Message: synErr.Error(), Position: &synErr.Range.Start}, nil
	}
	return Reply{}, err
}

func gotoReply(h *Handler, args []string) (Reply, error) {
	if len(args) < 1 || len(args) > 2 {
		return Reply{}, fmt.Errorf("goto: expected KIND [next|prev|first|last]")
	}
	dir := navigate.Next
	if len(args) == 2 {
		var err error
		if dir, err = navigate.ParseDirection(args[1]); err != nil {
			return Reply{}, fmt.Errorf("goto: %w", err)
		}
	}
	pos, ok, err := h.Goto(args[0], dir)
	if err != nil {
		return Reply{}, fmt.Errorf("goto: %w", err)
	}
	if !ok {
		return Reply{Message: "no " + args[0] + " found"}, nil
	}
	return Reply{Position: &pos}, nil
}

func isCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

func (e *Engine) status(id BufferID) string {
	e.mu.Lock()
	h, ok := e.handlers[id]
	attached := e.attached[id]
	handlers := e.handlerList()
	e.mu.Unlock()

	state := "detached"
	if attached {
		state = "attached"
	}
	current := "(none)"
	syntaxError := "(not attached)"
	if ok {
		current = h.String()
		syntaxError = "(none)"
		if rec, found := h.SyntaxError(); found {
			syntaxError = fmt.Sprintf("%s: %s", rec.Range.Start, rec.Message)
		}
	}
	names := make([]string, len(handlers))
	for i, hh := range handlers {
		names[i] = hh.String()
	}
	return strings.Join([]string{
		fmt.Sprintf("shade is %s on buffer %d", state, id),
		"- current handler: " + current,
		"- handlers: [" + strings.Join(names, ", ") + "]",
		"- syntax error: " + syntaxError,
	}, "\n")
}
