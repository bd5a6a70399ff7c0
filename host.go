package shade

import (
	"fmt"

	"github.com/jward/shade/internal/errtrack"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/span"
)

// BufferID identifies an open buffer of the host editor.
type BufferID int

// Buffer is the host's view of one open buffer. Implementations must be
// safe for concurrent use: Text is read when an update is scheduled, Cursor
// and Viewport when results are applied.
type Buffer interface {
	Text() string
	Cursor() span.Position

	// Viewport returns the first and last visible line, 1-based and
	// inclusive. (0, 0) means unknown.
	Viewport() (first, last int)
}

// Renderer applies results to the host. Calls for one buffer are
// serialized and arrive in revision order.
type Renderer interface {
	// Apply renders a diff. A Full result replaces every highlight of the
	// buffer.
	Apply(id BufferID, r highlight.Result)

	// Mark replaces the set of marked ranges. nil clears it.
	Mark(id BufferID, ranges []span.Range)

	ShowError(id BufferID, rec *errtrack.Record)
	ClearError(id BufferID)
}

// Diagnostic describes a run that was aborted by a bug rather than by the
// analysed source: an inconsistent scope tree or a recovered panic.
type Diagnostic struct {
	RunID    string
	Buffer   BufferID
	Revision uint64
	Err      error
	Stack    string // set for panics
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("run %s (buffer %d, revision %d): %v", d.RunID, d.Buffer, d.Revision, d.Err)
}

// Diagnostics receives out-of-band reports of aborted runs.
type Diagnostics interface {
	Report(d Diagnostic)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(Diagnostic)

func (f DiagnosticsFunc) Report(d Diagnostic) { f(d) }

type discardDiagnostics struct{}

func (discardDiagnostics) Report(Diagnostic) {}
