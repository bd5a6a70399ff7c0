package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jward/shade"
	"github.com/jward/shade/internal/errtrack"
	"github.com/jward/shade/internal/highlight"
	"github.com/jward/shade/internal/span"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-highlight a file whenever it changes, printing the diffs",
	Long:  "Runs the editor pipeline against a file on disk: each save schedules a debounced run and the resulting highlight diff is printed. Stops on interrupt.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if err := watchFile(ctx, cmd.OutOrStdout(), args[0]); err != nil {
			return outputError(cmd, "watch", err)
		}
		return nil
	},
}

// fileBuffer is a Buffer backed by a file on disk.
type fileBuffer struct {
	path string

	mu   sync.Mutex
	text string
}

func (b *fileBuffer) reload() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = string(data)
	return nil
}

func (b *fileBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *fileBuffer) Cursor() span.Position { return span.Position{Line: 1} }

func (b *fileBuffer) Viewport() (int, int) { return 0, 0 }

// printRenderer prints what an editor would draw.
type printRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

func (r *printRenderer) Apply(_ shade.BufferID, res highlight.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	adds, removes := res.Counts()
	fmt.Fprintf(r.w, "%s +%d -%d\n", headingColor.Sprint(res.Mode), adds, removes)
	for _, op := range res.Ops {
		sign := addColor.Sprint("+")
		if op.Kind == highlight.Remove {
			sign = removeColor.Sprint("-")
		}
		fmt.Fprintf(r.w, "  %s %s %s %s\n", sign, op.Range.Start, op.Name, paintCategory(op.Category.String()))
	}
}

func (r *printRenderer) Mark(shade.BufferID, []span.Range) {}

func (r *printRenderer) ShowError(_ shade.BufferID, rec *errtrack.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s: %s\n", errorColor.Sprint("syntax error"), rec.Range.Start, rec.Message)
}

func (r *printRenderer) ClearError(shade.BufferID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, addColor.Sprint("syntax error fixed"))
}

// watchFile highlights path, then follows its changes until ctx ends.
func watchFile(ctx context.Context, w io.Writer, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	buf := &fileBuffer{path: abs}
	if err := buf.reload(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	e := shade.New(&printRenderer{w: w},
		shade.WithOptions(options),
		shade.WithLogger(logger),
		shade.WithDiagnostics(shade.DiagnosticsFunc(func(d shade.Diagnostic) {
			logger.Error("run aborted", "diagnostic", d.String())
		})),
	)
	defer e.Shutdown()

	const id shade.BufferID = 1
	e.Open(id, buf)
	reply, err := e.Dispatch(ctx, id, shade.CmdEnable)
	if err != nil {
		return err
	}
	if reply.Message != "" {
		fmt.Fprintln(w, reply.Message)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := buf.reload(); err != nil {
				logger.Warn("reload failed", "file", abs, "error", err)
				continue
			}
			logger.Debug("file changed", "file", abs, "op", ev.Op.String())
			e.TextChanged(id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
