package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/logx"
	"github.com/jward/shade/internal/store"
)

// Runtime embeds a Risor VM and exposes analyses of Python source to
// user scripts, plus read access to an index database when one is given.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	opts       config.Options
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithOptions sets the options analyses run with.
func WithOptions(opts config.Options) RuntimeOption {
	return func(r *Runtime) {
		r.opts = opts
	}
}

// WithLogger sets the logger behind the scripts' log object.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime. s may be nil, in which case db_query and
// the indexed_* functions are not defined for scripts.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		opts:       config.Default(),
		logger:     logx.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. It returns the value of
// the script's last expression as a Go value.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (any, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.logger.Debug("running script", "script", label)
	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil || result == object.Nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"analyze":      makeAnalyzeFn(r.opts),
		"analyze_file": makeAnalyzeFileFn(r.opts),
		"nodes":        makeNodesFn(),
		"scopes":       makeScopesFn(),
		"mark":         makeMarkFn(),
		"rename":       makeRenameFn(),
		"diff":         makeDiffFn(),
		"jump":         makeJumpFn(),
		"log":          mustProxy(&logObject{logger: r.logger.With("component", "script")}),
	}

	if r.store != nil {
		globals["db_query"] = makeDBQueryFn(r.store)
		globals["indexed_files"] = makeIndexedFilesFn(r.store)
		globals["indexed_nodes"] = makeIndexedNodesFn(r.store)
		globals["indexed_summary"] = makeIndexedSummaryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
