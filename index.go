package shade

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/jward/shade/internal/config"
	"github.com/jward/shade/internal/logx"
	"github.com/jward/shade/internal/store"
)

// schemaVersion is folded into the settings hash so that a database built
// by an older export layout is rebuilt.
const schemaVersion = "1"

const settingsHashKey = "settings_hash"

// Indexer exports the analyses of Python files into a SQLite database for
// offline queries. Files are analysed independently; nothing is resolved
// across files.
type Indexer struct {
	store   *store.Store
	opts    config.Options
	logger  *slog.Logger
	workers int
	now     func() time.Time
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIndexOptions sets the options files are analysed with.
func WithIndexOptions(opts config.Options) IndexerOption {
	return func(ix *Indexer) {
		ix.opts = opts
	}
}

// WithIndexLogger sets the logger.
func WithIndexLogger(l *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		ix.logger = l
	}
}

// WithWorkers bounds the number of files analysed concurrently. Values
// below 1 mean one worker per CPU.
func WithWorkers(n int) IndexerOption {
	return func(ix *Indexer) {
		ix.workers = n
	}
}

// NewIndexer opens (and migrates) the database at dbPath.
func NewIndexer(dbPath string, opts ...IndexerOption) (*Indexer, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("shade: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("shade: migrate: %w", err)
	}

	ix := &Indexer{
		store:  s,
		opts:   config.Default(),
		logger: logx.NewDiscardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// Close releases the database.
func (ix *Indexer) Close() error {
	return ix.store.Close()
}

// Store returns the underlying Store for direct access.
func (ix *Indexer) Store() *Store {
	return ix.store
}

// Query returns a Query over the database.
func (ix *Indexer) Query() *Query {
	return &Query{store: ix.store}
}

// settingsHash covers the options that change what gets exported.
func (ix *Indexer) settingsHash() string {
	return store.SettingsHash(map[string]string{
		"schema":                 schemaVersion,
		"self_to_attribute":      strconv.FormatBool(ix.opts.SelfToAttribute),
		"tolerate_syntax_errors": strconv.FormatBool(ix.opts.TolerateSyntaxErrors),
	})
}

// SettingsChanged reports whether the database was built with different
// export settings (or is new). When true, callers should Reset before
// indexing, since unchanged files would otherwise keep stale rows.
func (ix *Indexer) SettingsChanged() bool {
	stored, err := ix.store.GetMetadata(settingsHashKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != ix.settingsHash()
}

// Reset removes every indexed file.
func (ix *Indexer) Reset() error {
	files, err := ix.store.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ix.store.DeleteFile(f.ID); err != nil {
			return fmt.Errorf("reset %s: %w", f.Path, err)
		}
	}
	return nil
}

// Stats summarizes one indexing pass.
type Stats struct {
	Indexed      int `json:"indexed"`
	Skipped      int `json:"skipped"` // unchanged since the last pass
	Removed      int `json:"removed"` // no longer present on disk
	Repaired     int `json:"repaired"`
	SyntaxErrors int `json:"syntaxErrors"` // recorded without analysis rows
	Failed       int `json:"failed"`
}

// IndexDirectory indexes the Python files under root. Inside a git work
// tree it uses git ls-files to honour ignore rules; otherwise it walks the
// directory, applying root/.gitignore. Files indexed earlier under root
// that no longer exist are removed.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string) (Stats, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		ix.logger.Debug("git ls-files unavailable, walking", "root", root, "error", err)
		if paths, err = walkListFiles(ctx, root); err != nil {
			return Stats{}, err
		}
	}

	removed, err := ix.prune(root, paths)
	if err != nil {
		return Stats{}, err
	}
	stats, err := ix.IndexFiles(ctx, paths)
	stats.Removed = removed
	return stats, err
}

// prune deletes files under root that are not in paths.
func (ix *Indexer) prune(root string, paths []string) (int, error) {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}
	files, err := ix.store.Files()
	if err != nil {
		return 0, err
	}
	prefix := filepath.Clean(root) + string(filepath.Separator)
	removed := 0
	for _, f := range files {
		if !strings.HasPrefix(f.Path, prefix) || keep[f.Path] {
			continue
		}
		if err := ix.store.DeleteFile(f.ID); err != nil {
			return removed, fmt.Errorf("prune %s: %w", f.Path, err)
		}
		removed++
	}
	return removed, nil
}

// isPython reports whether path names a Python source or stub file.
func isPython(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		return true
	}
	return false
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) Python files under root.
func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !isPython(line) {
			continue
		}
		abs := filepath.Join(root, line)
		if _, err := os.Stat(abs); err != nil {
			continue // deleted but still in the index
		}
		paths = append(paths, abs)
	}
	return paths, nil
}

// skipDirs are never descended into by walkListFiles.
var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
}

// walkListFiles discovers Python files by walking root, skipping hidden
// directories, skipDirs and whatever root/.gitignore excludes.
func walkListFiles(ctx context.Context, root string) ([]string, error) {
	var ignore *gitignore.GitIgnore
	if gi := filepath.Join(root, ".gitignore"); fileExists(gi) {
		ignore, _ = gitignore.CompileIgnoreFile(gi)
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || skipDirs[name] || (ignore != nil && ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPython(path) || (ignore != nil && ignore.MatchesPath(rel)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
