package shade

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shade/internal/config"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewIndexer_InvalidPath(t *testing.T) {
	_, err := NewIndexer("/nonexistent/dir/shade.db")
	require.Error(t, err)
}

func TestIndexFiles_SkipsUnchanged(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "m.py"), handlerSource)
	ctx := context.Background()

	stats, err := ix.IndexFiles(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, Stats{Indexed: 1}, stats)

	stats, err = ix.IndexFiles(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, stats)

	writeFile(t, path, "y = 1\n")
	stats, err = ix.IndexFiles(ctx, []string{path})
	require.NoError(t, err)
	assert.Equal(t, Stats{Indexed: 1}, stats)

	files, err := ix.Query().Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 1, files[0].LineCount)

	unresolved, err := ix.Query().Unresolved()
	require.NoError(t, err)
	assert.Empty(t, unresolved, "rows of the old content are gone")
}

func TestIndexFiles_SyntaxError(t *testing.T) {
	ix := newTestIndexer(t, WithIndexOptions(intolerant()))
	path := writeFile(t, filepath.Join(t.TempDir(), "bad.py"), "def f(:\n")

	stats, err := ix.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.SyntaxErrors)

	f, err := ix.Store().FileByPath(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Contains(t, f.SyntaxError, "syntax error at 1:")
	assert.False(t, f.Repaired)

	occs, err := ix.Store().OccurrencesByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestIndexFiles_Repaired(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "half.py"), "x = (1,\ny = 2\n")

	stats, err := ix.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repaired)

	f, err := ix.Store().FileByPath(path)
	require.NoError(t, err)
	assert.True(t, f.Repaired)
	assert.NotEmpty(t, f.SyntaxError)
}

func TestIndexFiles_MissingFile(t *testing.T) {
	ix := newTestIndexer(t)
	_, err := ix.IndexFiles(context.Background(), []string{filepath.Join(t.TempDir(), "gone.py")})
	require.Error(t, err)
}

func TestIndexFiles_ManyFilesInParallel(t *testing.T) {
	ix := newTestIndexer(t, WithWorkers(3))
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		paths = append(paths, writeFile(t, filepath.Join(dir, name+".py"), "import os\nprint(os.sep, "+name+"_missing)\n"))
	}

	stats, err := ix.IndexFiles(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Indexed)

	unresolved, err := ix.Query().Unresolved()
	require.NoError(t, err)
	assert.Len(t, unresolved, 7)

	summary, err := ix.Query().Summary()
	require.NoError(t, err)
	assert.Equal(t, 7, summary["builtin"])
	assert.Equal(t, 14, summary["imported"])
	assert.Equal(t, 7, summary["attribute"])
}

func TestIndexDirectory_WalkHonoursIgnores(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, "pkg", "mod.pyi"), "def f() -> int: ...\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "not python\n")
	writeFile(t, filepath.Join(root, ".hidden", "secret.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, "__pycache__", "cached.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, "build", "gen.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, "scratch.py"), "x = 1\n")
	writeFile(t, filepath.Join(root, ".gitignore"), "build/\nscratch.py\n")

	paths, err := walkListFiles(context.Background(), root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "app.py"),
		filepath.Join(root, "pkg", "mod.pyi"),
	}, paths)
}

func TestIndexDirectory_PrunesDeletedFiles(t *testing.T) {
	ix := newTestIndexer(t)
	root := t.TempDir()
	keep := writeFile(t, filepath.Join(root, "keep.py"), "x = 1\n")
	gone := writeFile(t, filepath.Join(root, "gone.py"), "y = 2\n")
	ctx := context.Background()

	stats, err := ix.IndexDirectory(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Indexed)

	require.NoError(t, os.Remove(gone))
	stats, err = ix.IndexDirectory(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Skipped)

	files, err := ix.Query().Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, keep, files[0].Path)
}

func TestIndexer_SettingsChanged(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shade.db")
	path := writeFile(t, filepath.Join(t.TempDir(), "m.py"), handlerSource)

	ix, err := NewIndexer(dbPath)
	require.NoError(t, err)
	assert.True(t, ix.SettingsChanged(), "a new database has no settings")
	_, err = ix.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.False(t, ix.SettingsChanged())
	require.NoError(t, ix.Close())

	opts := config.Default()
	opts.SelfToAttribute = false
	ix, err = NewIndexer(dbPath, WithIndexOptions(opts))
	require.NoError(t, err)
	defer ix.Close()
	assert.True(t, ix.SettingsChanged())

	require.NoError(t, ix.Reset())
	files, err := ix.Query().Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestQuery_References(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "m.py"), handlerSource+"print(undefined)\n")
	_, err := ix.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)
	q := ix.Query()

	locs, err := q.References(path, 1, 6)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, Location{File: path, StartLine: 1, StartCol: 6, EndLine: 1, EndCol: 7, Name: "a", Category: "parameter"}, locs[0])

	locs, err = q.References(path, 4, 8)
	require.NoError(t, err)
	require.Len(t, locs, 2, "unbound names group by name within the file")
	assert.Equal(t, 2, locs[0].StartLine)

	locs, err = q.References(path, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, locs, "keywords are not names")

	locs, err = q.References("/not/indexed.py", 1, 0)
	require.NoError(t, err)
	assert.Nil(t, locs)
}

func TestQuery_ByCategory(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "m.py"), handlerSource)
	_, err := ix.IndexFiles(context.Background(), []string{path})
	require.NoError(t, err)

	locs, err := ix.Query().ByCategory("parameter")
	require.NoError(t, err)
	assert.Len(t, locs, 2)

	_, err = ix.Query().ByCategory("bogus")
	require.Error(t, err)
}
