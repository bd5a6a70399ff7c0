package scripts_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/shade/internal/runtime"
	"github.com/jward/shade/scripts"
)

const source = `def f(a, unused):
    return a + undefined
x = f(1, missing)
`

// runReport writes source to a temp file and runs an embedded report on it.
func runReport(t *testing.T, name string) any {
	t.Helper()
	path := filepath.Join(t.TempDir(), "m.py")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))

	rt := runtime.NewRuntime(nil, "", runtime.WithRuntimeFS(scripts.FS))
	got, err := rt.RunScript(context.Background(), filepath.Join("report", name+".risor"), map[string]any{"file": path})
	require.NoError(t, err)
	return got
}

func TestSummary(t *testing.T) {
	got := runReport(t, "summary")
	assert.Equal(t, map[string]any{
		"global":          int64(3),
		"parameter":       int64(2),
		"parameterUnused": int64(1),
		"unresolved":      int64(2),
	}, got)
}

func TestUnresolved(t *testing.T) {
	got := runReport(t, "unresolved")
	assert.Equal(t, []any{"2:15 undefined", "3:9 missing"}, got)
}

func TestUnused(t *testing.T) {
	got := runReport(t, "unused")
	assert.Equal(t, []any{"1:9 unused in module/function:f#0"}, got)
}

func TestEmbeddedScripts(t *testing.T) {
	for _, name := range []string{"categories.risor", "report/summary.risor", "report/unresolved.risor", "report/unused.risor"} {
		data, err := scripts.FS.ReadFile(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}
