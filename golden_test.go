package shade

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden test format. File names are base names inside src/; they may be
// omitted when src/ holds a single file.
type goldenFile struct {
	Highlights []goldenHighlight `json:"highlights,omitempty"`
	References []goldenRef       `json:"references,omitempty"`
}

type goldenHighlight struct {
	File     string `json:"file,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

type goldenLoc struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

type goldenRef struct {
	From goldenLoc   `json:"from"`
	To   []goldenLoc `json:"to"`
}

// TestGolden walks testdata/python/ and runs every level that has a
// golden.json next to its src/ directory.
func TestGolden(t *testing.T) {
	root := filepath.Join("testdata", "python")
	levels, err := os.ReadDir(root)
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, level := range levels {
		if !level.IsDir() {
			continue
		}
		testDir := filepath.Join(root, level.Name())
		goldenPath := filepath.Join(testDir, "golden.json")
		srcDir := filepath.Join(testDir, "src")
		if _, err := os.Stat(goldenPath); err != nil {
			continue
		}
		t.Run(level.Name(), func(t *testing.T) {
			runGoldenTest(t, srcDir, goldenPath)
		})
	}
}

func runGoldenTest(t *testing.T, srcDir, goldenPath string) {
	t.Helper()

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(data, &golden))

	entries, err := os.ReadDir(srcDir)
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(srcDir, e.Name()))
		}
	}
	require.NotEmpty(t, paths)
	defaultFile := filepath.Base(paths[0])

	ix := newTestIndexer(t)
	stats, err := ix.IndexFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Equal(t, len(paths), stats.Indexed)

	fileOr := func(name string) string {
		if name == "" {
			name = defaultFile
		}
		return filepath.Join(srcDir, name)
	}

	t.Run("highlights", func(t *testing.T) {
		for _, exp := range golden.Highlights {
			verifyHighlight(t, ix, fileOr(exp.File), exp)
		}
	})

	t.Run("references", func(t *testing.T) {
		q := ix.Query()
		for _, exp := range golden.References {
			locs, err := q.References(fileOr(exp.From.File), exp.From.Line, exp.From.Col)
			require.NoError(t, err)

			var got, want []goldenLoc
			for _, l := range locs {
				got = append(got, goldenLoc{File: filepath.Base(l.File), Line: l.StartLine, Col: l.StartCol})
			}
			for _, to := range exp.To {
				want = append(want, goldenLoc{File: filepath.Base(fileOr(to.File)), Line: to.Line, Col: to.Col})
			}
			assert.ElementsMatch(t, want, got, "references from %d:%d", exp.From.Line, exp.From.Col)
		}
	})
}

func verifyHighlight(t *testing.T, ix *Indexer, path string, exp goldenHighlight) {
	t.Helper()
	f, err := ix.Store().FileByPath(path)
	require.NoError(t, err)
	require.NotNil(t, f, "file %s not indexed", path)

	occs, err := ix.Store().OccurrencesAt(f.ID, exp.Line, exp.Col)
	require.NoError(t, err)
	for _, o := range occs {
		if o.Name == exp.Name && o.StartLine == exp.Line && o.StartCol == exp.Col {
			assert.Equal(t, exp.Category, o.Category, "%s at %d:%d", exp.Name, exp.Line, exp.Col)
			return
		}
	}
	t.Errorf("no occurrence of %s starting at %d:%d (found %d overlapping)", exp.Name, exp.Line, exp.Col, len(occs))
}
