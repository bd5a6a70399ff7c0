package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	// TempDir has no .git directory anywhere in its ancestry
	// (unless /tmp itself is a repo, which would be unusual).
	dir := t.TempDir()

	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	for _, f := range []string{"text", "json", "yaml"} {
		assert.NoError(t, validateFormat(f), f)
	}
	err := validateFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text, json, yaml")
}

func TestResolveTargetDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	file := filepath.Join(dir, "m.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = resolveTargetDir([]string{file})
	assert.ErrorContains(t, err, "not a directory")

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	assert.ErrorContains(t, err, "directory not found")
}
