package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteListFile_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list_valids.txt")

	require.NoError(t, os.WriteFile(path, []byte("OLD\nLONGER\nCONTENT\n"), 0o644))
	require.NoError(t, writeListFile(path, []string{"NEW"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "NEW\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "list_valids.txt", entries[0].Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWriteListFile_FailureCleansTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list_useds.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0o755))

	err := writeListFile(path, []string{"A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to rename list file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadListFile(t *testing.T) {
	dir := t.TempDir()

	codes, err := readListFile(filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.Empty(t, codes)

	path := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("A\n\nB\nA\n"), 0o644))
	codes, err = readListFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, codes)

	_, err = readListFile(dir)
	require.Error(t, err)
}
