package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func locations(batches []Batch) []string {
	out := make([]string, 0, len(batches))
	for _, b := range batches {
		out = append(out, b.Location())
	}
	return out
}

func TestMountSource_DiscoverOrder(t *testing.T) {
	base := t.TempDir()
	missing := filepath.Join(base, "missing")
	media := filepath.Join(base, "media")
	usb := filepath.Join(base, "usb")

	writeFile(t, filepath.Join(media, "zeta", DefaultFilename), "a\n")
	writeFile(t, filepath.Join(media, "alpha", DefaultFilename+".gz"), "")
	writeFile(t, filepath.Join(media, DefaultFilename), "b\n")
	writeFile(t, filepath.Join(media, "empty", "other.txt"), "x\n")
	writeFile(t, filepath.Join(usb, DefaultFilename), "c\n")

	src := NewMountSource([]string{missing, media, usb}, "", zerolog.Nop())
	batches, err := src.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(media, DefaultFilename),
		filepath.Join(media, "alpha", DefaultFilename+".gz"),
		filepath.Join(media, "zeta", DefaultFilename),
		filepath.Join(usb, DefaultFilename),
	}, locations(batches))
}

func TestMountSource_SkipsNonDirectoryRoot(t *testing.T) {
	base := t.TempDir()
	notDir := filepath.Join(base, "file")
	writeFile(t, notDir, "x")
	good := filepath.Join(base, "good")
	writeFile(t, filepath.Join(good, DefaultFilename), "c\n")

	src := NewMountSource([]string{notDir, good}, DefaultFilename, zerolog.Nop())
	batches, err := src.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(good, DefaultFilename)}, locations(batches))
}

func TestMountSource_IgnoresDirectoryNamedLikeBatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, DefaultFilename), 0o755))

	src := NewMountSource([]string{root}, DefaultFilename, zerolog.Nop())
	batches, err := src.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestMountSource_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultFilename), "c\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewMountSource([]string{root}, DefaultFilename, zerolog.Nop())
	_, err := src.Discover(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileBatch_OpenAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	writeFile(t, path, "123\n")

	b := NewFileBatch(path)
	rc, err := b.Open(context.Background())
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "123\n", string(data))

	require.NoError(t, b.Remove(context.Background()))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, b.Remove(context.Background()))
	_, err = b.Open(context.Background())
	assert.Error(t, err)
}

func TestMountSource_ListFailureKeepsRootBatch(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultFilename), "a\n")
	writeFile(t, filepath.Join(other, DefaultFilename), "b\n")

	src := NewMountSource([]string{root, other}, DefaultFilename, zerolog.Nop())
	src.readDir = func(name string) ([]os.DirEntry, error) {
		if name == root {
			return nil, os.ErrPermission
		}
		return os.ReadDir(name)
	}

	batches, err := src.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, DefaultFilename),
		filepath.Join(other, DefaultFilename),
	}, locations(batches))
}
