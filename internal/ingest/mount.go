package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"ticket-kiosk/internal/code"

	"github.com/rs/zerolog"
)

// DefaultMountRoots are the directories where removable media appear.
var DefaultMountRoots = []string{
	"/media/pi",
	"/mnt/usb",
	"/mnt/d",
	"/mnt/e",
	"/mnt/f",
	"/mnt/g",
	"/mnt/h",
}

// MountSource looks for batch files on mounted removable media. For every
// root it checks <root>/<filename> and then <root>/<entry>/<filename> for
// each entry in name order. A gzip-compressed <filename>.gz is accepted
// wherever the plain file is.
type MountSource struct {
	roots    []string
	filename string
	readDir  func(name string) ([]os.DirEntry, error)
	logger   zerolog.Logger
}

// NewMountSource creates a source scanning roots in order.
func NewMountSource(roots []string, filename string, logger zerolog.Logger) *MountSource {
	if filename == "" {
		filename = DefaultFilename
	}
	return &MountSource{
		roots:    roots,
		filename: filename,
		readDir:  os.ReadDir,
		logger:   logger.With().Str("component", "mount-source").Logger(),
	}
}

// Name implements Source.
func (s *MountSource) Name() string {
	return "mount"
}

// Discover implements Source. A root that cannot be read is logged and
// skipped; it never hides batches on the other roots, nor the batches
// already found on that root.
func (s *MountSource) Discover(ctx context.Context) ([]Batch, error) {
	var batches []Batch
	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return batches, err
		}

		found, err := s.discoverRoot(root)
		batches = append(batches, found...)
		if err != nil {
			s.logger.Warn().Err(err).Str("root", root).Msg("failed to scan mount root")
		}
	}
	return batches, nil
}

func (s *MountSource) discoverRoot(root string) ([]Batch, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	var batches []Batch
	batches = append(batches, s.candidates(root)...)

	// os.ReadDir returns entries sorted by name.
	entries, err := s.readDir(root)
	if err != nil {
		return batches, fmt.Errorf("failed to list %s: %w", root, err)
	}
	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		if !isDir(dir) {
			continue
		}
		batches = append(batches, s.candidates(dir)...)
	}

	return batches, nil
}

func (s *MountSource) candidates(dir string) []Batch {
	var out []Batch
	for _, name := range []string{s.filename, s.filename + code.GzipSuffix} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, NewFileBatch(path))
	}
	return out
}

// isDir follows symlinks, as mounted devices are often linked.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FileBatch is a batch stored on a local filesystem.
type FileBatch struct {
	path string
}

// NewFileBatch wraps a local batch file.
func NewFileBatch(path string) *FileBatch {
	return &FileBatch{path: path}
}

// Location implements Batch.
func (b *FileBatch) Location() string {
	return b.path
}

// Open implements Batch.
func (b *FileBatch) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file %s: %w", b.path, err)
	}
	return f, nil
}

// Remove implements Batch.
func (b *FileBatch) Remove(ctx context.Context) error {
	if err := os.Remove(b.path); err != nil {
		return fmt.Errorf("failed to remove batch file %s: %w", b.path, err)
	}
	return nil
}
