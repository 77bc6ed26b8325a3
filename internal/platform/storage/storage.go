// Package storage provides blob persistence for uploaded attachments,
// generated thumbnails, and report files. It is a thin layer over an
// afero filesystem so tests can run against an in-memory Fs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrBlobNotFound is returned by Open when no blob exists at the path.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore stores and retrieves opaque files under a root directory.
type BlobStore struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// NewBlobStore creates a BlobStore rooted at dir on the OS filesystem.
// The directory is created if it does not exist.
func NewBlobStore(dir string, logger *slog.Logger) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	return NewBlobStoreWithFs(afero.NewBasePathFs(afero.NewOsFs(), dir), dir, logger), nil
}

// NewBlobStoreWithFs creates a BlobStore over an arbitrary filesystem.
// Tests pass afero.NewMemMapFs().
func NewBlobStoreWithFs(fs afero.Fs, root string, logger *slog.Logger) *BlobStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &BlobStore{
		fs:     fs,
		root:   root,
		logger: logger.With(slog.String("component", "blob_store")),
	}
}

// Put writes the contents of r to name, creating parent directories as
// needed. An existing blob at the same name is overwritten.
func (s *BlobStore) Put(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(name); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	f, err := s.fs.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create blob %q: %w", name, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write blob %q: %w", name, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close blob %q: %w", name, err)
	}

	s.logger.Debug("blob stored", slog.String("name", name))
	return nil
}

// Open returns a reader for the blob at name.
// Returns ErrBlobNotFound if no blob exists there.
func (s *BlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, name)
		}
		return nil, fmt.Errorf("failed to open blob %q: %w", name, err)
	}
	return f, nil
}

// Exists reports whether a blob is present at name.
func (s *BlobStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists, err := afero.Exists(s.fs, name)
	if err != nil {
		return false, fmt.Errorf("failed to stat blob %q: %w", name, err)
	}
	return exists, nil
}

// Delete removes the blob at name. Deleting a missing blob is not an
// error, so cleanup paths can run after partial writes.
func (s *BlobStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.fs.Remove(name); err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("blob already absent", slog.String("name", name))
			return nil
		}
		return fmt.Errorf("failed to delete blob %q: %w", name, err)
	}

	s.logger.Debug("blob deleted", slog.String("name", name))
	return nil
}

// Path returns the path of a blob relative to the storage root, joined
// with the root for callers that need a filesystem location.
func (s *BlobStore) Path(name string) string {
	return filepath.Join(s.root, name)
}
