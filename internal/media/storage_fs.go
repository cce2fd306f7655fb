/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FilesystemStorage implements Storage on the local filesystem. References
// map directly to filenames under the root, no subdirectories.
type FilesystemStorage struct {
	rootDir string
	logger  zerolog.Logger
}

// NewFilesystemStorage creates a filesystem-based storage backend.
func NewFilesystemStorage(rootDir string, logger zerolog.Logger) *FilesystemStorage {
	return &FilesystemStorage{rootDir: rootDir, logger: logger}
}

func (fs *FilesystemStorage) path(ref string) string {
	return filepath.Join(fs.rootDir, filepath.Base(ref))
}

// Store writes the object, replacing any previous content under the same
// reference.
func (fs *FilesystemStorage) Store(ctx context.Context, ref string, r io.Reader) error {
	if err := os.MkdirAll(fs.rootDir, 0o755); err != nil {
		return fmt.Errorf("create media root: %w", err)
	}

	fullPath := fs.path(ref)
	dest, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, r); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("write file: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Msg("filesystem storage: file stored")
	return nil
}

// Open opens the object for reading.
func (fs *FilesystemStorage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	f, err := os.Open(fs.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes the object. A missing file is not an error.
func (fs *FilesystemStorage) Delete(ctx context.Context, ref string) error {
	fullPath := fs.path(ref)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Msg("filesystem storage: file deleted")
	return nil
}

// List returns every reference starting with prefix.
func (fs *FilesystemStorage) List(ctx context.Context, prefix string) ([]string, error) {
	dirEntries, err := os.ReadDir(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read media root: %w", err)
	}

	var refs []string
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			refs = append(refs, entry.Name())
		}
	}
	return refs, nil
}

// URL returns the reference itself; the API serves filesystem objects through
// its own streaming endpoint.
func (fs *FilesystemStorage) URL(ref string) string {
	return ref
}

// CheckAccess verifies the storage directory exists and is a directory.
func (fs *FilesystemStorage) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("media root directory does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", fs.rootDir)
	}
	return nil
}
