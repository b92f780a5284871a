// Package filestore reads and writes uploaded document bytes.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores files in a directory on disk.
type Local struct {
	dir string
}

// NewLocal creates a file store rooted at dir, creating it when missing.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewLocal: create %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// path resolves a stored filename inside the root. Filenames are opaque keys,
// never paths.
func (l *Local) path(filename string) (string, error) {
	clean := filepath.Base(filepath.Clean(filename))
	if clean == "." || clean == ".." || clean == string(filepath.Separator) || clean != filename || strings.ContainsRune(filename, filepath.Separator) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(l.dir, clean), nil
}

// ReadBytes implements pipeline.FileStore.
func (l *Local) ReadBytes(ctx context.Context, filename string) ([]byte, error) {
	p, err := l.path(filename)
	if err != nil {
		return nil, fmt.Errorf("ReadBytes: %w", err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("ReadBytes: %w", err)
	}
	return data, nil
}

// Write stores r under filename and returns the number of bytes written.
func (l *Local) Write(ctx context.Context, filename, contentType string, r io.Reader) (int64, error) {
	p, err := l.path(filename)
	if err != nil {
		return 0, fmt.Errorf("Write: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, fmt.Errorf("Write: create %s: %w", p, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		_ = os.Remove(p)
		return 0, fmt.Errorf("Write: copy to %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return 0, fmt.Errorf("Write: finalize %s: %w", p, err)
	}
	return n, nil
}

// Delete removes a stored file. A missing file is not an error.
func (l *Local) Delete(ctx context.Context, filename string) error {
	p, err := l.path(filename)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// Close implements Store.
func (l *Local) Close() error { return nil }
