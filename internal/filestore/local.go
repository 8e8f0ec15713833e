package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileStore implements FileStore on the local filesystem.
type LocalFileStore struct {
	root string
}

func NewLocalFileStore(root string) (*LocalFileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &LocalFileStore{root: root}, nil
}

func (s *LocalFileStore) getPath(name string) (string, error) {
	// Names are server-assigned, but refuse traversal anyway.
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

func (s *LocalFileStore) Save(r io.Reader, name string) (int64, error) {
	path, err := s.getPath(name)
	if err != nil {
		return 0, err
	}

	// Write to a temporary file first, rename into place so readers never
	// see a partial blob.
	tmp, err := os.CreateTemp(s.root, "upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name()) // Clean up if rename fails
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to rename file: %w", err)
	}

	return n, nil
}

func (s *LocalFileStore) Get(name string) (io.ReadCloser, error) {
	path, err := s.getPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	return f, nil
}
