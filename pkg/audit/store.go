// Package audit persists uploaded images so classifications can be reviewed
// after the fact.
package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrOutsideStore is returned by Remove for paths the store did not create.
var ErrOutsideStore = errors.New("audit: path outside store")

// Store is the persistence surface the upload handler needs.
type Store interface {
	// Save writes one upload and returns its path.
	Save(data []byte) (string, error)

	// Remove deletes a previously saved upload.
	Remove(path string) error
}

// DirStore writes uploads as individual files in a directory.
type DirStore struct {
	dir string
	now func() time.Time
}

// NewDirStore creates dir if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit: directory required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &DirStore{dir: dir, now: time.Now}, nil
}

// Dir returns the store directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Name returns a fresh file name of the form <UTC ms>-<uuid>.jpg.
func (s *DirStore) Name() string {
	ts := s.now().UTC().Format("20060102T150405.000Z")
	ts = strings.Replace(ts, ".", "", 1)
	return ts + "-" + uuid.New().String() + ".jpg"
}

// Save writes data under a fresh name. The file only appears under its
// final name once fully written.
func (s *DirStore) Save(data []byte) (string, error) {
	path := filepath.Join(s.dir, s.Name())

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return path, nil
}

// Remove deletes path. Missing files are not an error.
func (s *DirStore) Remove(path string) error {
	if filepath.Dir(path) != filepath.Clean(s.dir) {
		return fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the saved upload names, oldest first.
func (s *DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Discard is a Store that keeps nothing.
type Discard struct{}

// Save implements Store.
func (Discard) Save([]byte) (string, error) { return "", nil }

// Remove implements Store.
func (Discard) Remove(string) error { return nil }

var (
	_ Store = (*DirStore)(nil)
	_ Store = Discard{}
)
