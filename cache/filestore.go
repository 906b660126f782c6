package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
)

// FileStore keeps the blob in a single JSON file named after the namespace
type FileStore struct {
	dir  string
	path string
}

// NewFileStore creates a file-backed store in dir.
// If dir is empty, uses ~/.camp_cache
func NewFileStore(dir, namespace string) (*FileStore, error) {
	if dir == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(usr.HomeDir, ".camp_cache")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	return &FileStore{dir: dir, path: filepath.Join(dir, NamespaceKey(namespace)+".json")}, nil
}

// Path returns the file the blob is written to
func (fs *FileStore) Path() string {
	return fs.path
}

// Load implements Store
func (fs *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Save implements Store
func (fs *FileStore) Save(_ context.Context, data []byte) error {
	// Write to temporary file first, then rename (atomic operation)
	tmpPath := fs.path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
