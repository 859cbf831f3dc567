package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore stores one file per snapshot, named by hash, in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory snapshots are stored in.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put implements Store. Files are written under a temporary name and renamed
// into place so readers never see a partial snapshot.
func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	h := Hash(data)
	path := filepath.Join(s.dir, h)
	if _, err := os.Stat(path); err == nil {
		return h, nil
	}

	f, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return h, nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, hash string) ([]byte, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrBadHash, hash)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, hash))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return data, err
}
