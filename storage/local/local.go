// Package local keeps snapshots as files in a single directory. Suitable for
// single-node deployments; the directory is created on first write.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/blogem/memorial-registry/config"
	"github.com/blogem/memorial-registry/storage"
)

func init() {
	storage.Register("local", func(cfg config.BackupConfig) (storage.Storage, error) {
		return New(cfg.Dir)
	})
}

// LocalStorage implements storage.Storage on the local filesystem
type LocalStorage struct {
	dir string
}

// New creates a local backend rooted at dir
func New(dir string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	return &LocalStorage{dir: dir}, nil
}

// Put writes data to a new file; an existing file is left untouched
func (s *LocalStorage) Put(ctx context.Context, name string, data []byte) (*storage.Object, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	sum := sha256.Sum256(data)
	return &storage.Object{
		Name:         name,
		Size:         int64(len(data)),
		Checksum:     hex.EncodeToString(sum[:]),
		LastModified: info.ModTime(),
	}, nil
}

// Get reads the whole file
func (s *LocalStorage) Get(ctx context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// List returns the regular files in the directory. A missing directory
// holds no objects.
func (s *LocalStorage) List(ctx context.Context) ([]storage.Object, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []storage.Object{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	objects := make([]storage.Object, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		sum := sha256.Sum256(data)
		objects = append(objects, storage.Object{
			Name:         entry.Name(),
			Size:         int64(len(data)),
			Checksum:     hex.EncodeToString(sum[:]),
			LastModified: info.ModTime(),
		})
	}
	return objects, nil
}

// Delete removes the file
func (s *LocalStorage) Delete(ctx context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
