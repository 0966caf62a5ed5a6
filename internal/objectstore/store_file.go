package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"bizreg/pkg/platform/sentinel"
)

// FileStore keeps blobs on the local filesystem under root.
type FileStore struct {
	root    string
	baseURL string
}

// NewFileStore creates root if needed.
func NewFileStore(root, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStore{root: root, baseURL: baseURL}, nil
}

// Put writes data atomically (temp file + rename) and returns its location.
func (s *FileStore) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("commit object: %w", err)
	}
	return locationFor(s.baseURL, key), nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*Object, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	key, err := CleanKey(key)
	if err != nil {
		return nil, sentinel.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return &Object{Key: key, ContentType: mimetype.Detect(data).String(), Data: data}, nil
}

// Delete removes key. Deleting a missing key returns sentinel.ErrNotFound.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	key, err := CleanKey(key)
	if err != nil {
		return sentinel.ErrNotFound
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key))); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
