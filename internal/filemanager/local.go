package filemanager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var _ Storage = (*LocalStorage)(nil)

// DefaultLocalBaseURL is the URL prefix the HTTP server mounts local uploads under.
const DefaultLocalBaseURL = "/storage/uploads"

// LocalStorage persists attachments below a root directory on the local filesystem.
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage initialises a filesystem-backed store rooted at dir serving URLs under baseURL.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("local storage: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: ensure root directory: %w", err)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultLocalBaseURL
	}
	return &LocalStorage{root: dir, baseURL: baseURL}, nil
}

// Root returns the directory objects are stored in.
func (s *LocalStorage) Root() string {
	return s.root
}

// Type implements Storage.
func (s *LocalStorage) Type() string {
	return DriverLocal
}

// Put writes r to root/key, creating intermediate directories.
func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (StoredObject, error) {
	if s == nil {
		return StoredObject{}, errors.New("local storage: store not initialised")
	}
	key, err := cleanKey(key)
	if err != nil {
		return StoredObject{}, err
	}

	fullPath := s.absolute(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return StoredObject{}, fmt.Errorf("local storage: mkdir: %w", err)
	}

	fh, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return StoredObject{}, fmt.Errorf("local storage: create file: %w", err)
	}
	written, err := io.Copy(fh, r)
	if closeErr := fh.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(fullPath)
		return StoredObject{}, fmt.Errorf("local storage: write file: %w", err)
	}

	return StoredObject{
		Key:  key,
		URL:  joinURL(s.baseURL, key),
		Size: written,
	}, nil
}

// Open returns a reader for the stored object.
func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if s == nil {
		return nil, errors.New("local storage: store not initialised")
	}
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(s.absolute(key))
	if err != nil {
		return nil, fmt.Errorf("local storage: open file: %w", err)
	}
	return fh, nil
}

// Delete removes the stored object.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if s == nil {
		return errors.New("local storage: store not initialised")
	}
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(s.absolute(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local storage: delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) absolute(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
