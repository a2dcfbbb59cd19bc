package filemanager

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Storage drivers selectable through configuration.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// ErrInvalidKey is returned for empty keys or keys escaping the storage root.
var ErrInvalidKey = errors.New("file storage: invalid key")

// Storage abstracts where attachment bytes live.
type Storage interface {
	// Type names the driver, recorded on each attachment as its storage type.
	Type() string
	// Put stores size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (StoredObject, error)
	// Open returns a reader for the object stored under key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object stored under key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// StoredObject describes a successfully stored object.
type StoredObject struct {
	Key  string
	URL  string
	Size int64
}

// cleanKey normalises a slash separated key and rejects traversal.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
