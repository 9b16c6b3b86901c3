// Package blob is the byte-level storage seam under the record store: a flat key space
// backed by the local filesystem or an object storage bucket.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotExist is returned when a key has never been written.
var ErrNotExist = errors.New("blob: object does not exist")

// ErrInvalidKey is returned for keys that would escape the store's namespace.
var ErrInvalidKey = errors.New("blob: invalid key")

type ObjectInfo struct {
	Size        int64
	ContentType string
	Updated     time.Time
}

// Location describes where a store keeps its data, for health reporting.
type Location struct {
	Type     string `json:"type"`
	Location string `json:"location"`
}

// Store is implemented by LocalStore and gcp.BucketStore.
//
// Write must replace an object atomically: a concurrent Read observes either the old or
// the new content, never a partial write. Append is not required to be safe for
// concurrent callers on one key; the record store serializes appenders.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Append(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Describe() Location
}

// CleanKey normalizes a slash separated key and rejects traversal.
func CleanKey(key string) (string, error) {
	k := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimLeft(k, "/")
	if k == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(k, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidKey
		}
	}
	return k, nil
}

// ContentTypeForKey guesses a content type from the key's extension.
func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".csv"):
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
