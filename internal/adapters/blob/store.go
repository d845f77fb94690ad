// Package blob stores uploaded files: identity documents and stock car images.
// LocalStore writes to disk for development; R2Store talks to Cloudflare R2
// through the S3 API.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errors returned by stores.
var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// DefaultURLExpiry is how long a signed download URL stays valid.
const DefaultURLExpiry = 15 * time.Minute

// Store is a flat key/value object store. Keys are slash-separated paths
// such as "documents/<account>/<id>.pdf".
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	// URL returns a link the browser can follow to download the object.
	URL(ctx context.Context, key string) (string, error)
}

// ValidateKey rejects empty, absolute and parent-relative keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
