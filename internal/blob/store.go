// Package blob abstracts where uploaded images live. The worker only
// reads; the API server also writes uploads and issues presigned PUTs when
// running against S3.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not resolve to an object.
var ErrNotFound = errors.New("object not found")

// Store reads and writes uploaded image bytes by opaque key.
type Store interface {
	ReadBytes(ctx context.Context, key string) ([]byte, error)
	SaveBytes(ctx context.Context, filename string, data []byte) (key string, err error)
}
