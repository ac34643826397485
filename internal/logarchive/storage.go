package logarchive

import (
	"context"
	"io"
)

// StorageDriver defines how archived output is written and read back
type StorageDriver interface {
	// Save writes the content under key, replacing any previous object
	Save(ctx context.Context, key string, body io.Reader, contentType string) error

	// Get returns a ReadCloser to stream the object back and its content type.
	// A missing key yields an error wrapping drivers.ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Delete removes the object; a missing key is not an error for the local driver
	Delete(ctx context.Context, key string) error
}
