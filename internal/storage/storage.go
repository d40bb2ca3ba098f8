// Package storage defines the blob storage port used to keep uploaded video
// files. Implementations live in subpackages and register themselves with a
// provider registry keyed by name.
package storage

import (
	"context"
	"errors"

	"github.com/vidscribe/vidscribe/internal/provider"
)

// ErrNotFound is returned by Download when the object does not exist.
var ErrNotFound = errors.New("vidscribe: object not found")

// Storage stores and retrieves opaque blobs addressed by a slash-separated
// path.
type Storage interface {
	// ProviderName identifies the backend, e.g. "local" or "s3".
	ProviderName() string

	// Upload writes the blob at path, creating intermediate segments.
	Upload(ctx context.Context, path string, data []byte) error

	// Download reads the blob at path. Returns ErrNotFound if absent.
	Download(ctx context.Context, path string) ([]byte, error)

	// Delete removes the blob. Deleting a missing blob is not an error;
	// the returned bool reports whether anything was removed.
	Delete(ctx context.Context, path string) (bool, error)

	// Exists reports whether a blob is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// Registry is a provider registry for storage backends.
type Registry = provider.Registry[Storage]

// NewRegistry creates an empty storage registry.
func NewRegistry() *Registry {
	return provider.NewRegistry[Storage]()
}

// Constructor builds a storage backend from configuration.
type Constructor = provider.Constructor[Storage]
