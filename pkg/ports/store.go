package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// BlobStore defines the interface for persisting named byte blobs.
// The context store keeps its JSON-serialized Context under one key.
type BlobStore interface {
	// Save persists the blob under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Load retrieves the blob for key.
	// Returns domain.ErrBlobNotFound if the key does not exist.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob for key.
	Delete(ctx context.Context, key string) error

	// List returns the keys currently held by the store.
	List(ctx context.Context) ([]string, error)
}

// ContextStore is the process-wide Context read by directive expressions.
type ContextStore interface {
	// Read re-merges the persisted blob under the in-memory Context and returns a copy.
	Read(ctx context.Context) domain.Context

	// Merge applies persisted ⊕ in-memory ⊕ patch, persists the result and returns a copy.
	Merge(ctx context.Context, patch domain.Context) domain.Context

	// RegisterHandler stores a callable as a regular entry. Callables are never persisted.
	RegisterHandler(key string, fn any)
}
