package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is absent from a namespace.
var ErrNotFound = errors.New("store: key not found")

// Entry is a single key-value pair inside a namespace.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a namespaced key-value blob store. Each chat session owns one namespace,
// the server-side counterpart of a browser's local storage.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, namespace, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// List returns every entry of a namespace ordered by key.
	List(ctx context.Context, namespace string) ([]Entry, error)

	// Close releases the underlying database.
	Close() error
}
