package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/vovakirdan/relaychat/internal/store"
)

// separator between namespace and key; namespaces never contain NUL.
const separator = 0x00

// PebbleStore implements store.Store on a Pebble LSM database.
type PebbleStore struct {
	db *pebble.DB
}

// New opens (or creates) a Pebble database at path.
func New(path string) (*PebbleStore, error) {
	return open(path, &pebble.Options{})
}

// NewInMemory opens a Pebble database backed by an in-memory filesystem.
func NewInMemory() (*PebbleStore, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()})
}

func open(path string, opts *pebble.Options) (*PebbleStore, error) {
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *PebbleStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	value, closer, err := s.db.Get(encodeKey(namespace, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get value: %w", err)
	}
	defer closer.Close()

	// value is only valid until closer.Close
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set writes value under key with a synced write.
func (s *PebbleStore) Set(_ context.Context, namespace, key string, value []byte) error {
	if err := s.db.Set(encodeKey(namespace, key), value, pebble.Sync); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	return nil
}

// Delete removes key from namespace.
func (s *PebbleStore) Delete(_ context.Context, namespace, key string) error {
	if err := s.db.Delete(encodeKey(namespace, key), pebble.Sync); err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	return nil
}

// List returns every entry of namespace in key order.
func (s *PebbleStore) List(_ context.Context, namespace string) ([]store.Entry, error) {
	lower := append([]byte(namespace), separator)
	upper := append([]byte(namespace), separator+1)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	var entries []store.Entry
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()[len(lower):]
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		entries = append(entries, store.Entry{Key: string(key), Value: value})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return entries, nil
}

func encodeKey(namespace, key string) []byte {
	buf := make([]byte, 0, len(namespace)+1+len(key))
	buf = append(buf, namespace...)
	buf = append(buf, separator)
	buf = append(buf, key...)
	return buf
}
