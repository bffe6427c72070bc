// Package kv defines the durable key-value contract backing StoreBackend,
// with SQLite and Redis implementations. Keys are grouped under a
// caller-supplied namespace so several runs (or agents) can share one
// physical store without colliding.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("kv: key not found")

// Store is a namespaced durable key-value store.
type Store interface {
	// Get returns the value stored under (namespace, key), or ErrNotFound.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Set stores value under (namespace, key), replacing any previous value.
	Set(ctx context.Context, namespace, key string, value []byte) error

	// Delete removes (namespace, key). Deleting an absent key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Keys returns all keys in the namespace with the given prefix, sorted.
	// An empty prefix lists the whole namespace.
	Keys(ctx context.Context, namespace, prefix string) ([]string, error)

	// Close releases the underlying connection.
	Close() error
}
