// Package kvstore persists per-user JSON blobs. Every record the trackers
// keep (meals, sleep sessions, contacts, ...) is one blob addressed by a
// namespace (the user id) and a key (the collection name).
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists for namespace/key.
var ErrNotFound = errors.New("kvstore: not found")

// Store is implemented by the Postgres, SQLite and memory backends.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	// Keys lists the keys stored under namespace in sorted order.
	Keys(ctx context.Context, namespace string) ([]string, error)
	// Namespaces lists every namespace holding at least one key, sorted.
	Namespaces(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
