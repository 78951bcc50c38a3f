// Package objectstore is the typed wrapper over list/get/put/head/delete
// against a bucket with a tenant prefix (spec.md §4.1). It is the one
// shared resource the catalog core touches directly; every operation is
// idempotent from the caller's perspective.
package objectstore

import "context"

// ObjectInfo is one entry returned by List: a key and its stored size.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Store is the narrow object-store contract the catalog core depends on.
// Implementations must make every method safe for concurrent use by
// multiple writers without external coordination (spec.md §5).
type Store interface {
	// List returns every object under prefix, paginating transparently.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Get returns the full contents of key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes data to key, overwriting any existing object there,
	// retrying transient failures per the store's RetryConfig.
	Put(ctx context.Context, key string, data []byte) error

	// PutNoRetry writes data to key exactly once, with no retry on
	// failure. Log-object appends are the commit point for every
	// mutating catalog operation (spec.md §4.4, §4.5) and must never be
	// silently retried out from under the caller (spec.md §7); data
	// object uploads use Put instead.
	PutNoRetry(ctx context.Context, key string, data []byte) error

	// Head returns the size of key without downloading its body.
	Head(ctx context.Context, key string) (int64, error)

	// Delete removes key. Deleting a key that does not exist is not an
	// error (idempotent from the caller's perspective, per spec.md §4.1).
	Delete(ctx context.Context, key string) error
}
