// Package kv provides the shared key-value cache store behind the comment
// pipeline. Values are opaque JSON blobs addressed by namespaced keys; every
// operation is a single atomic step at the store level. Multi-step flows
// (stream replace, fan-out dedup) are composed from these primitives by the
// callers, never inside the store.
package kv

import "context"

// Store is the cache surface shared by the API and the courier worker.
//
// Get returns ok=false when the key is genuinely absent; a non-nil error
// always means the store itself is unreachable (ErrorCodeCache), so callers
// can tell "not cached yet" from "cache is down".
type Store interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte) error

	// SetNX writes only when the key is absent and reports whether it won.
	// Used as the check-and-set guard for fan-out idempotency keys.
	SetNX(ctx context.Context, key string, val []byte) (won bool, err error)

	Delete(ctx context.Context, key string) error

	// GetDel reads and deletes in one atomic step, for one-shot job results.
	GetDel(ctx context.Context, key string) (val []byte, ok bool, err error)

	// Ordered id lists (post streams) and ascending id sets (reply indexes).
	GetIDs(ctx context.Context, key string) (ids []int64, ok bool, err error)
	SetIDs(ctx context.Context, key string, ids []int64) error
	AddIDs(ctx context.Context, key string, ids ...int64) error

	Close() error
}
