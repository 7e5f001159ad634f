package cache

import "context"

// Snapshot is the local fallback store: one serialized blob per logical
// collection, written through on every successful remote operation and
// read back when the remote store is unreachable.
type Snapshot interface {
	Save(ctx context.Context, key string, data []byte) error
	// Load returns the blob for key; ok is false when nothing has been
	// cached yet.
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
}
