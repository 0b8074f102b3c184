package storage

import (
	"context"
	"errors"
	"time"

	"routined/internal/fswatch"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values: "file" (default), "diskv", "sqlite". For sqlite a Path
// without a ".db" extension is treated as a directory holding routined.db.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

const (
	bucketTasks    = "tasks"
	bucketCounters = "counters"
	bucketEntries  = "entries"
	bucketMeta     = "meta"
	bucketDedup    = "dedup"

	keyLastReset = "last_counter_reset"
)

// backend is the raw bucketed kv contract every driver implements. Values
// are JSON documents.
type backend interface {
	get(ctx context.Context, bucket, key string) ([]byte, error)
	put(ctx context.Context, bucket, key string, val []byte) error
	// del is a no-op for missing keys.
	del(ctx context.Context, bucket, key string) error
	list(ctx context.Context, bucket, prefix string) (map[string][]byte, error)
	watchOptions() fswatch.Options
	close() error
}
