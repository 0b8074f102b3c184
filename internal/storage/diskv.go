package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"routined/internal/fswatch"
)

// diskvStore keeps one file per record under <dir>/<bucket>/<key>.
type diskvStore struct {
	dir string
	d   *diskv.Diskv
}

func openDiskv(cfg Config) (backend, error) {
	dir := filepath.Clean(cfg.Path)
	// Buckets exist up front so Watch has a directory to attach to.
	for _, b := range []string{bucketTasks, bucketCounters, bucketEntries, bucketMeta, bucketDedup} {
		if err := os.MkdirAll(filepath.Join(dir, b), 0o755); err != nil {
			return nil, err
		}
	}
	return &diskvStore{dir: dir, d: diskv.New(diskv.Options{
		BasePath:          dir,
		AdvancedTransform: keyToPathKey,
		InverseTransform:  pathKeyToKey,
		// No cache: other processes write the same tree.
		CacheSizeMax: 0,
	})}, nil
}

// keyToPathKey maps "bucket/name" to <bucket>/<name>.
func keyToPathKey(s string) *diskv.PathKey {
	bucket, name, ok := strings.Cut(s, "/")
	if !ok {
		return &diskv.PathKey{FileName: s}
	}
	return &diskv.PathKey{Path: []string{bucket}, FileName: name}
}

func pathKeyToKey(pk *diskv.PathKey) string {
	if len(pk.Path) == 0 {
		return pk.FileName
	}
	return strings.Join(pk.Path, "/") + "/" + pk.FileName
}

func diskvKey(bucket, key string) string { return bucket + "/" + key }

func (s *diskvStore) get(_ context.Context, bucket, key string) ([]byte, error) {
	b, err := s.d.Read(diskvKey(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *diskvStore) put(_ context.Context, bucket, key string, val []byte) error {
	return s.d.Write(diskvKey(bucket, key), val)
}

func (s *diskvStore) del(_ context.Context, bucket, key string) error {
	err := s.d.Erase(diskvKey(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *diskvStore) list(ctx context.Context, bucket, prefix string) (map[string][]byte, error) {
	out := map[string][]byte{}
	full := diskvKey(bucket, prefix)
	for k := range s.d.KeysPrefix(full, ctx.Done()) {
		b, err := s.d.Read(k)
		if errors.Is(err, fs.ErrNotExist) {
			// erased between listing and reading
			continue
		}
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(k, bucket+"/")] = b
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *diskvStore) watchOptions() fswatch.Options {
	return fswatch.Options{Path: filepath.Join(s.dir, bucketTasks)}
}

func (s *diskvStore) close() error { return nil }
