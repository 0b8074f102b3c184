package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"routined/internal/fswatch"
)

// fileStore keeps one JSON object per bucket:
//
//	<dir>/tasks.json    {"<id>": {...}, ...}
//	<dir>/counters.json
//	<dir>/entries.json
//	<dir>/meta.json
//	<dir>/dedup.json
//
// Each mutation rewrites the bucket through a tmp file + rename, so readers
// in other processes never see a partial document.
type fileStore struct {
	dir string
	mu  sync.Mutex
}

func openFile(cfg Config) (backend, error) {
	dir := filepath.Clean(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) bucketPath(bucket string) string {
	return filepath.Join(s.dir, bucket+".json")
}

func (s *fileStore) load(bucket string) (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(s.bucketPath(bucket))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(strings.TrimSpace(string(b))) == 0) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(s.bucketPath(bucket)), err)
	}
	return m, nil
}

func (s *fileStore) save(bucket string, m map[string]json.RawMessage) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := s.bucketPath(bucket)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load(bucket)
	if err != nil {
		return nil, err
	}
	v, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *fileStore) put(_ context.Context, bucket, key string, val []byte) error {
	if !json.Valid(val) {
		return fmt.Errorf("%s/%s: value is not JSON", bucket, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load(bucket)
	if err != nil {
		return err
	}
	m[key] = json.RawMessage(val)
	return s.save(bucket, m)
}

func (s *fileStore) del(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load(bucket)
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(bucket, m)
}

func (s *fileStore) list(_ context.Context, bucket, prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load(bucket)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *fileStore) watchOptions() fswatch.Options {
	return fswatch.Options{
		Path: s.dir,
		Ignore: func(name string) bool {
			return strings.HasSuffix(name, ".tmp")
		},
	}
}

func (s *fileStore) close() error { return nil }
