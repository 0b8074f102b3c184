package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"routined/internal/fswatch"
	logx "routined/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const sqliteFileName = "routined.db"

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	path string
}

func sqlitePath(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".db", ".sqlite", ".sqlite3":
		return p
	}
	return filepath.Join(p, sqliteFileName)
}

func openSQLite(cfg Config, log logx.Logger) (backend, error) {
	path := sqlitePath(filepath.Clean(cfg.Path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, path: path}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) get(ctx context.Context, bucket, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE bucket = ? AND key = ?`, bucket, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *sqliteStore) put(ctx context.Context, bucket, key string, val []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(bucket, key, value, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(bucket, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		bucket, key, val, time.Now().UnixMilli(),
	)
	return err
}

func (s *sqliteStore) del(ctx context.Context, bucket, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE bucket = ? AND key = ?`, bucket, key)
	return err
}

func (s *sqliteStore) list(ctx context.Context, bucket, prefix string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE bucket = ? AND substr(key, 1, length(?)) = ?`,
		bucket, prefix, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]byte{}
	for rows.Next() {
		var (
			k string
			v []byte
		)
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// watchOptions watches the database directory; WAL mode writes land in
// "<db>-wal" first, so every file sharing the database prefix counts.
func (s *sqliteStore) watchOptions() fswatch.Options {
	base := filepath.Base(s.path)
	return fswatch.Options{
		Path: filepath.Dir(s.path),
		Ignore: func(name string) bool {
			n := filepath.Base(name)
			return !strings.HasPrefix(n, base) || strings.HasSuffix(n, "-shm")
		},
	}
}
