package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	created_at_ns INTEGER NOT NULL,
	ttl_ns INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_cache_entries_expiry ON cache_entries(created_at_ns + ttl_ns)`,
}

// Store keeps cache entries in a single SQLite table.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite cache path is required")
	}
	if !strings.HasPrefix(path, ":memory:") && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", withPragmas(path))
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate cache db: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, key string) (domain.CacheEntry, error) {
	var (
		payload   string
		createdAt int64
		ttl       int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at_ns, ttl_ns FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&payload, &createdAt, &ttl)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CacheEntry{}, cache.ErrNotFound
		}
		return domain.CacheEntry{}, fmt.Errorf("load cache entry: %w", err)
	}
	return domain.CacheEntry{
		Key:       key,
		Payload:   payload,
		CreatedAt: time.Unix(0, createdAt).UTC(),
		TTL:       time.Duration(ttl),
	}, nil
}

func (s *Store) Save(ctx context.Context, entry domain.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache_entries (cache_key, payload, created_at_ns, ttl_ns)
VALUES (?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET
	payload = excluded.payload,
	created_at_ns = excluded.created_at_ns,
	ttl_ns = excluded.ttl_ns`,
		entry.Key, entry.Payload, entry.CreatedAt.UnixNano(), int64(entry.TTL),
	)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// DeleteStale re-checks expiry inside the DELETE, so an entry rewritten after
// the caller's Load is kept.
func (s *Store) DeleteStale(ctx context.Context, key string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_key = ? AND created_at_ns + ttl_ns <= ?`, key, now.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("delete stale cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete stale cache entry: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE created_at_ns + ttl_ns <= ?`, now.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune cache entries: %w", err)
	}
	return int(n), nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withPragmas enables WAL and a busy timeout for file-backed databases.
func withPragmas(dsn string) string {
	lower := strings.ToLower(dsn)
	if dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(lower, "_pragma=journal_mode") {
		dsn += sep + "_pragma=journal_mode(WAL)"
		sep = "&"
	}
	if !strings.Contains(lower, "_pragma=busy_timeout") {
		dsn += sep + "_pragma=busy_timeout(5000)"
	}
	return dsn
}
