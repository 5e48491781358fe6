package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache"
)

const entrySuffix = ".json"

type record struct {
	Key        string     `json:"key"`
	Payload    *string    `json:"payload"`
	CreatedAt  *time.Time `json:"created_at"`
	TTLSeconds *float64   `json:"ttl_seconds"`
}

// Store keeps one JSON file per key under a directory.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Load(_ context.Context, key string) (domain.CacheEntry, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return domain.CacheEntry{}, err
	}
	return readEntry(path)
}

func (s *Store) Save(_ context.Context, entry domain.CacheEntry) error {
	path, err := s.pathFor(entry.Key)
	if err != nil {
		return err
	}

	payload := entry.Payload
	createdAt := entry.CreatedAt.UTC()
	ttl := entry.TTL.Seconds()
	data, err := json.Marshal(record{
		Key:        entry.Key,
		Payload:    &payload,
		CreatedAt:  &createdAt,
		TTLSeconds: &ttl,
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, entry.Key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cache.ErrNotFound
		}
		return fmt.Errorf("delete cache file: %w", err)
	}
	return nil
}

// DeleteStale claims the entry file with a rename before inspecting it, so it
// never removes a file that a concurrent Save committed after the caller's
// Load. A fresh claimed file is linked back unless a newer one replaced it.
func (s *Store) DeleteStale(_ context.Context, key string, now time.Time) (bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return false, fmt.Errorf("create claim file: %w", err)
	}
	claimed := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(claimed)

	if err := os.Rename(path, claimed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("claim cache file: %w", err)
	}

	entry, err := readEntry(claimed)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return false, nil
	case errors.Is(err, cache.ErrCorrupt):
		return true, nil
	case err != nil:
		return false, restore(claimed, path, err)
	case entry.Fresh(now):
		return false, restore(claimed, path, nil)
	}
	return true, nil
}

// restore links a claimed file back into place. os.Link never replaces an
// existing path, so an entry saved in the meantime wins.
func restore(claimed, path string, cause error) error {
	if err := os.Link(claimed, path); err != nil && !errors.Is(err, os.ErrExist) {
		return errors.Join(cause, fmt.Errorf("restore cache file: %w", err))
	}
	return cause
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	names, err := s.entryFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		key := strings.TrimSuffix(name, entrySuffix)
		if _, err := s.pathFor(key); err != nil {
			continue
		}
		ok, err := s.DeleteStale(ctx, key, now)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (s *Store) Len(_ context.Context) (int, error) {
	names, err := s.entryFiles()
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

func (s *Store) Clear(_ context.Context) error {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !(strings.HasSuffix(name, entrySuffix) || strings.HasSuffix(name, ".tmp")) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete cache file: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) pathFor(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(s.dir, key+entrySuffix), nil
}

func (s *Store) entryFiles() ([]string, error) {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), entrySuffix) {
			continue
		}
		names = append(names, item.Name())
	}
	return names, nil
}

func readEntry(path string) (domain.CacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.CacheEntry{}, cache.ErrNotFound
		}
		return domain.CacheEntry{}, fmt.Errorf("read cache file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("%w: %v", cache.ErrCorrupt, err)
	}
	if rec.Payload == nil || rec.CreatedAt == nil || rec.TTLSeconds == nil {
		return domain.CacheEntry{}, fmt.Errorf("%w: missing fields", cache.ErrCorrupt)
	}
	return domain.CacheEntry{
		Key:       rec.Key,
		Payload:   *rec.Payload,
		CreatedAt: *rec.CreatedAt,
		TTL:       time.Duration(*rec.TTLSeconds * float64(time.Second)),
	}, nil
}
