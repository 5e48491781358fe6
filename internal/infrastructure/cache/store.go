package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

var (
	ErrNotFound = errors.New("cache entry not found")
	ErrCorrupt  = errors.New("cache entry is malformed")
)

// Store persists cache entries. Writes for a single key must be atomic:
// concurrent readers observe either the old or the new entry, never a mix.
type Store interface {
	Load(ctx context.Context, key string) (domain.CacheEntry, error)
	Save(ctx context.Context, entry domain.CacheEntry) error
	Delete(ctx context.Context, key string) error
	// DeleteStale removes the entry for key only if, at the moment of removal,
	// it is expired at now or malformed. An entry rewritten by a concurrent
	// Save after the caller's Load survives. It reports whether it removed one.
	DeleteStale(ctx context.Context, key string, now time.Time) (bool, error)
	// DeleteExpired removes stale and malformed entries and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}
