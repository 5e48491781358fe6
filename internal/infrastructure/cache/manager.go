package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

const (
	EventHit   = "hit"
	EventMiss  = "miss"
	EventWrite = "write"
	EventPrune = "prune"
	EventError = "error"
)

// Observer receives cache events, typically to feed Prometheus counters.
type Observer interface {
	ObserveCache(event string)
}

type Options struct {
	Enabled  bool
	TTL      time.Duration
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

// Manager is the response cache shared by every model call in the process.
type Manager struct {
	store    Store
	enabled  bool
	ttl      time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
	pruned atomic.Int64
}

func NewManager(store Store, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		store:    store,
		enabled:  opts.Enabled && store != nil,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      opts.Now,
	}
}

func (m *Manager) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) Key(prompt string, schema domain.ResponseSchema) string {
	return Key(prompt, schema)
}

// Get returns the cached payload for key if a fresh entry exists. Stale and
// malformed entries are removed when observed.
func (m *Manager) Get(ctx context.Context, key string) (string, bool) {
	if !m.Enabled() {
		return "", false
	}

	entry, err := m.store.Load(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		m.miss()
		return "", false
	case errors.Is(err, ErrCorrupt):
		m.logger.Warn("cache.malformed_entry", "key", key, "error", err)
		m.evict(ctx, key, m.now())
		m.miss()
		return "", false
	default:
		m.logger.Warn("cache.load_failed", "key", key, "error", err)
		m.observe(EventError)
		m.miss()
		return "", false
	}

	now := m.now()
	if !entry.Fresh(now) {
		m.evict(ctx, key, now)
		m.miss()
		return "", false
	}

	m.hits.Add(1)
	m.observe(EventHit)
	return entry.Payload, true
}

// Put stores payload under key with the configured TTL.
func (m *Manager) Put(ctx context.Context, key, payload string) error {
	if !m.Enabled() {
		return nil
	}
	entry := domain.CacheEntry{
		Key:       key,
		Payload:   payload,
		CreatedAt: m.now().UTC(),
		TTL:       m.ttl,
	}
	if err := m.store.Save(ctx, entry); err != nil {
		m.observe(EventError)
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	m.writes.Add(1)
	m.observe(EventWrite)
	return nil
}

// Prune removes every expired or malformed entry.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if !m.Enabled() {
		return 0, nil
	}
	removed, err := m.store.DeleteExpired(ctx, m.now())
	if removed > 0 {
		m.pruned.Add(int64(removed))
		for i := 0; i < removed; i++ {
			m.observe(EventPrune)
		}
	}
	if err != nil {
		return removed, fmt.Errorf("cache prune: %w", err)
	}
	m.logger.Info("cache.prune", "removed", removed)
	return removed, nil
}

func (m *Manager) Clear(ctx context.Context) error {
	if m == nil || m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

func (m *Manager) Stats(ctx context.Context) (domain.CacheStats, error) {
	stats := domain.CacheStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Writes: m.writes.Load(),
		Pruned: m.pruned.Load(),
	}
	if m.store == nil {
		return stats, nil
	}
	n, err := m.store.Len(ctx)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	stats.Entries = n
	return stats, nil
}

func (m *Manager) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}

// evict removes key only if the store still holds a stale or malformed entry
// for it, so a fresh entry written by a concurrent Put is kept.
func (m *Manager) evict(ctx context.Context, key string, now time.Time) {
	removed, err := m.store.DeleteStale(ctx, key, now)
	if err != nil {
		m.logger.Warn("cache.evict_failed", "key", key, "error", err)
		return
	}
	if !removed {
		return
	}
	m.pruned.Add(1)
	m.observe(EventPrune)
}

func (m *Manager) miss() {
	m.misses.Add(1)
	m.observe(EventMiss)
}

func (m *Manager) observe(event string) {
	if m.observer != nil {
		m.observer.ObserveCache(event)
	}
}
