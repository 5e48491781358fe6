package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache"
)

const DefaultPrefix = "docintel:cache:"

const scanBatch = 200

type record struct {
	Payload    *string    `json:"payload"`
	CreatedAt  *time.Time `json:"created_at"`
	TTLSeconds *float64   `json:"ttl_seconds"`
}

// Store keeps entries as Redis strings. Redis expires keys on its own; the
// stored created_at/ttl pair keeps freshness decisions on the caller's clock.
type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Load(ctx context.Context, key string) (domain.CacheEntry, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return domain.CacheEntry{}, cache.ErrNotFound
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("get cache entry: %w", err)
	}
	return decode(key, data)
}

func (s *Store) Save(ctx context.Context, entry domain.CacheEntry) error {
	if entry.TTL <= 0 {
		return nil
	}
	payload := entry.Payload
	createdAt := entry.CreatedAt.UTC()
	ttl := entry.TTL.Seconds()
	data, err := json.Marshal(record{Payload: &payload, CreatedAt: &createdAt, TTLSeconds: &ttl})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+entry.Key, data, entry.TTL).Err(); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteStale(ctx context.Context, key string, now time.Time) (bool, error) {
	return s.deleteIfStale(ctx, s.prefix+key, now)
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	err := s.scan(ctx, func(redisKey string) error {
		ok, err := s.deleteIfStale(ctx, redisKey, now)
		if err != nil {
			return err
		}
		if ok {
			removed++
		}
		return nil
	})
	return removed, err
}

// deleteIfStale watches redisKey so the DEL is discarded when a concurrent
// Save rewrites the key between the GET and the EXEC.
func (s *Store) deleteIfStale(ctx context.Context, redisKey string, now time.Time) (bool, error) {
	removed := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, redisKey).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get cache entry: %w", err)
		}
		if entry, err := decode(redisKey, data); err == nil && entry.Fresh(now) {
			return nil
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisKey)
			return nil
		}); err != nil {
			return err
		}
		removed = true
		return nil
	}, redisKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete stale cache entry: %w", err)
	}
	return removed, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	count := 0
	err := s.scan(ctx, func(string) error {
		count++
		return nil
	})
	return count, err
}

func (s *Store) Clear(ctx context.Context) error {
	return s.scan(ctx, func(redisKey string) error {
		if err := s.client.Del(ctx, redisKey).Err(); err != nil {
			return fmt.Errorf("delete cache entry: %w", err)
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) scan(ctx context.Context, fn func(redisKey string) error) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache entries: %w", err)
	}
	return nil
}

func decode(key string, data []byte) (domain.CacheEntry, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.CacheEntry{}, fmt.Errorf("%w: %v", cache.ErrCorrupt, err)
	}
	if rec.Payload == nil || rec.CreatedAt == nil || rec.TTLSeconds == nil {
		return domain.CacheEntry{}, fmt.Errorf("%w: missing fields", cache.ErrCorrupt)
	}
	return domain.CacheEntry{
		Key:       key,
		Payload:   *rec.Payload,
		CreatedAt: *rec.CreatedAt,
		TTL:       time.Duration(*rec.TTLSeconds * float64(time.Second)),
	}, nil
}
