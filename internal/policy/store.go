package policy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ums_backend/platform/apperr"
	"ums_backend/platform/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheNamespace  = "policy"
	defaultCacheTTL = 10 * time.Minute
)

// Reader is the lookup used by the rest of the service.
type Reader interface {
	GetByKey(ctx context.Context, key Key) (string, error)
	GetInt(ctx context.Context, key Key) (int, error)
}

type source interface {
	GetByKey(ctx context.Context, key Key) (Policy, error)
}

// Store is a read-through cache in front of the policy table. Concurrent
// misses for one key share a single database read. Redis is optional; when it
// errors the store reads the table directly.
type Store struct {
	repo  source
	cache redis.UniversalClient
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger
}

// NewStore creates a policy store. cache may be nil.
func NewStore(repo source, cache redis.UniversalClient, ttl time.Duration, log *logger.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Store{repo: repo, cache: cache, ttl: ttl, log: log}
}

// GetByKey returns the raw policy value.
func (s *Store) GetByKey(ctx context.Context, key Key) (string, error) {
	if value, ok := s.cached(ctx, key); ok {
		return value, nil
	}

	v, err, _ := s.group.Do(string(key), func() (interface{}, error) {
		p, err := s.repo.GetByKey(ctx, key)
		if err != nil {
			return "", err
		}
		s.store(ctx, key, p.Value)
		return p.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetInt returns an integer policy value.
func (s *Store) GetInt(ctx context.Context, key Key) (int, error) {
	raw, err := s.GetByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("policy %q is not an integer", key), err)
	}
	return n, nil
}

// Evict drops a cached value so the next read hits the table.
func (s *Store) Evict(ctx context.Context, key Key) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, cacheKey(key)).Err()
}

func (s *Store) cached(ctx context.Context, key Key) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, err := s.cache.Get(ctx, cacheKey(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("policy cache read failed", "key", string(key), "error", err)
		}
		return "", false
	}
	return value, true
}

func (s *Store) store(ctx context.Context, key Key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(key), value, s.ttl).Err(); err != nil {
		s.log.Warn("policy cache write failed", "key", string(key), "error", err)
	}
}

func cacheKey(key Key) string {
	return cacheNamespace + ":" + string(key)
}
