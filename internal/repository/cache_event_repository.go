package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/pkg/redis"
)

const (
	eventDetailKeyPrefix = "event:detail:"

	// Default TTL for event caches
	defaultEventCacheTTL = 30 * time.Second
)

// RedisEventCache stores event rows as JSON in Redis. Cache failures are treated as misses.
type RedisEventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventCache creates a new RedisEventCache
func NewRedisEventCache(client *redis.Client, ttl time.Duration) *RedisEventCache {
	if ttl <= 0 {
		ttl = defaultEventCacheTTL
	}
	return &RedisEventCache{client: client, ttl: ttl}
}

func eventCacheKey(id int64) string {
	return eventDetailKeyPrefix + strconv.FormatInt(id, 10)
}

func (c *RedisEventCache) Get(ctx context.Context, eventID int64) (*domain.Event, bool) {
	cached, err := c.client.Get(ctx, eventCacheKey(eventID)).Result()
	if err != nil || cached == "" {
		return nil, false
	}
	var e domain.Event
	if err := json.Unmarshal([]byte(cached), &e); err != nil {
		return nil, false
	}
	return &e, true
}

func (c *RedisEventCache) Set(ctx context.Context, e *domain.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.client.Set(ctx, eventCacheKey(e.ID), data, c.ttl)
}

func (c *RedisEventCache) Invalidate(ctx context.Context, eventIDs ...int64) {
	if len(eventIDs) == 0 {
		return
	}
	keys := make([]string, len(eventIDs))
	for i, id := range eventIDs {
		keys[i] = eventCacheKey(id)
	}
	c.client.Del(ctx, keys...)
}

// NoopEventCache never caches
type NoopEventCache struct{}

func (NoopEventCache) Get(context.Context, int64) (*domain.Event, bool) { return nil, false }
func (NoopEventCache) Set(context.Context, *domain.Event)               {}
func (NoopEventCache) Invalidate(context.Context, ...int64)             {}

// CachedEventRepository wraps EventRepository with a read-through cache of single events.
// Writers invalidate through the same EventCache after their transaction commits.
type CachedEventRepository struct {
	EventRepository
	cache EventCache
}

// NewCachedEventRepository creates a new CachedEventRepository
func NewCachedEventRepository(repo EventRepository, cache EventCache) *CachedEventRepository {
	if cache == nil {
		cache = NoopEventCache{}
	}
	return &CachedEventRepository{EventRepository: repo, cache: cache}
}

// GetByID retrieves an event by ID with caching
func (r *CachedEventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	if e, ok := r.cache.Get(ctx, id); ok {
		return e, nil
	}

	e, err := r.EventRepository.GetByID(ctx, id)
	if err != nil || e == nil {
		return e, err
	}
	r.cache.Set(ctx, e)
	return e, nil
}

var (
	_ EventCache      = (*RedisEventCache)(nil)
	_ EventCache      = NoopEventCache{}
	_ EventRepository = (*CachedEventRepository)(nil)
)
