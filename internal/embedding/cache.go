// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores embeddings by key. Implementations must be safe for
// concurrent use. A cache miss and a cache error both report ok=false;
// callers fall through to the embedder.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, v []float32)
	Name() string
}

// CacheKey scopes a text's hash to the embedder that produced it.
func CacheKey(embedder, text string) string {
	sum := sha256.Sum256([]byte(text))
	return embedder + ":" + hex.EncodeToString(sum[:])
}

const defaultCacheSize = 10000

// LRUCache is an in-process least-recently-used cache.
type LRUCache struct {
	capacity int
	items    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type lruEntry struct {
	key   string
	value []float32
}

// NewLRUCache returns a cache holding at most capacity entries (default 10000).
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	return &LRUCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get implements Cache.
func (c *LRUCache) Get(_ context.Context, key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*lruEntry).value, true
	}
	return nil, false
}

// Set implements Cache, evicting the oldest entry when full.
func (c *LRUCache) Set(_ context.Context, key string, v []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*lruEntry).value = v
		return
	}
	c.items[key] = c.lru.PushFront(&lruEntry{key: key, value: v})

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Name implements Cache.
func (c *LRUCache) Name() string { return "memory" }

// RedisCache stores embeddings as JSON under "embedding:<key>".
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func redisKey(key string) string { return "embedding:" + key }

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		// redis.Nil is a plain miss.
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return v, true
}

// Set implements Cache. Write failures are dropped.
func (c *RedisCache) Set(ctx context.Context, key string, v []float32) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisKey(key), data, c.ttl)
}

// Name implements Cache.
func (c *RedisCache) Name() string { return "redis" }

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
