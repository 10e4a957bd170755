// Package cache provides an optional Redis-backed answer cache keyed
// by the normalized question text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vmreddy/crickrag/metrics"
	"github.com/vmreddy/crickrag/workflow"
)

// DefaultTTL is how long cached answers stay fresh. Statistics change
// rarely between ingests, so an hour is a reasonable default.
const DefaultTTL = time.Hour

// Cache stores accepted answers in Redis. A nil *Cache is a valid
// no-op cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr. Returns an error when the server is
// unreachable so callers can decide to run without caching.
func New(ctx context.Context, addr, password string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Key derives the cache key from the question, case- and
// whitespace-insensitively.
func Key(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "crickrag:answer:" + hex.EncodeToString(sum[:])
}

// Get returns the cached answer for question, or nil on a miss. Redis
// errors are swallowed into misses.
func (c *Cache) Get(ctx context.Context, question string) *workflow.Answer {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, Key(question)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.RecordExternalError("redis")
		}
		metrics.RecordCacheMiss()
		return nil
	}
	var ans workflow.Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		metrics.RecordCacheMiss()
		return nil
	}
	metrics.RecordCacheHit()
	return &ans
}

// Put stores an answer. Only accepted answers are worth caching;
// degraded ones should be retried on the next ask.
func (c *Cache) Put(ctx context.Context, question string, ans *workflow.Answer) {
	if c == nil || ans == nil || ans.Verdict != workflow.VerdictAccepted {
		return
	}
	data, err := json.Marshal(ans)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, Key(question), data, c.ttl).Err(); err != nil {
		metrics.RecordExternalError("redis")
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
