// Package cache is an optional redis read-through cache for rendered
// attendance summaries. Each route has a generation counter that is bumped on
// any roster or ledger mutation; the generation is part of every summary key,
// so a stale summary can never be served after a write.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	routeGenPrefix = "busattend:gen:"
	summaryPrefix  = "busattend:summary:"
	summaryTTL     = 10 * time.Minute
)

// SummaryCache caches rendered JSON summary payloads per (route, date).
type SummaryCache interface {
	GetSummary(ctx context.Context, route, date string) (string, bool)
	SetSummary(ctx context.Context, route, date, payload string)
	BumpRoute(ctx context.Context, route string)
}

// Redis is the redis-backed cache.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to redis and pings it to fail fast on a bad address.
func NewRedis(addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", addr, err)
	}
	log.Printf("Connected to redis at %s", addr)
	return &Redis{client: client}, nil
}

func genKey(route string) string {
	return routeGenPrefix + route
}

func (c *Redis) summaryKey(ctx context.Context, route, date string) string {
	gen, err := c.client.Get(ctx, genKey(route)).Result()
	if err != nil {
		gen = "0"
	}
	return fmt.Sprintf("%s%s:%s:%s", summaryPrefix, gen, route, date)
}

// GetSummary returns the cached payload for the route's current generation.
func (c *Redis) GetSummary(ctx context.Context, route, date string) (string, bool) {
	payload, err := c.client.Get(ctx, c.summaryKey(ctx, route, date)).Result()
	if err != nil {
		return "", false
	}
	return payload, true
}

// SetSummary stores a payload under the route's current generation. Cache
// errors are logged and swallowed; the store is the source of truth.
func (c *Redis) SetSummary(ctx context.Context, route, date, payload string) {
	if err := c.client.Set(ctx, c.summaryKey(ctx, route, date), payload, summaryTTL).Err(); err != nil {
		log.Printf("cache: set summary for (%s, %s): %v", route, date, err)
	}
}

// BumpRoute advances the route generation, orphaning every cached summary for
// that route. Orphans expire via TTL.
func (c *Redis) BumpRoute(ctx context.Context, route string) {
	if err := c.client.Incr(ctx, genKey(route)).Err(); err != nil {
		log.Printf("cache: bump generation for %s: %v", route, err)
	}
}

// Noop disables caching; used when no redis address is configured.
type Noop struct{}

func (Noop) GetSummary(context.Context, string, string) (string, bool) { return "", false }
func (Noop) SetSummary(context.Context, string, string, string)       {}
func (Noop) BumpRoute(context.Context, string)                        {}
