package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "cache:flights:generation"

// SearchCache stores encoded flight search results. Entries are namespaced
// by a generation counter so a single INCR invalidates every cached search.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

// GetSearch returns a nil payload without error on a miss. The returned
// generation is the one a result computed after this lookup must be stored
// under, so an Invalidate that lands in between orphans the entry.
func (c *SearchCache) GetSearch(ctx context.Context, from, to string) ([]byte, int64, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, err
	}
	data, err := c.client.Get(ctx, searchKey(gen, from, to)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, nil
		}
		return nil, gen, err
	}
	return data, gen, nil
}

func (c *SearchCache) SetSearch(ctx context.Context, gen int64, from, to string, payload []byte) error {
	return c.client.Set(ctx, searchKey(gen, from, to), payload, c.ttl).Err()
}

func (c *SearchCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *SearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SearchCache) Close() error {
	return c.client.Close()
}

func (c *SearchCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}

func searchKey(gen int64, from, to string) string {
	return fmt.Sprintf("cache:flights:search:%d:%s|%s", gen, normalize(from), normalize(to))
}

func normalize(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Nop is used when no Redis address is configured.
type Nop struct{}

func (Nop) GetSearch(context.Context, string, string) ([]byte, int64, error) { return nil, 0, nil }
func (Nop) SetSearch(context.Context, int64, string, string, []byte) error   { return nil }
func (Nop) Invalidate(context.Context) error                                 { return nil }
