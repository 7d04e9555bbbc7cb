package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imlastrebor/MontSignal/internal/dashboard"
)

const defaultTTL = 5 * time.Minute

// responseKey is the single Redis key for the assembled dashboard. The
// service covers one massif, so there is nothing to parameterize.
const responseKey = "dashboard:mont-blanc"

// Cache wraps a Redis client and provides typed get/set/delete for the
// assembled dashboard response.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with a 5-minute TTL.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: defaultTTL}
}

// Get retrieves the cached dashboard response.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context) (*dashboard.Response, error) {
	val, err := c.client.Get(ctx, responseKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for dashboard: %w", err)
	}

	var resp dashboard.Response
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling cached dashboard: %w", err)
	}

	return &resp, nil
}

// Set stores the dashboard response with the configured TTL.
func (c *Cache) Set(ctx context.Context, resp *dashboard.Response) error {
	if resp == nil {
		return nil
	}

	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshaling dashboard response: %w", err)
	}

	if err := c.client.Set(ctx, responseKey, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for dashboard: %w", err)
	}

	return nil
}

// Delete removes the cached dashboard response.
func (c *Cache) Delete(ctx context.Context) error {
	if err := c.client.Del(ctx, responseKey).Err(); err != nil {
		return fmt.Errorf("cache delete for dashboard: %w", err)
	}
	return nil
}
