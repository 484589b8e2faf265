package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// DeliverySeen reports whether a webhook delivery id has been recorded.
// The caller checks before processing and records after, so an id is
// only ever present for deliveries whose outcome is settled.
func (c *Client) DeliverySeen(ctx context.Context, deliveryID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("webhook:delivery:%s", deliveryID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkDeliverySeen records a webhook delivery id and reports whether it
// had been seen before. SETNX makes the check-and-set atomic, so two
// concurrent redeliveries of the same id agree on a single winner.
func (c *Client) MarkDeliverySeen(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	set, err := c.rdb.SetNX(ctx, fmt.Sprintf("webhook:delivery:%s", deliveryID), "1", ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// AcquireSyncLock takes the per-shop reconciliation lock
func (c *Client) AcquireSyncLock(ctx context.Context, shop string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:sync:%s", shop), "1", ttl).Result()
}

// ReleaseSyncLock releases the per-shop reconciliation lock
func (c *Client) ReleaseSyncLock(ctx context.Context, shop string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:sync:%s", shop)).Err()
}

// CacheStats stores a serialized stats payload for a shop and window
func (c *Client) CacheStats(ctx context.Context, shop string, days int, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("stats:%s:%d", shop, days), payload, ttl).Err()
}

// GetCachedStats retrieves a cached stats payload, nil on miss
func (c *Client) GetCachedStats(ctx context.Context, shop string, days int) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, fmt.Sprintf("stats:%s:%d", shop, days)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}
