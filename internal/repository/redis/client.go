package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// Client holds the live board snapshot and the turn and step timer keys.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis from a URL, retrying the first ping the same
// way the Postgres pool does.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	wait := connectBackoff
	for attempt := 1; ; attempt++ {
		err = rdb.Ping(ctx).Err()
		if err == nil {
			return &Client{rdb: rdb}, nil
		}
		if attempt == connectAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retryIn", wait).Msg("Redis not ready")
		select {
		case <-ctx.Done():
			rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	rdb.Close()
	return nil, fmt.Errorf("redis ping after %d attempts: %w", connectAttempts, err)
}

// NewClientFromPool wraps an existing redis.Client for use in tests.
func NewClientFromPool(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// EnableExpiryEvents turns on keyspace notifications for expired keys so
// turn and step timers can be observed.
func (c *Client) EnableExpiryEvents(ctx context.Context) error {
	if err := c.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		return fmt.Errorf("enable keyspace events: %w", err)
	}
	return nil
}

// ExpiredChannel is the keyevent channel Redis publishes expired keys on for
// the client's database.
func (c *Client) ExpiredChannel() string {
	return "__keyevent@" + strconv.Itoa(c.rdb.Options().DB) + "__:expired"
}

// SubscribeExpired subscribes to expired-key events. Payloads are key names;
// ParseExpiredKey picks out the game timers among them.
func (c *Client) SubscribeExpired(ctx context.Context) *redis.PubSub {
	return c.rdb.Subscribe(ctx, c.ExpiredChannel())
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
