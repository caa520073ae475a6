package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis game state.
func stateKey(gameID string) string { return "game:" + gameID + ":state" }
func timerKey(gameID string) string { return "game:" + gameID + ":timer" }
func stepKey(gameID string) string  { return "game:" + gameID + ":step" }

// TimerSuffix and StepSuffix end the keys whose expiry drives a game forward.
const (
	TimerSuffix = ":timer"
	StepSuffix  = ":step"
)

// ParseExpiredKey extracts the game id and the key suffix from an expired
// timer or step key. ok is false for any other key.
func ParseExpiredKey(key string) (gameID, suffix string, ok bool) {
	if !strings.HasPrefix(key, "game:") {
		return "", "", false
	}
	for _, s := range []string{TimerSuffix, StepSuffix} {
		if strings.HasSuffix(key, s) {
			id := strings.TrimSuffix(strings.TrimPrefix(key, "game:"), s)
			if id == "" || strings.Contains(id, ":") {
				return "", "", false
			}
			return id, s, true
		}
	}
	return "", "", false
}

// SetGameState stores the live game state JSON.
func (c *Client) SetGameState(ctx context.Context, gameID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(gameID), []byte(state), 0).Err()
}

// GetGameState retrieves the live game state JSON.
func (c *Client) GetGameState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// turnGracePeriod is the extra time after the displayed deadline before
// resolution starts, giving players a few seconds of leeway.
const turnGracePeriod = 5 * time.Second

// SetTimer creates a timer key with a TTL. When the key expires,
// Redis keyspace notifications trigger turn resolution.
func (c *Client) SetTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + turnGracePeriod
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(gameID), deadline.Unix(), ttl).Err()
}

// ClearTimer removes the timer for a game.
func (c *Client) ClearTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, timerKey(gameID)).Err()
}

// SetStepTimer schedules the next resolution step. Its expiry fires the same
// keyspace notification as the turn timer.
func (c *Client) SetStepTimer(ctx context.Context, gameID string, delay time.Duration) error {
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	return c.rdb.Set(ctx, stepKey(gameID), time.Now().Unix(), delay).Err()
}

// StepPending reports whether a resolution step is scheduled for the game.
func (c *Client) StepPending(ctx context.Context, gameID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, stepKey(gameID)).Result()
	if err != nil {
		return false, fmt.Errorf("step pending: %w", err)
	}
	return n > 0, nil
}

// DeleteGameData removes all Redis data for a game (on game end).
func (c *Client) DeleteGameData(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, stateKey(gameID), timerKey(gameID), stepKey(gameID)).Err()
}
