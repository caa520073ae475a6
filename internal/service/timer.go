package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/repository"
	rediscache "github.com/freeeve/polite-conquest/internal/repository/redis"
)

// resolver is the part of TurnService the timer listener drives.
type resolver interface {
	ResolveTurn(ctx context.Context, gameID string) error
	ResolveStep(ctx context.Context, gameID string) error
}

// expirySource yields a subscription to expired-key events.
type expirySource interface {
	SubscribeExpired(ctx context.Context) *redis.PubSub
}

// TimerListener listens for Redis keyspace notifications on expired timer
// keys and triggers turn resolution or the next resolution step. Also runs a
// polling fallback to catch deadlines if keyspace notifications are unavailable.
type TimerListener struct {
	expiry   expirySource
	turnSvc  resolver
	turnRepo repository.TurnRepository
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(cache *rediscache.Client, turnSvc *TurnService, turnRepo repository.TurnRepository) *TimerListener {
	return &TimerListener{expiry: cache, turnSvc: turnSvc, turnRepo: turnRepo}
}

// Start begins listening for expired key events and runs a polling fallback.
func (t *TimerListener) Start(ctx context.Context) {
	go t.listenKeyspace(ctx)
	t.pollExpiredTurns(ctx)
}

// listenKeyspace subscribes to Redis keyspace notifications for expired keys.
func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.expiry.SubscribeExpired(ctx)
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

// pollExpiredTurns periodically checks for turns past their deadline and resolves them.
func (t *TimerListener) pollExpiredTurns(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	log.Info().Msg("Turn deadline poller started (10s interval)")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Turn deadline poller stopped")
			return
		case <-ticker.C:
			t.checkExpiredTurns(ctx)
		}
	}
}

// checkExpiredTurns finds open turns past their deadline and resolves them.
func (t *TimerListener) checkExpiredTurns(ctx context.Context) {
	turns, err := t.turnRepo.ListExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expired turns")
		return
	}
	if len(turns) > 0 {
		log.Info().Int("count", len(turns)).Msg("Poller found expired turns")
	}
	for _, turn := range turns {
		log.Info().Str("gameId", turn.GameID).Int("turn", turn.Number).
			Time("deadline", turn.Deadline).Msg("Poller resolving expired turn")
		if err := t.turnSvc.ResolveTurn(ctx, turn.GameID); err != nil {
			log.Error().Err(err).Str("gameId", turn.GameID).Msg("Turn resolution failed from poller")
		}
	}
}

// handleExpiry processes an expired key. Only acts on game timer keys.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	gameID, suffix, ok := rediscache.ParseExpiredKey(key)
	if !ok {
		return
	}

	switch suffix {
	case rediscache.TimerSuffix:
		log.Info().Str("gameId", gameID).Msg("Timer expired, triggering turn resolution")
		if err := t.turnSvc.ResolveTurn(ctx, gameID); err != nil {
			log.Error().Err(err).Str("gameId", gameID).Msg("Turn resolution failed after timer expiry")
		}
	case rediscache.StepSuffix:
		if err := t.turnSvc.ResolveStep(ctx, gameID); err != nil {
			log.Error().Err(err).Str("gameId", gameID).Msg("Resolution step failed")
		}
	}
}
