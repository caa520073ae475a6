package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/model"
	"github.com/freeeve/polite-conquest/internal/repository"
	"github.com/freeeve/polite-conquest/pkg/conquest"
)

var (
	ErrInvalidDecision = errors.New("invalid decision")
	ErrNoDecisions     = errors.New("no decisions submitted")
	ErrBadPoints       = errors.New("points must be positive")
)

// DecisionService handles player decision intake for the open turn.
type DecisionService struct {
	gameRepo repository.GameRepository
	turns    *TurnService
}

// NewDecisionService creates a DecisionService.
func NewDecisionService(gameRepo repository.GameRepository, turns *TurnService) *DecisionService {
	return &DecisionService{gameRepo: gameRepo, turns: turns}
}

// playerFor returns the game and the caller's player ID, checking that the
// game is active and the caller is seated in it.
func (s *DecisionService) playerFor(ctx context.Context, gameID, userID string) (*model.Game, conquest.PlayerID, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, "", err
	}
	if game == nil {
		return nil, "", ErrGameNotFound
	}
	if game.Status != model.GameActive {
		return nil, "", ErrGameNotActive
	}
	for _, p := range game.Players {
		if p.UserID == userID {
			return game, conquest.PlayerID(userID), nil
		}
	}
	return nil, "", ErrNotInGame
}

// Submit validates and queues a batch of decisions. The batch is applied
// atomically: if any decision is rejected none of them are kept.
func (s *DecisionService) Submit(ctx context.Context, gameID, userID string, decisions []conquest.Decision) ([]conquest.Decision, error) {
	if len(decisions) == 0 {
		return nil, ErrNoDecisions
	}
	_, pid, err := s.playerFor(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}

	var queued []conquest.Decision
	err = s.turns.Mutate(ctx, gameID, func(g conquest.Game) error {
		for i, d := range decisions {
			if err := g.Submit(pid, d); err != nil {
				return wrapDecisionErr(i, err)
			}
		}
		queued = g.Decisions(pid)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("gameId", gameID).Str("player", userID).Int("count", len(decisions)).Msg("Decisions submitted")
	s.turns.broadcaster.BroadcastGameEvent(gameID, EventDecisionsSubmitted, map[string]any{
		"player": userID,
		"count":  len(queued),
	})
	return queued, nil
}

// Retract drops the caller's queued decisions of one kind.
func (s *DecisionService) Retract(ctx context.Context, gameID, userID string, kind conquest.DecisionKind) error {
	_, pid, err := s.playerFor(ctx, gameID, userID)
	if err != nil {
		return err
	}
	return s.turns.Mutate(ctx, gameID, func(g conquest.Game) error {
		if err := g.RetractDecisions(pid, kind); err != nil {
			return wrapDecisionErr(-1, err)
		}
		return nil
	})
}

// Decisions returns the caller's queued decisions for the open turn.
func (s *DecisionService) Decisions(ctx context.Context, gameID, userID string) ([]conquest.Decision, error) {
	_, pid, err := s.playerFor(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	g, err := s.turns.View(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return g.Decisions(pid), nil
}

// AwardPoints credits activity points to a player. Only the game creator
// may award points.
func (s *DecisionService) AwardPoints(ctx context.Context, gameID, userID, playerID string, points int) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if game.Status != model.GameActive {
		return ErrGameNotActive
	}
	if points <= 0 {
		return ErrBadPoints
	}
	return s.turns.Mutate(ctx, gameID, func(g conquest.Game) error {
		if err := g.AwardPoints(conquest.PlayerID(playerID), points); err != nil {
			if errors.Is(err, conquest.ErrUnknownPlayer) {
				return ErrNotInGame
			}
			return err
		}
		return nil
	})
}

// wrapDecisionErr tags engine rejections so handlers can map them to 4xx
// responses. Index is the position of the decision in its batch, or -1.
func wrapDecisionErr(index int, err error) error {
	var verr *conquest.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, conquest.ErrIntakeClosed), errors.Is(err, conquest.ErrGameOver):
		if index >= 0 {
			return fmt.Errorf("%w: decision %d: %w", ErrInvalidDecision, index, err)
		}
		return fmt.Errorf("%w: %w", ErrInvalidDecision, err)
	default:
		return err
	}
}
