package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/polite-conquest/internal/model"
	"github.com/freeeve/polite-conquest/internal/repository"
	"github.com/freeeve/polite-conquest/pkg/conquest"
)

var seatColors = []string{"red", "blue", "green", "yellow", "purple", "orange", "teal", "pink", "brown", "gray", "navy", "olive"}

// dbRecorder writes an arena game to Postgres so it can be replayed like a
// live game.
type dbRecorder struct {
	gameRepo repository.GameRepository
	turnRepo repository.TurnRepository
	userRepo repository.UserRepository

	gameID string
	turn   *model.Turn
}

// setup creates the game row and one bot user per seat. It returns the
// user IDs to use as player IDs.
func (r *dbRecorder) setup(ctx context.Context, name, mapName string, difficulties []string) ([]conquest.PlayerID, error) {
	if len(difficulties) > len(seatColors) {
		return nil, fmt.Errorf("at most %d seats, got %d", len(seatColors), len(difficulties))
	}
	ids := make([]conquest.PlayerID, len(difficulties))
	colors := make(map[string]string, len(difficulties))
	for i, d := range difficulties {
		u, err := r.userRepo.Upsert(ctx, "bot", fmt.Sprintf("botmatch-%d", i+1), fmt.Sprintf("Bot %d", i+1), "")
		if err != nil {
			return nil, fmt.Errorf("create bot user: %w", err)
		}
		if i == 0 {
			game, err := r.gameRepo.Create(ctx, name, u.ID, mapName, "0 seconds", "0 seconds", len(difficulties))
			if err != nil {
				return nil, fmt.Errorf("create game: %w", err)
			}
			r.gameID = game.ID
		}
		if err := r.gameRepo.JoinGameAsBot(ctx, r.gameID, u.ID, d); err != nil {
			return nil, fmt.Errorf("join bot: %w", err)
		}
		ids[i] = conquest.PlayerID(u.ID)
		colors[u.ID] = seatColors[i]
	}
	if err := r.gameRepo.AssignColors(ctx, r.gameID, colors); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *dbRecorder) TurnStarted(ctx context.Context, turn int, env conquest.Envelope) error {
	state, err := json.Marshal(env)
	if err != nil {
		return err
	}
	t, err := r.turnRepo.CreateTurn(ctx, r.gameID, turn, state, time.Now())
	if err != nil {
		return err
	}
	r.turn = t
	return nil
}

func (r *dbRecorder) Event(ctx context.Context, ev *conquest.ResolutionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.turnRepo.SaveEvent(ctx, model.TurnEvent{
		ID:      uuid.NewString(),
		GameID:  r.gameID,
		Turn:    ev.Turn,
		Seq:     ev.Seq,
		Kind:    string(ev.Kind),
		Payload: payload,
	})
}

func (r *dbRecorder) TurnEnded(ctx context.Context, _ int, env conquest.Envelope) error {
	state, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.turnRepo.ResolveTurn(ctx, r.turn.ID, state)
}

// finish marks the game finished with the top-ranked winner, if any.
func (r *dbRecorder) finish(ctx context.Context, winners []conquest.PlayerID) error {
	winner := ""
	if len(winners) > 0 {
		winner = string(winners[0])
	}
	return r.gameRepo.SetFinished(ctx, r.gameID, winner)
}
