package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// Orchestrator plays a full game against a running server with one logged-in
// client per seat.
type Orchestrator struct {
	baseURL      string
	difficulties []string
	turnDuration time.Duration
	bots         []*BotPlayer

	// Wait lets each turn run to its deadline instead of advancing as soon
	// as every bot has submitted.
	Wait bool
}

// BotPlayer wraps a Client with the strategy it plays.
type BotPlayer struct {
	Client   *Client
	Strategy Strategy
}

// NewOrchestrator creates an Orchestrator with one bot per difficulty.
func NewOrchestrator(baseURL string, difficulties []string, turnDuration time.Duration) *Orchestrator {
	return &Orchestrator{
		baseURL:      baseURL,
		difficulties: difficulties,
		turnDuration: turnDuration,
	}
}

// Run executes a full game: log in bots, create the game, join, start, play.
// It returns the winners.
func (o *Orchestrator) Run(ctx context.Context) ([]conquest.PlayerID, error) {
	if len(o.difficulties) < 2 {
		return nil, fmt.Errorf("need at least 2 bots, got %d", len(o.difficulties))
	}
	log.Info().Strs("difficulties", o.difficulties).Dur("turnDuration", o.turnDuration).Msg("Starting bot game")

	for i, d := range o.difficulties {
		name := fmt.Sprintf("Bot%d", i+1)
		c := NewClient(name, o.baseURL)
		if err := c.Login(); err != nil {
			return nil, fmt.Errorf("login %s: %w", name, err)
		}
		o.bots = append(o.bots, &BotPlayer{Client: c, Strategy: StrategyForDifficulty(d)})
	}

	creator := o.bots[0].Client
	gameID, err := creator.CreateGame(GameSettings{
		Name:         "Bot Test Game",
		TurnDuration: fmt.Sprintf("%ds", int(o.turnDuration.Seconds())),
		StepDelay:    "0s",
		MaxPlayers:   len(o.bots),
	})
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	log.Info().Str("gameId", gameID).Msg("Game created")

	for _, bp := range o.bots[1:] {
		if err := bp.Client.JoinGame(gameID); err != nil {
			return nil, fmt.Errorf("join %s: %w", bp.Client.Name(), err)
		}
	}
	log.Info().Int("bots", len(o.bots)).Msg("All bots joined")

	// Only the creator listens; every bot reads the same public board.
	if err := creator.ConnectWS(); err != nil {
		return nil, fmt.Errorf("ws connect: %w", err)
	}
	defer creator.CloseWS()
	if err := creator.SubscribeGame(gameID); err != nil {
		return nil, fmt.Errorf("ws subscribe: %w", err)
	}

	if err := creator.StartGame(gameID); err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}
	log.Info().Msg("Game started")

	return o.playLoop(ctx, gameID)
}

// playLoop fetches the board, submits every bot's decisions and waits for the
// next turn until the game ends.
func (o *Orchestrator) playLoop(ctx context.Context, gameID string) ([]conquest.PlayerID, error) {
	creator := o.bots[0].Client
	for {
		if err := ctx.Err(); err != nil {
			log.Info().Msg("Context cancelled, stopping bots")
			return nil, err
		}

		view, err := creator.State(gameID)
		if err != nil {
			return nil, fmt.Errorf("get state: %w", err)
		}
		status := view.Status()
		if status.GameOver {
			log.Info().Interface("winners", status.Winners).Msg("Game ended")
			return status.Winners, nil
		}
		log.Info().Int("turn", status.Turn).Str("stage", string(status.Stage)).Msg("Processing turn")

		o.submitAll(gameID, view)

		if !o.Wait {
			if err := creator.Advance(gameID); err != nil {
				return nil, fmt.Errorf("advance: %w", err)
			}
		}

		event, err := o.waitForNextTurn(ctx, creator, status.Turn)
		if err != nil {
			return nil, fmt.Errorf("wait for event: %w", err)
		}
		if event.Type == "game_ended" {
			var data struct {
				Winner string `json:"winner"`
				Reason string `json:"reason"`
			}
			json.Unmarshal(event.Data, &data)
			log.Info().Str("winner", data.Winner).Str("reason", data.Reason).Msg("Game ended")
			if data.Winner == "" {
				return nil, nil
			}
			return []conquest.PlayerID{conquest.PlayerID(data.Winner)}, nil
		}
	}
}

// submitAll sends each living bot's decisions. Rejections are logged and the
// game goes on.
func (o *Orchestrator) submitAll(gameID string, view *RemoteView) {
	alive := make(map[conquest.PlayerID]bool)
	for _, p := range view.Players() {
		alive[p.ID] = !p.Eliminated
	}
	for _, bp := range o.bots {
		id := conquest.PlayerID(bp.Client.UserID())
		if !alive[id] {
			continue
		}
		decisions := bp.Strategy.GenerateDecisions(view, id)
		if len(decisions) == 0 {
			continue
		}
		if err := bp.Client.SubmitDecisions(gameID, decisions); err != nil {
			log.Warn().Err(err).Str("bot", bp.Client.Name()).Msg("Decision submission failed, continuing")
			continue
		}
		log.Debug().Str("bot", bp.Client.Name()).Str("strategy", bp.Strategy.Name()).Int("count", len(decisions)).Msg("Decisions submitted")
	}
}

// waitForNextTurn skips turn_started events for turns already played, which
// arrive late when the start broadcast races the first state fetch.
func (o *Orchestrator) waitForNextTurn(ctx context.Context, c *Client, played int) (WSEvent, error) {
	for {
		event, err := o.waitForEvent(ctx, c, "turn_started", "game_ended")
		if err != nil || event.Type == "game_ended" {
			return event, err
		}
		var data struct {
			Turn int `json:"turn"`
		}
		if err := json.Unmarshal(event.Data, &data); err == nil && data.Turn > played {
			return event, nil
		}
	}
}

// waitForEvent blocks until one of the given event types is received or context cancels.
func (o *Orchestrator) waitForEvent(ctx context.Context, c *Client, eventTypes ...string) (WSEvent, error) {
	typeSet := make(map[string]bool)
	for _, t := range eventTypes {
		typeSet[t] = true
	}

	timeout := time.After(o.turnDuration + 30*time.Second)
	for {
		select {
		case <-ctx.Done():
			return WSEvent{}, ctx.Err()
		case <-timeout:
			return WSEvent{}, fmt.Errorf("timeout waiting for events %v", eventTypes)
		case event, ok := <-c.Events():
			if !ok {
				return WSEvent{}, fmt.Errorf("ws connection closed")
			}
			if typeSet[event.Type] {
				return event, nil
			}
			log.Debug().Str("type", event.Type).Msg("Ignoring event")
		}
	}
}
