package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/bot"
	"github.com/freeeve/polite-conquest/internal/logger"
	"github.com/freeeve/polite-conquest/internal/model"
	"github.com/freeeve/polite-conquest/internal/repository"
	"github.com/freeeve/polite-conquest/pkg/conquest"
)

var ErrNoActiveTurn = errors.New("game has no open turn")

// TurnService orchestrates turn resolution: stepping the engine, persisting
// events, and managing deadline and step timers.
type TurnService struct {
	gameRepo    repository.GameRepository
	turnRepo    repository.TurnRepository
	cache       repository.GameCache
	broadcaster Broadcaster

	// gameLocks serializes state mutation per game. The keyspace listener,
	// the poller and player submissions can all touch the same game at once.
	gameLocks sync.Map

	// spawn runs background bot work. Tests replace it to run inline.
	spawn func(func())
}

// NewTurnService creates a TurnService.
func NewTurnService(
	gameRepo repository.GameRepository,
	turnRepo repository.TurnRepository,
	cache repository.GameCache,
	broadcaster Broadcaster,
) *TurnService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &TurnService{
		gameRepo:    gameRepo,
		turnRepo:    turnRepo,
		cache:       cache,
		broadcaster: broadcaster,
		spawn:       func(f func()) { go f() },
	}
}

// gameLock returns the mutex for a given game ID.
func (s *TurnService) gameLock(gameID string) *sync.Mutex {
	v, _ := s.gameLocks.LoadOrStore(gameID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// loadState returns the live state for the open turn: the cached copy when
// present, else the state the turn opened with.
func (s *TurnService) loadState(ctx context.Context, turn *model.Turn) (conquest.Game, error) {
	stateJSON, err := s.cache.GetGameState(ctx, turn.GameID)
	if err != nil {
		return nil, fmt.Errorf("get cached state: %w", err)
	}
	if stateJSON == nil {
		stateJSON = turn.StateBefore
	}
	return conquest.Unmarshal(stateJSON)
}

func (s *TurnService) saveState(ctx context.Context, gameID string, g conquest.Game) (json.RawMessage, error) {
	stateJSON, err := conquest.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	if err := s.cache.SetGameState(ctx, gameID, stateJSON); err != nil {
		return nil, fmt.Errorf("set game state: %w", err)
	}
	return stateJSON, nil
}

// Mutate runs fn against the live state of an active game under the game
// lock. The state is written back only when fn succeeds.
func (s *TurnService) Mutate(ctx context.Context, gameID string, fn func(conquest.Game) error) error {
	mu := s.gameLock(gameID)
	mu.Lock()
	defer mu.Unlock()

	turn, err := s.turnRepo.CurrentTurn(ctx, gameID)
	if err != nil {
		return fmt.Errorf("get current turn: %w", err)
	}
	if turn == nil {
		return ErrNoActiveTurn
	}
	g, err := s.loadState(ctx, turn)
	if err != nil {
		return err
	}
	if err := fn(g); err != nil {
		return err
	}
	_, err = s.saveState(ctx, gameID, g)
	return err
}

// View returns a read-only copy of the game's state. Finished games are
// served from the last resolved turn.
func (s *TurnService) View(ctx context.Context, gameID string) (conquest.Game, error) {
	turn, err := s.turnRepo.CurrentTurn(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("get current turn: %w", err)
	}
	if turn != nil {
		return s.loadState(ctx, turn)
	}

	turns, err := s.turnRepo.ListTurns(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	if len(turns) == 0 {
		return nil, ErrNoActiveTurn
	}
	last := turns[len(turns)-1]
	state := last.StateAfter
	if state == nil {
		state = last.StateBefore
	}
	return conquest.Unmarshal(state)
}

// InitializeGame caches the opening state, arms the turn timer and lets bots
// submit their draft picks. Called after StartGame creates the first turn.
func (s *TurnService) InitializeGame(ctx context.Context, gameID string) error {
	turn, err := s.turnRepo.CurrentTurn(ctx, gameID)
	if err != nil {
		return fmt.Errorf("get current turn: %w", err)
	}
	if turn == nil {
		return ErrNoActiveTurn
	}
	if err := s.cache.SetGameState(ctx, gameID, turn.StateBefore); err != nil {
		return fmt.Errorf("set game state: %w", err)
	}
	if err := s.cache.SetTimer(ctx, gameID, turn.Deadline); err != nil {
		return fmt.Errorf("set timer: %w", err)
	}
	s.broadcaster.BroadcastGameEvent(gameID, EventTurnStarted, map[string]any{
		"turn":     turn.Number,
		"deadline": turn.Deadline.Format(time.RFC3339),
	})
	s.runBots(gameID, botTimeout(time.Until(turn.Deadline)))
	return nil
}

// runBots submits bot decisions in the background.
func (s *TurnService) runBots(gameID string, timeout time.Duration) {
	s.spawn(func() {
		botCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.SubmitBotDecisions(botCtx, gameID); err != nil {
			log.Error().Err(err).Str("gameId", gameID).Msg("Failed to submit bot decisions")
		}
	})
}

// botTimeout gives bots at most the time left before the deadline minus a
// margin, clamped to [5s, 30s].
func botTimeout(remaining time.Duration) time.Duration {
	t := remaining - 5*time.Second
	if t > 30*time.Second {
		t = 30 * time.Second
	}
	if t < 5*time.Second {
		t = 5 * time.Second
	}
	return t
}

// SubmitBotDecisions replaces every bot's queued decisions with what its
// strategy generates for the current state.
func (s *TurnService) SubmitBotDecisions(ctx context.Context, gameID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil || game == nil {
		return fmt.Errorf("find game for bot decisions: %w", err)
	}
	if game.Status != model.GameActive {
		return nil
	}

	strategies := make(map[conquest.PlayerID]bot.Strategy)
	for _, p := range game.Players {
		if p.IsBot {
			strategies[conquest.PlayerID(p.UserID)] = bot.StrategyForDifficulty(p.BotDifficulty)
		}
	}
	if len(strategies) == 0 {
		return nil
	}

	return s.Mutate(ctx, gameID, func(g conquest.Game) error {
		for _, pv := range g.Players() {
			strategy, ok := strategies[pv.ID]
			if !ok || pv.Eliminated {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, kind := range []conquest.DecisionKind{conquest.KindDraft, conquest.KindAdd, conquest.KindAttack, conquest.KindMove} {
				// Retraction fails for kinds whose intake is closed.
				_ = g.RetractDecisions(pv.ID, kind)
			}
			decisions := strategy.GenerateDecisions(g, pv.ID)
			accepted := 0
			for _, d := range decisions {
				if err := g.Submit(pv.ID, d); err != nil {
					log.Debug().Err(err).Str("gameId", gameID).Str("player", string(pv.ID)).
						Str("decision", d.Describe()).Msg("Bot decision rejected")
					continue
				}
				accepted++
			}
			log.Debug().Str("gameId", gameID).Str("player", string(pv.ID)).Str("strategy", strategy.Name()).
				Int("submitted", len(decisions)).Int("accepted", accepted).Msg("Bot decisions submitted")
		}
		return nil
	})
}

// ResolveTurn starts or continues resolution once the turn deadline has
// passed. Called from the deadline timer and the poller.
func (s *TurnService) ResolveTurn(ctx context.Context, gameID string) error {
	return s.resolveInternal(ctx, gameID, triggerDeadline)
}

// ResolveStep continues a resolution paused between steps.
func (s *TurnService) ResolveStep(ctx context.Context, gameID string) error {
	return s.resolveInternal(ctx, gameID, triggerStep)
}

// AdvanceNow resolves the current turn before its deadline. Only the
// creator may do this.
func (s *TurnService) AdvanceNow(ctx context.Context, gameID, userID string) error {
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
	return s.resolveInternal(ctx, gameID, triggerManual)
}

type trigger int

const (
	triggerDeadline trigger = iota
	triggerStep
	triggerManual
)

func (t trigger) String() string {
	switch t {
	case triggerStep:
		return "step"
	case triggerManual:
		return "manual"
	default:
		return "deadline"
	}
}

func (s *TurnService) resolveInternal(ctx context.Context, gameID string, trig trigger) error {
	mu := s.gameLock(gameID)
	mu.Lock()
	defer mu.Unlock()

	l := logger.ForGame(gameID)

	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil || game == nil {
		return fmt.Errorf("find game: %w", err)
	}
	if game.Status != model.GameActive {
		l.Info().Str("status", game.Status).Msg("Skipping resolution for non-active game")
		return nil
	}

	turn, err := s.turnRepo.CurrentTurn(ctx, gameID)
	if err != nil || turn == nil {
		return fmt.Errorf("get current turn: %w", err)
	}

	// A pending step timer owns the pace of an in-flight resolution.
	if trig != triggerStep {
		if trig == triggerDeadline && time.Now().Before(turn.Deadline) {
			l.Debug().Time("deadline", turn.Deadline).Msg("Turn deadline not yet reached, skipping")
			return nil
		}
		pending, err := s.cache.StepPending(ctx, gameID)
		if err != nil {
			return fmt.Errorf("check step timer: %w", err)
		}
		if pending {
			l.Debug().Msg("Resolution already in progress, skipping")
			return nil
		}
	}
	if trig == triggerManual {
		// A stale deadline key only fires a no-op resolve, so the advance goes ahead.
		if err := s.cache.ClearTimer(ctx, gameID); err != nil {
			l.Warn().Err(err).Msg("Failed to clear turn timer")
		}
	}

	l.Info().Int("turn", turn.Number).Str("trigger", trig.String()).Msg("Resolving turn")

	g, err := s.loadState(ctx, turn)
	if err != nil {
		return err
	}
	stepDelay := parseDuration(game.StepDelay, 0)

	for {
		ev, err := g.Advance()
		if errors.Is(err, conquest.ErrNothingToAdvance) {
			return s.finishTurn(ctx, game, turn, g)
		}
		if err != nil {
			return fmt.Errorf("advance turn %d: %w", turn.Number, err)
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if err := s.turnRepo.SaveEvent(ctx, model.TurnEvent{
			ID:      uuid.NewString(),
			GameID:  gameID,
			Turn:    ev.Turn,
			Seq:     ev.Seq,
			Kind:    string(ev.Kind),
			Payload: payload,
		}); err != nil {
			return fmt.Errorf("save event %d: %w", ev.Seq, err)
		}
		if _, err := s.saveState(ctx, gameID, g); err != nil {
			return err
		}
		s.broadcaster.BroadcastGameEvent(gameID, string(ev.Kind), ev)
		for _, n := range ev.Notices {
			s.broadcaster.NotifyUser(string(n.Player), gameID, EventDecisionDropped, n)
		}
		l.Debug().Int("turn", ev.Turn).Int("seq", ev.Seq).Str("kind", string(ev.Kind)).Msg("Resolution step")

		if !ev.Continue {
			return s.finishTurn(ctx, game, turn, g)
		}
		if stepDelay > 0 {
			if err := s.cache.SetStepTimer(ctx, gameID, stepDelay); err != nil {
				return fmt.Errorf("set step timer: %w", err)
			}
			return nil
		}
	}
}

// finishTurn records the closed turn, then either ends the game or opens the
// next turn with a fresh deadline.
func (s *TurnService) finishTurn(ctx context.Context, game *model.Game, turn *model.Turn, g conquest.Game) error {
	stateAfter, err := conquest.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal state after: %w", err)
	}
	if err := s.turnRepo.ResolveTurn(ctx, turn.ID, stateAfter); err != nil {
		return fmt.Errorf("resolve turn: %w", err)
	}

	status := g.Status()
	if status.GameOver {
		winner := ""
		if len(status.Winners) > 0 {
			winner = string(status.Winners[0])
		}
		log.Info().Str("gameId", game.ID).Str("winner", winner).Int("turn", status.Turn).Msg("Game won")
		if err := s.gameRepo.SetFinished(ctx, game.ID, winner); err != nil {
			return fmt.Errorf("set finished: %w", err)
		}
		s.broadcaster.BroadcastGameEvent(game.ID, EventGameEnded, map[string]any{
			"winner":  winner,
			"winners": status.Winners,
		})
		return s.cache.DeleteGameData(ctx, game.ID)
	}

	report, err := g.BeginTurn()
	if err != nil {
		return fmt.Errorf("begin turn %d: %w", turn.Number+1, err)
	}
	newState, err := conquest.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal new state: %w", err)
	}

	dur := parseDuration(game.TurnDuration, 24*time.Hour)
	deadline := time.Now().Add(dur)
	if _, err := s.turnRepo.CreateTurn(ctx, game.ID, report.Turn, newState, deadline); err != nil {
		return fmt.Errorf("create next turn: %w", err)
	}
	if err := s.cache.SetGameState(ctx, game.ID, newState); err != nil {
		return fmt.Errorf("set new state: %w", err)
	}
	if err := s.cache.SetTimer(ctx, game.ID, deadline); err != nil {
		return fmt.Errorf("set timer: %w", err)
	}

	log.Info().Str("gameId", game.ID).Int("turn", report.Turn).Str("stage", string(report.Stage)).
		Time("deadline", deadline).Int("rewards", len(report.Rewards)).Msg("Game advanced to next turn")

	// Broadcast after the turn row exists so clients can fetch it immediately.
	s.broadcaster.BroadcastGameEvent(game.ID, EventTurnStarted, map[string]any{
		"turn":     report.Turn,
		"stage":    report.Stage,
		"rewards":  report.Rewards,
		"deadline": deadline.Format(time.RFC3339),
	})

	s.runBots(game.ID, botTimeout(dur))
	return nil
}

// RecoverActiveGames rehydrates Redis state for all active games from Postgres.
// Called on server startup to restore timers and game state lost during a restart.
func (s *TurnService) RecoverActiveGames(ctx context.Context) error {
	games, err := s.gameRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active games: %w", err)
	}
	if len(games) == 0 {
		log.Info().Msg("No active games to recover")
		return nil
	}

	log.Info().Int("count", len(games)).Msg("Recovering active games after restart")

	for _, game := range games {
		turn, err := s.turnRepo.CurrentTurn(ctx, game.ID)
		if err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to get current turn during recovery")
			continue
		}
		if turn == nil {
			log.Warn().Str("gameId", game.ID).Msg("Active game has no open turn, skipping")
			continue
		}

		// A surviving cache entry may hold decisions or a half-resolved turn.
		cached, err := s.cache.GetGameState(ctx, game.ID)
		if err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to read cached state")
			continue
		}
		if cached == nil {
			if err := s.cache.SetGameState(ctx, game.ID, turn.StateBefore); err != nil {
				log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to restore game state")
				continue
			}
		}

		if time.Now().Before(turn.Deadline) {
			if err := s.cache.SetTimer(ctx, game.ID, turn.Deadline); err != nil {
				log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to restore timer")
			}
		} else if err := s.cache.SetStepTimer(ctx, game.ID, time.Second); err != nil {
			log.Error().Err(err).Str("gameId", game.ID).Msg("Failed to schedule overdue resolution")
		}

		s.runBots(game.ID, botTimeout(time.Until(turn.Deadline)))

		log.Info().Str("gameId", game.ID).Int("turn", turn.Number).
			Time("deadline", turn.Deadline).Msg("Recovered game state")
	}
	return nil
}

// Turns returns every turn of a game in order.
func (s *TurnService) Turns(ctx context.Context, gameID string) ([]model.Turn, error) {
	return s.turnRepo.ListTurns(ctx, gameID)
}

// Events returns the resolution events recorded for one turn.
func (s *TurnService) Events(ctx context.Context, gameID string, turn int) ([]model.TurnEvent, error) {
	return s.turnRepo.EventsByTurn(ctx, gameID, turn)
}

// CleanupStoppedGame removes cached data for a game stopped by its creator.
func (s *TurnService) CleanupStoppedGame(ctx context.Context, gameID string) error {
	s.broadcaster.BroadcastGameEvent(gameID, EventGameEnded, map[string]any{
		"winner": "",
		"reason": "stopped",
	})
	return s.cache.DeleteGameData(ctx, gameID)
}
