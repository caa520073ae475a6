package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/freeeve/polite-conquest/internal/model"
	"github.com/freeeve/polite-conquest/internal/repository"
	"github.com/freeeve/polite-conquest/pkg/conquest"
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameNotWaiting    = errors.New("game is not in waiting status")
	ErrGameFull          = errors.New("game is full")
	ErrNotEnough         = errors.New("need at least 2 players to start")
	ErrNotCreator        = errors.New("only the creator can do this")
	ErrGameNotActive     = errors.New("game is not active")
	ErrAlreadyJoined     = errors.New("already joined this game")
	ErrNotInGame         = errors.New("you are not in this game")
	ErrUnknownMap        = errors.New("unknown map")
	ErrBadPlayerCount    = errors.New("max players must be between 2 and 12")
	ErrInvalidDifficulty = errors.New("invalid difficulty: must be easy, medium, hard, random or hold")
)

// playerColors are handed out in join order when a game starts.
var playerColors = []string{
	"red", "blue", "green", "yellow", "purple", "orange",
	"teal", "pink", "brown", "gray", "navy", "olive",
}

// GameOptions are the settings chosen when creating a game.
type GameOptions struct {
	MapName       string `json:"map_name"`
	TurnDuration  string `json:"turn_duration"`
	StepDelay     string `json:"step_delay"`
	MaxPlayers    int    `json:"max_players"`
	BotDifficulty string `json:"bot_difficulty"`
	BotOnly       bool   `json:"bot_only"`
}

// GameService handles game lifecycle operations.
type GameService struct {
	gameRepo repository.GameRepository
	turnRepo repository.TurnRepository
	userRepo repository.UserRepository
	rules    conquest.Rules
	seed     func() uint64

	// Pacing for games that do not choose their own, as Postgres intervals.
	defaultTurn string
	defaultStep string
}

// NewGameService creates a GameService. New games are played with rules.
func NewGameService(gameRepo repository.GameRepository, turnRepo repository.TurnRepository, userRepo repository.UserRepository, rules conquest.Rules) *GameService {
	return &GameService{
		gameRepo: gameRepo,
		turnRepo: turnRepo,
		userRepo: userRepo,
		rules:    rules,
		seed:     func() uint64 { return uint64(time.Now().UnixNano()) },

		defaultTurn: "24 hours",
		defaultStep: "0 seconds",
	}
}

// SetPacingDefaults sets the turn duration and step delay used when a game
// is created without them. Unparseable values keep the current default.
func (s *GameService) SetPacingDefaults(turnDuration, stepDelay string) {
	s.defaultTurn = toPgInterval(turnDuration, s.defaultTurn)
	s.defaultStep = toPgInterval(stepDelay, s.defaultStep)
}

// CreateGame creates a new game in "waiting" status and fills the open
// seats with bots. Humans who join later replace bots.
func (s *GameService) CreateGame(ctx context.Context, name, creatorID string, opts GameOptions) (*model.Game, error) {
	if _, err := conquest.MapByName(opts.MapName); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMap, opts.MapName)
	}
	if opts.MapName == "" {
		opts.MapName = conquest.StandardMapName
	}
	if opts.MaxPlayers == 0 {
		opts.MaxPlayers = 6
	}
	if opts.MaxPlayers < 2 || opts.MaxPlayers > len(playerColors) {
		return nil, ErrBadPlayerCount
	}
	if opts.BotDifficulty == "" {
		opts.BotDifficulty = "easy"
	}
	if !validDifficulty(opts.BotDifficulty) {
		return nil, ErrInvalidDifficulty
	}
	turnDur := toPgInterval(opts.TurnDuration, s.defaultTurn)
	stepDelay := toPgInterval(opts.StepDelay, s.defaultStep)

	game, err := s.gameRepo.Create(ctx, name, creatorID, opts.MapName, turnDur, stepDelay, opts.MaxPlayers)
	if err != nil {
		return nil, err
	}

	// Creator auto-joins unless bot-only mode
	botCount := opts.MaxPlayers
	if !opts.BotOnly {
		if err := s.gameRepo.JoinGame(ctx, game.ID, creatorID); err != nil {
			return nil, err
		}
		botCount--
	}

	for i := 1; i <= botCount; i++ {
		providerID := fmt.Sprintf("bot-%d", i)
		displayName := fmt.Sprintf("Bot %d", i)
		botUser, err := s.userRepo.Upsert(ctx, "bot", providerID, displayName, "")
		if err != nil {
			return nil, fmt.Errorf("create bot user %d: %w", i, err)
		}
		if err := s.gameRepo.JoinGameAsBot(ctx, game.ID, botUser.ID, opts.BotDifficulty); err != nil {
			return nil, fmt.Errorf("join bot %d: %w", i, err)
		}
	}

	return s.gameRepo.FindByID(ctx, game.ID)
}

// JoinGame adds a player to a waiting game, replacing a bot when every
// seat is taken.
func (s *GameService) JoinGame(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != model.GameWaiting {
		return ErrGameNotWaiting
	}

	for _, p := range game.Players {
		if p.UserID == userID {
			return ErrAlreadyJoined
		}
	}

	count, err := s.gameRepo.PlayerCount(ctx, gameID)
	if err != nil {
		return err
	}

	if count >= game.MaxPlayers {
		hasBots := false
		for _, p := range game.Players {
			if p.IsBot {
				hasBots = true
				break
			}
		}
		if !hasBots {
			return ErrGameFull
		}
		return s.gameRepo.ReplaceBot(ctx, gameID, userID)
	}

	return s.gameRepo.JoinGame(ctx, gameID, userID)
}

// StartGame assigns colors, creates the game state and opens the draft turn.
// The caller hands the game to TurnService.InitializeGame afterwards.
func (s *GameService) StartGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != model.GameWaiting {
		return nil, ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	if len(game.Players) < 2 {
		return nil, ErrNotEnough
	}

	m, err := conquest.MapByName(game.MapName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMap, game.MapName)
	}

	colors := make(map[string]string, len(game.Players))
	roster := make([]conquest.Player, 0, len(game.Players))
	for i, p := range game.Players {
		color := playerColors[i%len(playerColors)]
		colors[p.UserID] = color
		roster = append(roster, conquest.Player{
			ID:    conquest.PlayerID(p.UserID),
			Name:  p.DisplayName,
			Color: color,
		})
	}

	engine, err := conquest.New(m, roster, s.rules, conquest.NewDice(s.seed()))
	if err != nil {
		return nil, fmt.Errorf("create game state: %w", err)
	}
	if _, err := engine.BeginTurn(); err != nil {
		return nil, fmt.Errorf("open draft: %w", err)
	}
	stateJSON, err := conquest.Marshal(engine)
	if err != nil {
		return nil, err
	}

	if err := s.gameRepo.AssignColors(ctx, gameID, colors); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(parseDuration(game.TurnDuration, 24*time.Hour))
	if _, err := s.turnRepo.CreateTurn(ctx, gameID, 1, stateJSON, deadline); err != nil {
		return nil, err
	}

	return s.gameRepo.FindByID(ctx, gameID)
}

// GetGame returns a game by ID.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// UpdateBotDifficulty validates and updates a bot's difficulty level.
func (s *GameService) UpdateBotDifficulty(ctx context.Context, gameID, userID, botUserID, difficulty string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != model.GameWaiting {
		return ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	if !validDifficulty(difficulty) {
		return ErrInvalidDifficulty
	}
	return s.gameRepo.UpdateBotDifficulty(ctx, gameID, botUserID, difficulty)
}

// DeleteGame removes a waiting game. Only the game creator can delete a game.
func (s *GameService) DeleteGame(ctx context.Context, gameID, userID string) error {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if game == nil {
		return ErrGameNotFound
	}
	if game.Status != model.GameWaiting {
		return ErrGameNotWaiting
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	return s.gameRepo.Delete(ctx, gameID)
}

// StopGame ends an active game without a winner. Only the game creator can stop a game.
func (s *GameService) StopGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != model.GameActive {
		return nil, ErrGameNotActive
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	if err := s.gameRepo.SetFinished(ctx, gameID, ""); err != nil {
		return nil, err
	}
	return s.gameRepo.FindByID(ctx, gameID)
}

// ListGames returns open games, the user's games or finished games.
func (s *GameService) ListGames(ctx context.Context, userID string, filter string) ([]model.Game, error) {
	switch filter {
	case "my":
		return s.gameRepo.ListByUser(ctx, userID)
	case model.GameFinished:
		return s.gameRepo.ListFinished(ctx)
	default:
		return s.gameRepo.ListOpen(ctx)
	}
}

func validDifficulty(d string) bool {
	switch d {
	case "easy", "medium", "hard", "random", "hold":
		return true
	}
	return false
}

// toPgInterval converts Go-style duration strings (e.g. "5m", "1h") to
// PostgreSQL interval format (e.g. "5 minutes", "1 hours"). Returns
// defaultVal if input is empty.
func toPgInterval(s, defaultVal string) string {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%d seconds", totalSeconds)
	}
	return fmt.Sprintf("%d minutes", totalSeconds/60)
}

// parseDuration converts Postgres interval strings like "24:00:00" or Go
// duration strings like "5m" to time.Duration.
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d
	}
	// Try HH:MM:SS format from PostgreSQL
	parts := strings.Split(s, ":")
	if len(parts) == 3 {
		h, e1 := strconv.Atoi(parts[0])
		m, e2 := strconv.Atoi(parts[1])
		sec, e3 := strconv.ParseFloat(parts[2], 64)
		if e1 == nil && e2 == nil && e3 == nil {
			return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second))
		}
	}
	// "N seconds" / "N minutes" as written by toPgInterval
	if fields := strings.Fields(s); len(fields) == 2 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			switch strings.TrimSuffix(fields[1], "s") {
			case "second":
				return time.Duration(n) * time.Second
			case "minute":
				return time.Duration(n) * time.Minute
			case "hour":
				return time.Duration(n) * time.Hour
			}
		}
	}
	return fallback
}
