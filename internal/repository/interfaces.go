package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/freeeve/polite-conquest/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// GameRepository defines game and player data operations.
type GameRepository interface {
	Create(ctx context.Context, name, creatorID, mapName, turnDur, stepDelay string, maxPlayers int) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListOpen(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListFinished(ctx context.Context) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	JoinGame(ctx context.Context, gameID, userID string) error
	JoinGameAsBot(ctx context.Context, gameID, userID, difficulty string) error
	ReplaceBot(ctx context.Context, gameID, newUserID string) error
	UpdateBotDifficulty(ctx context.Context, gameID, botUserID, difficulty string) error
	PlayerCount(ctx context.Context, gameID string) (int, error)
	AssignColors(ctx context.Context, gameID string, colors map[string]string) error
	SetFinished(ctx context.Context, gameID, winner string) error
	Delete(ctx context.Context, gameID string) error
}

// TurnRepository defines turn history and resolution event operations.
type TurnRepository interface {
	CreateTurn(ctx context.Context, gameID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Turn, error)
	CurrentTurn(ctx context.Context, gameID string) (*model.Turn, error)
	ListTurns(ctx context.Context, gameID string) ([]model.Turn, error)
	ResolveTurn(ctx context.Context, turnID string, stateAfter json.RawMessage) error
	SaveEvent(ctx context.Context, ev model.TurnEvent) error
	EventsByTurn(ctx context.Context, gameID string, turn int) ([]model.TurnEvent, error)
	ListExpired(ctx context.Context) ([]model.Turn, error)
}

// GameCache defines live game state operations (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state json.RawMessage) error
	GetGameState(ctx context.Context, gameID string) (json.RawMessage, error)
	SetTimer(ctx context.Context, gameID string, deadline time.Time) error
	ClearTimer(ctx context.Context, gameID string) error
	SetStepTimer(ctx context.Context, gameID string, delay time.Duration) error
	StepPending(ctx context.Context, gameID string) (bool, error)
	DeleteGameData(ctx context.Context, gameID string) error
}
