package model

import (
	"encoding/json"
	"time"
)

// User is an account. Bots are users with provider "bot".
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game lifecycle states as stored in games.status.
const (
	GameWaiting  = "waiting"
	GameActive   = "active"
	GameFinished = "finished"
)

// Game is one conquest match: its lobby settings, pacing and seats.
type Game struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	CreatorID    string       `json:"creator_id"`
	Status       string       `json:"status"`
	Winner       string       `json:"winner,omitempty"`
	MapName      string       `json:"map_name"`
	TurnDuration string       `json:"turn_duration"`
	StepDelay    string       `json:"step_delay"`
	MaxPlayers   int          `json:"max_players"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	Players      []GamePlayer `json:"players,omitempty"`
}

// GamePlayer represents a player's membership in a game. The user id doubles
// as the player id inside the game state.
type GamePlayer struct {
	GameID        string    `json:"game_id"`
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name,omitempty"`
	Color         string    `json:"color,omitempty"`
	IsBot         bool      `json:"is_bot"`
	BotDifficulty string    `json:"bot_difficulty"`
	JoinedAt      time.Time `json:"joined_at"`
}

// Turn is one game turn: decision intake until the deadline, then stepwise
// resolution.
type Turn struct {
	ID          string          `json:"id"`
	GameID      string          `json:"game_id"`
	Number      int             `json:"number"`
	StateBefore json.RawMessage `json:"state_before"`
	StateAfter  json.RawMessage `json:"state_after,omitempty"`
	Deadline    time.Time       `json:"deadline"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TurnEvent is one resolution step of a turn, kept for replay. Seq is unique
// within a game and increases across turns.
type TurnEvent struct {
	ID        string          `json:"id"`
	GameID    string          `json:"game_id"`
	Turn      int             `json:"turn"`
	Seq       int             `json:"seq"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
