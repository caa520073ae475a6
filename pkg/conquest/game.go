package conquest

import (
	"encoding/json"
	"fmt"
)

// VariantConquest tags state produced by this package's Engine.
const VariantConquest = "conquest"

// Game is the capability set a game variant exposes to the service layer.
// The variant is chosen once, when the persisted envelope is loaded.
type Game interface {
	BeginTurn() (*EconomyReport, error)
	Submit(p PlayerID, d Decision) error
	RetractDecisions(p PlayerID, kind DecisionKind) error
	Decisions(p PlayerID) []Decision
	AwardPoints(p PlayerID, n int) error
	Advance() (*ResolutionEvent, error)
	Territories() []TerritoryView
	Players() []PlayerView
	Status() Status
	Envelope() (Envelope, error)
}

// Envelope is the persisted form of a game: a variant tag and the
// variant's own state document.
type Envelope struct {
	Variant string          `json:"variant"`
	State   json.RawMessage `json:"state"`
}

var _ Game = (*Engine)(nil)

// Envelope serializes the game state, dice included.
func (e *Engine) Envelope() (Envelope, error) {
	e.syncDice()
	b, err := json.Marshal(e.gs)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal game state: %w", err)
	}
	return Envelope{Variant: VariantConquest, State: b}, nil
}

// Load restores a game from its envelope.
func Load(env Envelope) (Game, error) {
	switch env.Variant {
	case VariantConquest:
		var gs GameState
		if err := json.Unmarshal(env.State, &gs); err != nil {
			return nil, fmt.Errorf("unmarshal conquest state: %w", err)
		}
		m, err := MapByName(gs.MapName)
		if err != nil {
			return nil, err
		}
		return Open(m, &gs, nil)
	default:
		return nil, fmt.Errorf("unknown game variant %q", env.Variant)
	}
}

// Marshal is a convenience wrapper encoding a game's envelope as JSON.
func Marshal(g Game) ([]byte, error) {
	env, err := g.Envelope()
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes an envelope produced by Marshal and loads the game.
func Unmarshal(data []byte) (Game, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return Load(env)
}
