package conquest

import (
	"fmt"
	"maps"
	"slices"
)

// PlayerID identifies a player. The empty id marks an unclaimed (NPC) territory.
type PlayerID string

// NoOwner is the owner of an unclaimed territory.
const NoOwner PlayerID = ""

// Stage is the resolution stage of the current turn.
type Stage string

const (
	StageSetup     Stage = "setup"
	StageDraft     Stage = "draft"
	StageAdditions Stage = "additions"
	StageAttacks   Stage = "attacks"
	StageMovements Stage = "movements"
	StageComplete  Stage = "complete"
)

// TerritoryState is the mutable per-game state of one territory.
type TerritoryState struct {
	Owner  PlayerID `json:"owner,omitempty"`
	Troops int      `json:"troops"`
}

// Player is a participant and their standing.
type Player struct {
	ID           PlayerID `json:"id"`
	Name         string   `json:"name"`
	Points       int      `json:"points"`
	WeeklyPoints int      `json:"weeklyPoints"`
	Kills        int      `json:"kills"`
	Deaths       int      `json:"deaths"`
	NewTroops    int      `json:"newTroops"`
	Color        string   `json:"color,omitempty"`
	TroopIcon    string   `json:"troopIcon,omitempty"`
	Eliminator   PlayerID `json:"eliminator,omitempty"`
	FinalRank    int      `json:"finalRank,omitempty"`
}

// Rules are the tunable game constants.
type Rules struct {
	DraftTroops           int `json:"draftTroops" mapstructure:"draft_troops"`
	DraftRounds           int `json:"draftRounds" mapstructure:"draft_rounds"`
	NPCTroops             int `json:"npcTroops" mapstructure:"npc_troops"`
	MaxAttackDice         int `json:"maxAttackDice" mapstructure:"max_attack_dice"`
	MaxDefendDice         int `json:"maxDefendDice" mapstructure:"max_defend_dice"`
	TerritoryBonusDivisor int `json:"territoryBonusDivisor" mapstructure:"territory_bonus_divisor"`
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		DraftTroops:           3,
		DraftRounds:           1,
		NPCTroops:             2,
		MaxAttackDice:         3,
		MaxDefendDice:         2,
		TerritoryBonusDivisor: 3,
	}
}

// Validate checks that every rule is usable.
func (r Rules) Validate() error {
	switch {
	case r.DraftTroops < 1:
		return fmt.Errorf("draft troops must be at least 1, got %d", r.DraftTroops)
	case r.DraftRounds < 1:
		return fmt.Errorf("draft rounds must be at least 1, got %d", r.DraftRounds)
	case r.NPCTroops < 0:
		return fmt.Errorf("npc troops must not be negative, got %d", r.NPCTroops)
	case r.MaxAttackDice < 1 || r.MaxDefendDice < 1:
		return fmt.Errorf("dice caps must be at least 1, got %d/%d", r.MaxAttackDice, r.MaxDefendDice)
	case r.TerritoryBonusDivisor < 1:
		return fmt.Errorf("territory bonus divisor must be at least 1, got %d", r.TerritoryBonusDivisor)
	}
	return nil
}

// AttackDecision is a submitted, not yet scheduled attack intent.
type AttackDecision struct {
	From     TerritoryID `json:"from"`
	To       TerritoryID `json:"to"`
	Quantity int         `json:"quantity"`
}

// MoveDecision is a submitted troop movement between a player's territories.
type MoveDecision struct {
	From     TerritoryID `json:"from"`
	To       TerritoryID `json:"to"`
	Quantity int         `json:"quantity"`
}

// GameState is the complete persisted state of one game. The territory
// graph itself is not part of it; MapName selects it on load.
type GameState struct {
	MapName     string                          `json:"map"`
	Turn        int                             `json:"turn"`
	Stage       Stage                           `json:"stage"`
	Rules       Rules                           `json:"rules"`
	Territories map[TerritoryID]*TerritoryState `json:"territories"`
	Players     map[PlayerID]*Player            `json:"players"`
	PlayerOrder []PlayerID                      `json:"playerOrder"`
	Winners     []PlayerID                      `json:"winners,omitempty"`

	Draft     *DraftState                   `json:"draft,omitempty"`
	Additions map[PlayerID][]TerritoryID    `json:"additions,omitempty"`
	Attacks   map[PlayerID][]AttackDecision `json:"attacks,omitempty"`
	Moves     map[PlayerID][]MoveDecision   `json:"moves,omitempty"`
	Planned   []PlannedAttack               `json:"planned,omitempty"`
	Conflict  *Conflict                     `json:"conflict,omitempty"`
	Pending   []PlayerID                    `json:"pendingEliminations,omitempty"`
	NextID    int                           `json:"nextId"`
	Seq       int                           `json:"seq"`
	RNG       []byte                        `json:"rng,omitempty"`

	teams map[PlayerID]PlayerID
}

// NewGameState returns a game on the given map with every territory
// unclaimed and garrisoned with the NPC troop count.
func NewGameState(m *TerritoryMap, roster []Player, rules Rules) (*GameState, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if len(roster) < 2 {
		return nil, fmt.Errorf("a game needs at least 2 players, got %d", len(roster))
	}
	gs := &GameState{
		MapName:     m.Label,
		Stage:       StageSetup,
		Rules:       rules,
		Territories: make(map[TerritoryID]*TerritoryState, len(m.IDs())),
		Players:     make(map[PlayerID]*Player, len(roster)),
	}
	for _, id := range m.IDs() {
		gs.Territories[id] = &TerritoryState{Troops: rules.NPCTroops}
	}
	for _, p := range roster {
		if p.ID == NoOwner {
			return nil, fmt.Errorf("player with empty id")
		}
		if _, dup := gs.Players[p.ID]; dup {
			return nil, fmt.Errorf("duplicate player %s", p.ID)
		}
		gs.Players[p.ID] = &Player{ID: p.ID, Name: p.Name, Color: p.Color, TroopIcon: p.TroopIcon}
		gs.PlayerOrder = append(gs.PlayerOrder, p.ID)
	}
	return gs, nil
}

// Clone returns a deep copy of the game state.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.teams = nil
	if gs.Territories != nil {
		c.Territories = make(map[TerritoryID]*TerritoryState, len(gs.Territories))
		for id, t := range gs.Territories {
			cp := *t
			c.Territories[id] = &cp
		}
	}
	if gs.Players != nil {
		c.Players = make(map[PlayerID]*Player, len(gs.Players))
		for id, p := range gs.Players {
			cp := *p
			c.Players[id] = &cp
		}
	}
	c.PlayerOrder = slices.Clone(gs.PlayerOrder)
	c.Winners = slices.Clone(gs.Winners)
	if gs.Draft != nil {
		d := gs.Draft.clone()
		c.Draft = &d
	}
	c.Additions = cloneDecisions(gs.Additions)
	c.Attacks = cloneDecisions(gs.Attacks)
	c.Moves = cloneDecisions(gs.Moves)
	c.Planned = slices.Clone(gs.Planned)
	if gs.Conflict != nil {
		cf := gs.Conflict.clone()
		c.Conflict = &cf
	}
	c.Pending = slices.Clone(gs.Pending)
	c.RNG = slices.Clone(gs.RNG)
	return &c
}

func cloneDecisions[T any](m map[PlayerID][]T) map[PlayerID][]T {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}

// Owner returns the owner of a territory, or NoOwner.
func (gs *GameState) Owner(t TerritoryID) PlayerID {
	if ts, ok := gs.Territories[t]; ok {
		return ts.Owner
	}
	return NoOwner
}

// TroopCount returns the garrison of a territory.
func (gs *GameState) TroopCount(t TerritoryID) int {
	if ts, ok := gs.Territories[t]; ok {
		return ts.Troops
	}
	return 0
}

// SetTroops replaces the garrison of a territory.
func (gs *GameState) SetTroops(t TerritoryID, n int) error {
	ts, ok := gs.Territories[t]
	if !ok {
		return fmt.Errorf("%w: set troops on unknown territory %s", ErrInvariant, t)
	}
	if n < 0 {
		return fmt.Errorf("%w: territory %s would hold %d troops", ErrInvariant, t, n)
	}
	ts.Troops = n
	return nil
}

// AddTroops adds delta (possibly negative) to a garrison. A result below
// zero is a defect and leaves the territory unchanged.
func (gs *GameState) AddTroops(t TerritoryID, delta int) error {
	ts, ok := gs.Territories[t]
	if !ok {
		return fmt.Errorf("%w: add troops on unknown territory %s", ErrInvariant, t)
	}
	if ts.Troops+delta < 0 {
		return fmt.Errorf("%w: territory %s has %d troops, cannot apply %d", ErrInvariant, t, ts.Troops, delta)
	}
	ts.Troops += delta
	return nil
}

// TerritoriesOf returns the sorted territories owned by the player.
func (gs *GameState) TerritoriesOf(p PlayerID) []TerritoryID {
	var out []TerritoryID
	for id, ts := range gs.Territories {
		if ts.Owner == p && p != NoOwner {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// TeamTerritories returns the sorted territories owned by any member of
// the player's team.
func (gs *GameState) TeamTerritories(p PlayerID) []TerritoryID {
	team := gs.Team(p)
	var out []TerritoryID
	for id, ts := range gs.Territories {
		if ts.Owner != NoOwner && gs.Team(ts.Owner) == team {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// TroopsOf returns the total garrison across the player's territories.
func (gs *GameState) TroopsOf(p PlayerID) int {
	n := 0
	for _, ts := range gs.Territories {
		if ts.Owner == p && p != NoOwner {
			n += ts.Troops
		}
	}
	return n
}

// GameOver reports whether the winners have been fixed.
func (gs *GameState) GameOver() bool {
	return len(gs.Winners) > 0
}

// ActivePlayers returns the non-eliminated players in join order.
func (gs *GameState) ActivePlayers() []PlayerID {
	var out []PlayerID
	for _, id := range gs.PlayerOrder {
		if !gs.IsEliminated(id) {
			out = append(out, id)
		}
	}
	return out
}

// checkInvariants verifies the invariants every resolution step must keep.
func (gs *GameState) checkInvariants() error {
	for id, ts := range gs.Territories {
		if ts.Troops < 0 {
			return fmt.Errorf("%w: territory %s has %d troops", ErrInvariant, id, ts.Troops)
		}
		if ts.Owner == NoOwner {
			continue
		}
		p, ok := gs.Players[ts.Owner]
		if !ok {
			return fmt.Errorf("%w: territory %s owned by unknown player %s", ErrInvariant, id, ts.Owner)
		}
		if p.Eliminator != NoOwner {
			return fmt.Errorf("%w: territory %s owned by eliminated player %s", ErrInvariant, id, ts.Owner)
		}
	}
	seen := make(map[int]PlayerID)
	for _, p := range gs.Players {
		if p.FinalRank == 0 {
			continue
		}
		if prev, dup := seen[p.FinalRank]; dup {
			return fmt.Errorf("%w: final rank %d assigned to %s and %s", ErrInvariant, p.FinalRank, prev, p.ID)
		}
		seen[p.FinalRank] = p.ID
	}
	return nil
}
