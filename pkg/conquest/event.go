package conquest

// EventKind identifies the unit of work an Advance call performed.
type EventKind string

const (
	EventDraftPicked      EventKind = "draft_picked"
	EventAdditionsApplied EventKind = "additions_applied"
	EventConflictStarted  EventKind = "conflict_started"
	EventConflictRound    EventKind = "conflict_round"
	EventConflictEnded    EventKind = "conflict_ended"
	EventPlayerEliminated EventKind = "player_eliminated"
	EventMovementsApplied EventKind = "movements_applied"
	EventTurnComplete     EventKind = "turn_complete"
)

// ResolutionEvent is the renderable result of one Advance call. Exactly one
// payload field matching Kind is set. Continue is false only when the turn
// has closed.
type ResolutionEvent struct {
	Kind     EventKind `json:"kind"`
	Turn     int       `json:"turn"`
	Seq      int       `json:"seq"`
	Continue bool      `json:"continue"`
	Notices  []Notice  `json:"notices,omitempty"`

	Draft       *DraftPick         `json:"draft,omitempty"`
	Additions   *AdditionsReport   `json:"additions,omitempty"`
	Conflict    *Conflict          `json:"conflict,omitempty"`
	Round       *RoundReport       `json:"round,omitempty"`
	Outcome     *ConflictOutcome   `json:"outcome,omitempty"`
	Elimination *EliminationReport `json:"elimination,omitempty"`
	Movements   []AppliedMove      `json:"movements,omitempty"`
	Summary     *TurnSummary       `json:"summary,omitempty"`
}

// Notice tells a player that one of their decisions was dropped during
// resolution and why.
type Notice struct {
	Player   PlayerID `json:"player"`
	Decision string   `json:"decision"`
	Reason   string   `json:"reason"`
}

// DraftPick is one territory assignment of the opening draft.
type DraftPick struct {
	Player    PlayerID    `json:"player"`
	Territory TerritoryID `json:"territory"`
	Troops    int         `json:"troops"`
	Preferred bool        `json:"preferred"`
}

// AdditionsReport lists the troops placed per territory and how many
// attacks entered scheduling.
type AdditionsReport struct {
	Added   map[TerritoryID]int `json:"added"`
	Planned int                 `json:"planned"`
}

// AgentRoll is one agent's part of a combat round.
type AgentRoll struct {
	Player    PlayerID    `json:"player,omitempty"`
	Territory TerritoryID `json:"territory"`
	Dice      []int       `json:"dice"`
	Before    int         `json:"before"`
	After     int         `json:"after"`
	Losses    int         `json:"losses"`
}

// RoundReport is one dice exchange. For standard conflicts Agents holds
// the active attacker followed by the defender; for circular conflicts it
// holds the whole ring.
type RoundReport struct {
	Round  int         `json:"round"`
	Agents []AgentRoll `json:"agents"`
}

// TotalLosses sums the troops lost by every agent in the round.
func (r *RoundReport) TotalLosses() int {
	n := 0
	for _, a := range r.Agents {
		n += a.Losses
	}
	return n
}

// ConflictOutcome summarizes a finished conflict.
type ConflictOutcome struct {
	Kind     ConflictKind  `json:"kind"`
	Target   TerritoryID   `json:"target,omitempty"`
	Captured bool          `json:"captured"`
	Owner    PlayerID      `json:"owner,omitempty"`
	Final    []AgentResult `json:"final"`
}

// AgentResult is a territory's garrison after a conflict ended.
type AgentResult struct {
	Territory TerritoryID `json:"territory"`
	Owner     PlayerID    `json:"owner,omitempty"`
	Troops    int         `json:"troops"`
}

// EliminationReport announces a player's elimination.
type EliminationReport struct {
	Player     PlayerID   `json:"player"`
	Eliminator PlayerID   `json:"eliminator"`
	FinalRank  int        `json:"finalRank"`
	Team       PlayerID   `json:"team"`
	Vassals    []PlayerID `json:"vassals,omitempty"`
	GameOver   bool       `json:"gameOver"`
	Winners    []PlayerID `json:"winners,omitempty"`
}

// AppliedMove is a movement that took effect.
type AppliedMove struct {
	Player   PlayerID    `json:"player"`
	From     TerritoryID `json:"from"`
	To       TerritoryID `json:"to"`
	Quantity int         `json:"quantity"`
}

// TurnSummary closes a turn.
type TurnSummary struct {
	GameOver bool       `json:"gameOver"`
	Winners  []PlayerID `json:"winners,omitempty"`
}
