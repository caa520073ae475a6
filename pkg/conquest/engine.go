package conquest

import (
	"encoding"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Engine owns one game's state for the duration of a call. It is not safe
// for concurrent use; callers serialize access per game.
type Engine struct {
	m    *TerritoryMap
	gs   *GameState
	dice Dice
}

// New starts a game on m with every territory unclaimed.
func New(m *TerritoryMap, roster []Player, rules Rules, dice Dice) (*Engine, error) {
	gs, err := NewGameState(m, roster, rules)
	if err != nil {
		return nil, err
	}
	e := &Engine{m: m, gs: gs, dice: dice}
	e.syncDice()
	return e, nil
}

// Open resumes a game from saved state. With nil dice the generator state
// saved in gs is restored.
func Open(m *TerritoryMap, gs *GameState, dice Dice) (*Engine, error) {
	if gs.MapName != m.Label {
		return nil, fmt.Errorf("state is for map %q, not %q", gs.MapName, m.Label)
	}
	if dice == nil {
		if len(gs.RNG) == 0 {
			return nil, errors.New("state has no saved dice")
		}
		d, err := RestoreDice(gs.RNG)
		if err != nil {
			return nil, err
		}
		dice = d
	}
	return &Engine{m: m, gs: gs, dice: dice}, nil
}

// State returns the live game state, with the dice state saved into it.
func (e *Engine) State() *GameState {
	e.syncDice()
	return e.gs
}

// Map returns the territory graph the game is played on.
func (e *Engine) Map() *TerritoryMap {
	return e.m
}

func (e *Engine) syncDice() {
	bm, ok := e.dice.(encoding.BinaryMarshaler)
	if !ok {
		return
	}
	b, err := bm.MarshalBinary()
	if err != nil {
		log.Error().Err(err).Msg("Failed to snapshot dice")
		return
	}
	e.gs.RNG = b
}

func (e *Engine) restoreDice(state []byte) {
	if _, ok := e.dice.(*SeededDice); !ok || len(state) == 0 {
		return
	}
	if d, err := RestoreDice(state); err == nil {
		e.dice = d
	}
}

// AwardPoints credits activity points to a player.
func (e *Engine) AwardPoints(p PlayerID, n int) error {
	return e.gs.AwardPoints(p, n)
}

// BeginTurn opens the next turn. The first turn is the draft; every later
// turn pays out troop rewards and opens decision intake.
func (e *Engine) BeginTurn() (*EconomyReport, error) {
	gs := e.gs
	if gs.GameOver() {
		return nil, ErrGameOver
	}
	if gs.Stage != StageSetup && gs.Stage != StageComplete {
		return nil, fmt.Errorf("%w: turn %d is in %s", ErrTurnInProgress, gs.Turn, gs.Stage)
	}
	gs.Turn++
	gs.clearTurn()

	report := &EconomyReport{Turn: gs.Turn}
	if gs.Turn == 1 {
		gs.startDraft(e.dice, len(e.m.IDs()))
		gs.Stage = StageDraft
	} else {
		report.Rewards = gs.computeRewards()
		gs.Stage = StageAdditions
	}
	report.Stage = gs.Stage
	e.syncDice()
	return report, nil
}

func (gs *GameState) clearTurn() {
	gs.Draft = nil
	gs.Additions = nil
	gs.Attacks = nil
	gs.Moves = nil
	gs.Planned = nil
	gs.Conflict = nil
}

// Advance performs exactly one unit of resolution work. On error the state
// and dice are left as they were before the call.
func (e *Engine) Advance() (*ResolutionEvent, error) {
	gs := e.gs
	if gs.Stage == StageSetup || gs.Stage == StageComplete {
		return nil, ErrNothingToAdvance
	}
	backup := gs.Clone()
	rng := gs.RNG

	ev, err := e.advance()
	if err == nil {
		err = e.gs.checkInvariants()
	}
	if err != nil {
		log.Error().Err(err).Int("turn", backup.Turn).Str("stage", string(backup.Stage)).Msg("Resolution step failed")
		e.gs = backup
		e.restoreDice(rng)
		return nil, err
	}

	gs.Seq++
	ev.Seq = gs.Seq
	ev.Turn = gs.Turn
	ev.Continue = ev.Kind != EventTurnComplete
	e.syncDice()
	return ev, nil
}

func (e *Engine) advance() (*ResolutionEvent, error) {
	gs := e.gs
	if len(gs.Pending) > 0 {
		return e.announceElimination(), nil
	}
	if gs.GameOver() {
		return e.closeTurn(), nil
	}

	switch gs.Stage {
	case StageDraft:
		if !gs.Draft.Done() {
			if pick := e.draftPick(); pick != nil {
				return &ResolutionEvent{Kind: EventDraftPicked, Draft: pick}, nil
			}
		}
		return e.closeTurn(), nil

	case StageAdditions:
		report, notices, err := e.applyAdditions()
		if err != nil {
			return nil, err
		}
		return &ResolutionEvent{Kind: EventAdditionsApplied, Additions: report, Notices: notices}, nil

	case StageAttacks:
		if gs.Conflict != nil {
			round, outcome, err := e.stepConflict()
			if err != nil {
				return nil, err
			}
			ev := &ResolutionEvent{Kind: EventConflictRound, Round: round, Conflict: snapshotConflict(gs.Conflict)}
			if outcome != nil {
				ev.Kind = EventConflictEnded
				ev.Outcome = outcome
			}
			return ev, nil
		}
		c, notices := e.scheduleConflict()
		if c != nil {
			gs.Conflict = c
			return &ResolutionEvent{Kind: EventConflictStarted, Conflict: snapshotConflict(c), Notices: notices}, nil
		}
		moves, err := e.applyMovements()
		if err != nil {
			return nil, err
		}
		gs.Stage = StageMovements
		return &ResolutionEvent{Kind: EventMovementsApplied, Movements: moves, Notices: notices}, nil

	case StageMovements:
		return e.closeTurn(), nil
	}
	return nil, fmt.Errorf("%w: cannot advance stage %q", ErrInvariant, gs.Stage)
}

func snapshotConflict(c *Conflict) *Conflict {
	if c == nil {
		return nil
	}
	cp := c.clone()
	return &cp
}

// applyAdditions places every queued troop, then converts queued attacks
// into planned attacks. Attack intake closes here; move intake stays open
// until movements are applied.
func (e *Engine) applyAdditions() (*AdditionsReport, []Notice, error) {
	gs := e.gs
	report := &AdditionsReport{Added: make(map[TerritoryID]int)}
	var notices []Notice
	for _, p := range gs.PlayerOrder {
		pl := gs.Players[p]
		for _, t := range gs.Additions[p] {
			d := Decision{Kind: KindAdd, Territory: t}
			if !gs.SameTeam(gs.Owner(t), p) {
				notices = append(notices, Notice{Player: p, Decision: d.Describe(), Reason: "territory is no longer held by your team"})
				continue
			}
			if pl.NewTroops < 1 {
				notices = append(notices, Notice{Player: p, Decision: d.Describe(), Reason: "no new troops left"})
				continue
			}
			if err := gs.AddTroops(t, 1); err != nil {
				return nil, nil, err
			}
			pl.NewTroops--
			report.Added[t]++
		}
	}
	gs.Additions = nil
	notices = append(notices, e.planAttacks()...)
	report.Planned = len(gs.Planned)
	gs.Stage = StageAttacks
	return report, notices, nil
}

func (e *Engine) announceElimination() *ResolutionEvent {
	gs := e.gs
	victim := gs.Pending[0]
	gs.Pending = gs.Pending[1:]
	p := gs.Players[victim]
	team := gs.Team(victim)
	return &ResolutionEvent{
		Kind: EventPlayerEliminated,
		Elimination: &EliminationReport{
			Player:     victim,
			Eliminator: p.Eliminator,
			FinalRank:  p.FinalRank,
			Team:       team,
			Vassals:    gs.VassalsOf(team),
			GameOver:   gs.GameOver(),
			Winners:    gs.Winners,
		},
	}
}

// closeTurn drops whatever is left of the turn's decisions and conflicts.
func (e *Engine) closeTurn() *ResolutionEvent {
	gs := e.gs
	gs.clearTurn()
	gs.Stage = StageComplete
	return &ResolutionEvent{
		Kind:    EventTurnComplete,
		Summary: &TurnSummary{GameOver: gs.GameOver(), Winners: gs.Winners},
	}
}
