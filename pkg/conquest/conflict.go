package conquest

import (
	"fmt"
	"slices"
)

// ConflictKind distinguishes the two battle types.
type ConflictKind string

const (
	ConflictStandard ConflictKind = "standard"
	ConflictCircular ConflictKind = "circular"
)

// ConflictAgent is one army taking part in a conflict. Initial is the
// commitment taken from Home when the agent joined; Troops is what is left.
type ConflictAgent struct {
	Player  PlayerID    `json:"player,omitempty"`
	Home    TerritoryID `json:"home"`
	Initial int         `json:"initial"`
	Troops  int         `json:"troops"`
}

// agentQueue is an ordered sequence of agents owned by one conflict.
type agentQueue []ConflictAgent

func (q agentQueue) front() *ConflictAgent {
	if len(q) == 0 {
		return nil
	}
	return &q[0]
}

func (q *agentQueue) popFront() ConflictAgent {
	a := (*q)[0]
	*q = (*q)[1:]
	return a
}

func (q *agentQueue) filter(keep func(ConflictAgent) bool) {
	var kept agentQueue
	for _, a := range *q {
		if keep(a) {
			kept = append(kept, a)
		}
	}
	*q = kept
}

// Conflict is the single active battle. A standard conflict queues
// attackers against one defender holding Target; the front attacker fights
// until one side is destroyed. A circular conflict is a ring where every
// agent attacks the next and nobody can capture.
type Conflict struct {
	ID        int            `json:"id"`
	Kind      ConflictKind   `json:"kind"`
	Target    TerritoryID    `json:"target,omitempty"`
	Holder    PlayerID       `json:"holder,omitempty"`
	Defender  *ConflictAgent `json:"defender,omitempty"`
	Attackers agentQueue     `json:"attackers"`
	Round     int            `json:"round"`
}

func (c Conflict) clone() Conflict {
	cp := c
	if c.Defender != nil {
		d := *c.Defender
		cp.Defender = &d
	}
	cp.Attackers = slices.Clone(c.Attackers)
	return cp
}

// combatant records kill and death statistics for one side of a dice pair.
// Unclaimed territory fights as an NPC that keeps no statistics.
type combatant interface {
	killed(n int)
	died(n int)
}

type playerCombatant struct{ p *Player }

func (c playerCombatant) killed(n int) { c.p.Kills += n }
func (c playerCombatant) died(n int)   { c.p.Deaths += n }

type npcCombatant struct{}

func (npcCombatant) killed(int) {}
func (npcCombatant) died(int)   {}

func (gs *GameState) combatantFor(a *ConflictAgent) combatant {
	if p, ok := gs.Players[a.Player]; ok && a.Player != NoOwner {
		return playerCombatant{p}
	}
	return npcCombatant{}
}

// stepConflict plays one round of the active conflict. It returns the round
// and, when the conflict finished in this round, its outcome.
func (e *Engine) stepConflict() (*RoundReport, *ConflictOutcome, error) {
	c := e.gs.Conflict
	c.Round++
	switch c.Kind {
	case ConflictStandard:
		return e.standardRound(c)
	case ConflictCircular:
		return e.circularRound(c)
	default:
		return nil, nil, fmt.Errorf("%w: unknown conflict kind %q", ErrInvariant, c.Kind)
	}
}

func (e *Engine) standardRound(c *Conflict) (*RoundReport, *ConflictOutcome, error) {
	gs := e.gs
	att := c.Attackers.front()
	def := c.Defender
	if att == nil || def == nil {
		return nil, nil, fmt.Errorf("%w: standard conflict %d without attacker or defender", ErrInvariant, c.ID)
	}

	attRoll := AgentRoll{Player: att.Player, Territory: att.Home, Before: att.Troops}
	defRoll := AgentRoll{Player: def.Player, Territory: c.Target, Before: def.Troops}
	// An empty garrison falls without a roll.
	if def.Troops > 0 {
		attRoll.Dice = roll(e.dice, min(gs.Rules.MaxAttackDice, att.Troops))
		defRoll.Dice = roll(e.dice, min(gs.Rules.MaxDefendDice, def.Troops))
	}
	wins, losses := compareRolls(attRoll.Dice, defRoll.Dice)

	att.Troops -= losses
	def.Troops -= wins
	attC, defC := gs.combatantFor(att), gs.combatantFor(def)
	attC.killed(wins)
	defC.died(wins)
	defC.killed(losses)
	attC.died(losses)

	attRoll.After, attRoll.Losses = att.Troops, losses
	defRoll.After, defRoll.Losses = def.Troops, wins
	report := &RoundReport{Round: c.Round, Agents: []AgentRoll{attRoll, defRoll}}

	if def.Troops > 0 {
		if err := gs.SetTroops(c.Target, def.Troops); err != nil {
			return nil, nil, err
		}
	}
	// The front attacker holds the matchup until one side is spent; then the next queued attacker steps up.
	switch {
	case att.Troops == 0:
		spent := c.Attackers.popFront()
		if err := gs.AddTroops(spent.Home, -spent.Initial); err != nil {
			return nil, nil, err
		}
		if len(c.Attackers) > 0 {
			return report, nil, nil
		}
		return report, e.finishStandard(c), nil

	case def.Troops == 0:
		winner := c.Attackers.popFront()
		if err := e.capture(c, winner, def); err != nil {
			return nil, nil, err
		}
		c.Attackers.filter(func(a ConflictAgent) bool { return !gs.SameTeam(a.Player, winner.Player) })
		if len(c.Attackers) > 0 && !gs.GameOver() {
			c.Defender = &ConflictAgent{Player: winner.Player, Home: c.Target, Initial: winner.Troops, Troops: winner.Troops}
			return report, nil, nil
		}
		return report, e.finishStandard(c), nil
	}
	return report, nil, nil
}

// capture hands the target to the winning attacker, takes the attacker's
// commitment out of its home and eliminates a defender left without land.
func (e *Engine) capture(c *Conflict, winner ConflictAgent, def *ConflictAgent) error {
	gs := e.gs
	if err := gs.AddTroops(winner.Home, -winner.Initial); err != nil {
		return err
	}
	ts := gs.Territories[c.Target]
	ts.Owner = winner.Player
	ts.Troops = winner.Troops
	loser := def.Player
	if loser == NoOwner || loser == winner.Player {
		return nil
	}
	if len(gs.TerritoriesOf(loser)) == 0 {
		return gs.Eliminate(loser, winner.Player)
	}
	return nil
}

func (e *Engine) finishStandard(c *Conflict) *ConflictOutcome {
	gs := e.gs
	out := &ConflictOutcome{
		Kind:     ConflictStandard,
		Target:   c.Target,
		Captured: gs.Owner(c.Target) != c.Holder,
		Owner:    gs.Owner(c.Target),
		Final:    []AgentResult{{Territory: c.Target, Owner: gs.Owner(c.Target), Troops: gs.TroopCount(c.Target)}},
	}
	gs.Conflict = nil
	return out
}

// circularRound rolls for every agent in the ring. Each agent compares only
// against the next one and inflicts a loss for every pair it wins; ties cost
// nothing. Losses land simultaneously and the ring breaks as soon as any
// agent is destroyed.
func (e *Engine) circularRound(c *Conflict) (*RoundReport, *ConflictOutcome, error) {
	gs := e.gs
	ring := c.Attackers
	if len(ring) < 2 {
		return nil, nil, fmt.Errorf("%w: circular conflict %d has %d agents", ErrInvariant, c.ID, len(ring))
	}
	rolls := make([][]int, len(ring))
	for i := range ring {
		rolls[i] = roll(e.dice, min(gs.Rules.MaxAttackDice, ring[i].Troops))
	}
	losses := make([]int, len(ring))
	for i := range ring {
		next := (i + 1) % len(ring)
		n := 0
		for k := 0; k < min(len(rolls[i]), len(rolls[next])); k++ {
			if rolls[i][k] > rolls[next][k] {
				n++
			}
		}
		losses[next] += n
	}

	report := &RoundReport{Round: c.Round, Agents: make([]AgentRoll, len(ring))}
	destroyed := false
	for i := range ring {
		a := &ring[i]
		lost := min(losses[i], a.Troops)
		prev := (i + len(ring) - 1) % len(ring)
		gs.combatantFor(&ring[prev]).killed(lost)
		gs.combatantFor(a).died(lost)
		report.Agents[i] = AgentRoll{
			Player:    a.Player,
			Territory: a.Home,
			Dice:      rolls[i],
			Before:    a.Troops,
			After:     a.Troops - lost,
			Losses:    lost,
		}
		a.Troops -= lost
		if a.Troops == 0 {
			destroyed = true
		}
	}
	if !destroyed {
		return report, nil, nil
	}

	out := &ConflictOutcome{Kind: ConflictCircular}
	for _, a := range ring {
		if err := gs.AddTroops(a.Home, a.Troops-a.Initial); err != nil {
			return nil, nil, err
		}
		out.Final = append(out.Final, AgentResult{Territory: a.Home, Owner: gs.Owner(a.Home), Troops: gs.TroopCount(a.Home)})
	}
	gs.Conflict = nil
	return report, out, nil
}
