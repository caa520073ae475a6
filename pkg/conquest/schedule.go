package conquest

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
)

// PlannedAttack is a validated attack waiting to be scheduled into a
// conflict. Actual is the requested quantity clamped so one troop always
// stays home; it is recomputed before every scheduling pass.
type PlannedAttack struct {
	ID        int         `json:"id"`
	Player    PlayerID    `json:"player"`
	From      TerritoryID `json:"from"`
	To        TerritoryID `json:"to"`
	Requested int         `json:"requested"`
	Actual    int         `json:"actual"`
}

func (a PlannedAttack) describe() string {
	return Decision{Kind: KindAttack, From: a.From, To: a.To, Quantity: a.Requested}.Describe()
}

// planAttacks turns the queued attack decisions into planned attacks, in
// join order, and closes attack intake.
func (e *Engine) planAttacks() []Notice {
	gs := e.gs
	for _, p := range gs.PlayerOrder {
		for _, d := range gs.Attacks[p] {
			a := PlannedAttack{ID: gs.nextID(), Player: p, From: d.From, To: d.To, Requested: d.Quantity}
			gs.Planned = append(gs.Planned, a)
		}
	}
	gs.Attacks = nil
	return e.refreshPlanned()
}

func (gs *GameState) nextID() int {
	gs.NextID++
	return gs.NextID
}

// refreshPlanned recomputes every actual quantity and discards attacks
// made stale by earlier conflicts.
func (e *Engine) refreshPlanned() []Notice {
	gs := e.gs
	var notices []Notice
	kept := gs.Planned[:0]
	for _, a := range gs.Planned {
		reason := ""
		switch {
		case gs.Owner(a.From) != a.Player:
			reason = fmt.Sprintf("you no longer hold %s", e.m.Name(a.From))
		case gs.SameTeam(gs.Owner(a.To), a.Player):
			reason = fmt.Sprintf("%s is now held by your team", e.m.Name(a.To))
		default:
			a.Actual = min(a.Requested, gs.TroopCount(a.From)-1)
			if a.Actual < 1 {
				reason = fmt.Sprintf("no troops left in %s to attack with", e.m.Name(a.From))
			}
		}
		if reason != "" {
			notices = append(notices, Notice{Player: a.Player, Decision: a.describe(), Reason: reason})
			continue
		}
		kept = append(kept, a)
	}
	gs.Planned = kept
	return notices
}

// dependencies returns, for each planned attack, the indexes of the
// attacks it depends on: those leaving the territory it targets.
func dependencies(planned []PlannedAttack) [][]int {
	deps := make([][]int, len(planned))
	for x := range planned {
		for y := range planned {
			if x != y && planned[y].From == planned[x].To {
				deps[x] = append(deps[x], y)
			}
		}
	}
	return deps
}

// shortestCycle returns the shortest dependency cycle as indexes in
// dependency order, so each attack targets the home of the next. A shortest
// cycle never visits a territory twice. It returns nil when the graph is
// acyclic.
func shortestCycle(deps [][]int) []int {
	var best []int
	for start := range deps {
		parent := make([]int, len(deps))
		for i := range parent {
			parent[i] = -1
		}
		queue := []int{start}
		seen := map[int]bool{start: true}
		found := -1
		for len(queue) > 0 && found < 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range deps[cur] {
				if next == start {
					found = cur
					break
				}
				if !seen[next] {
					seen[next] = true
					parent[next] = cur
					queue = append(queue, next)
				}
			}
		}
		if found < 0 {
			continue
		}
		var cycle []int
		for n := found; n != -1; n = parent[n] {
			cycle = append(cycle, n)
		}
		slices.Reverse(cycle)
		if best == nil || len(cycle) < len(best) {
			best = cycle
		}
	}
	return best
}

// scheduleConflict picks the next atomic conflict from the planned attacks
// and removes its attacks from the pending set. Cycles become circular
// conflicts, except a two-way exchange of unequal size which becomes a
// standard attack on the smaller side's home. Otherwise every attack on one
// dependency-free target is bundled into a standard conflict.
func (e *Engine) scheduleConflict() (*Conflict, []Notice) {
	gs := e.gs
	notices := e.refreshPlanned()
	if len(gs.Planned) == 0 {
		return nil, notices
	}
	planned := gs.Planned
	deps := dependencies(planned)

	var chosen []int
	var c *Conflict
	if cycle := shortestCycle(deps); cycle != nil {
		switch {
		case len(cycle) < 2:
			log.Error().Ints("cycle", cycle).Msg("Attack dependency cycle shorter than 2")
		case len(cycle) == 2 && planned[cycle[0]].Actual != planned[cycle[1]].Actual:
			big, small := cycle[0], cycle[1]
			if planned[small].Actual > planned[big].Actual {
				big, small = small, big
			}
			chosen = []int{big, small}
			c = e.standardConflict(planned[big].To, []PlannedAttack{planned[big]})
			s := planned[small]
			notices = append(notices, Notice{
				Player:   s.Player,
				Decision: s.describe(),
				Reason:   fmt.Sprintf("met a larger attack from %s and defends instead", e.m.Name(s.To)),
			})
		default:
			chosen = cycle
			c = e.circularConflict(planned, cycle)
		}
	}

	if c == nil {
		var free []int
		for i := range planned {
			if len(deps[i]) == 0 {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			log.Warn().Int("pending", len(planned)).Msg("No dependency-free attack, picking one at random")
			free = []int{e.dice.Intn(len(planned))}
		}
		e.dice.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
		target := planned[free[0]].To
		var group []PlannedAttack
		for i, a := range planned {
			if a.To == target {
				chosen = append(chosen, i)
				group = append(group, a)
			}
		}
		slices.SortStableFunc(group, func(a, b PlannedAttack) int { return cmp.Compare(b.Actual, a.Actual) })
		c = e.standardConflict(target, group)
	}

	var rest []PlannedAttack
	for i, a := range planned {
		if !slices.Contains(chosen, i) {
			rest = append(rest, a)
		}
	}
	gs.Planned = rest
	return c, notices
}

func (e *Engine) standardConflict(target TerritoryID, attacks []PlannedAttack) *Conflict {
	gs := e.gs
	garrison := gs.TroopCount(target)
	c := &Conflict{
		ID:       gs.nextID(),
		Kind:     ConflictStandard,
		Target:   target,
		Holder:   gs.Owner(target),
		Defender: &ConflictAgent{Player: gs.Owner(target), Home: target, Initial: garrison, Troops: garrison},
	}
	for _, a := range attacks {
		c.Attackers = append(c.Attackers, ConflictAgent{Player: a.Player, Home: a.From, Initial: a.Actual, Troops: a.Actual})
	}
	return c
}

// circularConflict builds a ring in cycle order, rotated so the largest
// attack comes first.
func (e *Engine) circularConflict(planned []PlannedAttack, cycle []int) *Conflict {
	first := 0
	for i, idx := range cycle {
		if planned[idx].Actual > planned[cycle[first]].Actual {
			first = i
		}
	}
	c := &Conflict{ID: e.gs.nextID(), Kind: ConflictCircular}
	for k := range cycle {
		a := planned[cycle[(first+k)%len(cycle)]]
		c.Attackers = append(c.Attackers, ConflictAgent{Player: a.Player, Home: a.From, Initial: a.Actual, Troops: a.Actual})
	}
	return c
}
