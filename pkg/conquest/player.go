package conquest

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
)

// IsEliminated reports whether the player has been assigned a final rank.
func (gs *GameState) IsEliminated(p PlayerID) bool {
	pl, ok := gs.Players[p]
	return ok && pl.FinalRank != 0
}

// Team returns the root of the player's eliminator chain. Results are
// memoized per chain and dropped whenever an elimination happens. A chain
// that revisits a player resolves to the revisited player; eliminations
// only ever point at active players, so such a loop means corrupt state.
func (gs *GameState) Team(p PlayerID) PlayerID {
	if p == NoOwner {
		return NoOwner
	}
	if root, ok := gs.teams[p]; ok {
		return root
	}
	visited := map[PlayerID]bool{}
	var path []PlayerID
	cur := p
	for {
		if root, ok := gs.teams[cur]; ok {
			cur = root
			break
		}
		if visited[cur] {
			log.Error().Str("player", string(p)).Str("loop", string(cur)).Msg("Eliminator chain loops")
			break
		}
		visited[cur] = true
		path = append(path, cur)
		pl, ok := gs.Players[cur]
		if !ok || pl.Eliminator == NoOwner {
			break
		}
		cur = pl.Eliminator
	}
	if gs.teams == nil {
		gs.teams = make(map[PlayerID]PlayerID)
	}
	for _, q := range path {
		gs.teams[q] = cur
	}
	return cur
}

// SameTeam reports whether two players resolve to the same team root.
// Unclaimed territory belongs to no team.
func (gs *GameState) SameTeam(a, b PlayerID) bool {
	if a == NoOwner || b == NoOwner {
		return false
	}
	return gs.Team(a) == gs.Team(b)
}

// VassalsOf returns, in join order, every other player whose team resolves
// to p.
func (gs *GameState) VassalsOf(p PlayerID) []PlayerID {
	var out []PlayerID
	for _, id := range gs.PlayerOrder {
		if id != p && gs.Team(id) == p {
			out = append(out, id)
		}
	}
	return out
}

// AwardPoints credits activity points earned outside the engine.
func (gs *GameState) AwardPoints(p PlayerID, n int) error {
	pl, ok := gs.Players[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, p)
	}
	if n <= 0 {
		return fmt.Errorf("points must be positive, got %d", n)
	}
	pl.Points += n
	pl.WeeklyPoints += n
	return nil
}

// Eliminate removes victim from play and attaches them to the eliminator's
// team. The victim takes the lowest unassigned final rank. When two or fewer
// players remain the survivors are ranked and the winners fixed.
func (gs *GameState) Eliminate(victim, eliminator PlayerID) error {
	v, ok := gs.Players[victim]
	if !ok {
		return fmt.Errorf("%w: eliminate %s", ErrUnknownPlayer, victim)
	}
	if v.FinalRank != 0 {
		return fmt.Errorf("%w: player %s eliminated twice", ErrInvariant, victim)
	}
	if eliminator == victim {
		return fmt.Errorf("%w: player %s cannot eliminate themselves", ErrInvariant, victim)
	}
	if _, ok := gs.Players[eliminator]; !ok {
		return fmt.Errorf("%w: eliminator %s", ErrUnknownPlayer, eliminator)
	}

	v.FinalRank = len(gs.ActivePlayers())
	v.Color = ""
	v.Eliminator = eliminator
	v.NewTroops = 0
	gs.teams = nil
	delete(gs.Additions, victim)
	delete(gs.Attacks, victim)
	delete(gs.Moves, victim)
	gs.Pending = append(gs.Pending, victim)

	if survivors := gs.ActivePlayers(); len(survivors) <= 2 {
		gs.rankSurvivors(survivors)
	}
	return nil
}

// rankSurvivors assigns the top final ranks by team territory count, then
// troops, then points, then id.
func (gs *GameState) rankSurvivors(survivors []PlayerID) {
	slices.SortFunc(survivors, func(a, b PlayerID) int {
		if c := cmp.Compare(len(gs.TeamTerritories(b)), len(gs.TeamTerritories(a))); c != 0 {
			return c
		}
		if c := cmp.Compare(gs.TroopsOf(b), gs.TroopsOf(a)); c != 0 {
			return c
		}
		if c := cmp.Compare(gs.Players[b].Points, gs.Players[a].Points); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for i, id := range survivors {
		gs.Players[id].FinalRank = i + 1
	}
	gs.Winners = survivors
}
