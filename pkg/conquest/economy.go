package conquest

import (
	"cmp"
	"slices"
)

// Reward is one player's troop income for a turn.
type Reward struct {
	Player          PlayerID `json:"player"`
	WeeklyPoints    int      `json:"weeklyPoints"`
	Rank            int      `json:"rank"`
	PointTroops     int      `json:"pointTroops"`
	TerritoryTroops int      `json:"territoryTroops"`
	Total           int      `json:"total"`
}

// EconomyReport is returned by BeginTurn.
type EconomyReport struct {
	Turn    int      `json:"turn"`
	Stage   Stage    `json:"stage"`
	Rewards []Reward `json:"rewards,omitempty"`
}

// computeRewards ranks active players by weekly points and pays out troops:
// one for any weekly points, one more for the top half, one more for the
// top quarter, and one per full TerritoryBonusDivisor territories owned.
// Tied players share the better rank. Weekly points are reset.
func (gs *GameState) computeRewards() []Reward {
	active := gs.ActivePlayers()
	slices.SortStableFunc(active, func(a, b PlayerID) int {
		return cmp.Compare(gs.Players[b].WeeklyPoints, gs.Players[a].WeeklyPoints)
	})
	n := float64(len(active))
	rewards := make([]Reward, 0, len(active))
	for _, id := range active {
		p := gs.Players[id]
		rank := 0
		for _, other := range active {
			if gs.Players[other].WeeklyPoints > p.WeeklyPoints {
				rank++
			}
		}
		r := Reward{Player: id, WeeklyPoints: p.WeeklyPoints, Rank: rank + 1}
		if p.WeeklyPoints > 0 {
			r.PointTroops = 1
			if float64(rank) < n*0.5 {
				r.PointTroops++
			}
			if float64(rank) < n*0.25 {
				r.PointTroops++
			}
		}
		r.TerritoryTroops = len(gs.TerritoriesOf(id)) / gs.Rules.TerritoryBonusDivisor
		r.Total = r.PointTroops + r.TerritoryTroops
		rewards = append(rewards, r)
	}
	for _, r := range rewards {
		p := gs.Players[r.Player]
		p.NewTroops += r.Total
		p.WeeklyPoints = 0
	}
	return rewards
}
