package bot

import (
	"slices"

	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// HeuristicStrategy reinforces its borders, attacks the weakest hostile
// neighbor of each border territory when it has the advantage, and pulls
// interior troops toward the front.
type HeuristicStrategy struct {
	// Margin is how many troops an attack must outnumber the defender by.
	Margin int
	// Consolidate also sends troops between border territories, from the
	// safest to the most threatened.
	Consolidate bool
}

func (h HeuristicStrategy) Name() string {
	switch {
	case h.Consolidate:
		return "hard"
	case h.Margin < 2:
		return "medium"
	}
	return "easy"
}

// GenerateDecisions plans the player's whole turn.
func (h HeuristicStrategy) GenerateDecisions(v View, p conquest.PlayerID) []conquest.Decision {
	b := newBoard(v, p)
	switch v.Status().Stage {
	case conquest.StageDraft:
		return draftDecisions(b)
	case conquest.StageAdditions:
		out := placeAdditions(b)
		attacks, committed := h.planAttacks(b)
		out = append(out, attacks...)
		return append(out, h.planMoves(b, committed)...)
	}
	return nil
}

// planAttacks sends everything but one troop from each border territory at
// its weakest hostile neighbor, strongest territories first. It returns the
// territories that committed troops.
func (h HeuristicStrategy) planAttacks(b *board) ([]conquest.Decision, map[conquest.TerritoryID]bool) {
	own := b.owned()
	slices.SortStableFunc(own, func(x, y conquest.TerritoryID) int {
		return b.troops(y) - b.troops(x)
	})

	committed := make(map[conquest.TerritoryID]bool)
	targeted := make(map[conquest.TerritoryID]bool)
	var out []conquest.Decision
	for _, t := range own {
		avail := b.troops(t) - 1
		if avail < 1 {
			continue
		}
		var target conquest.TerritoryID
		weakest := 1 << 30
		for _, n := range b.hostile(t) {
			if targeted[n] {
				continue
			}
			if d := b.terrs[n].Troops; d < weakest {
				target, weakest = n, d
			}
		}
		if target == "" || avail < weakest+h.Margin+1 {
			continue
		}
		targeted[target] = true
		committed[t] = true
		out = append(out, conquest.Decision{Kind: conquest.KindAttack, From: t, To: target, Quantity: avail})
	}
	return out, committed
}

// planMoves steps interior troops one territory closer to the front. With
// Consolidate set, idle border territories also reinforce their most
// threatened own neighbor.
func (h HeuristicStrategy) planMoves(b *board, committed map[conquest.TerritoryID]bool) []conquest.Decision {
	dist := b.frontDistance()
	var out []conquest.Decision
	for _, t := range b.owned() {
		avail := b.troops(t) - 1
		if avail < 1 || committed[t] {
			continue
		}
		d, reachable := dist[t]
		if !reachable {
			continue
		}
		var dest conquest.TerritoryID
		if d > 0 {
			for _, n := range b.terrs[t].Neighbors {
				if nd, ok := dist[n]; ok && b.terrs[n].Owner == b.me && nd < d {
					dest = n
					break
				}
			}
		} else if h.Consolidate && b.threat(t) == 0 {
			worst := 0
			for _, n := range b.terrs[t].Neighbors {
				if b.terrs[n].Owner != b.me {
					continue
				}
				if gap := b.threat(n) - b.troops(n); gap > worst {
					dest, worst = n, gap
				}
			}
		}
		if dest == "" {
			continue
		}
		out = append(out, conquest.Decision{Kind: conquest.KindMove, From: t, To: dest, Quantity: avail})
	}
	return out
}
