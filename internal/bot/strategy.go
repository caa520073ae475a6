package bot

import (
	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// View is the read-only part of a game a strategy plans against.
// conquest.Game satisfies it.
type View interface {
	Status() conquest.Status
	Territories() []conquest.TerritoryView
	Players() []conquest.PlayerView
}

// Strategy generates decisions for a bot player. Decisions are returned in
// the order they must be submitted: additions before the attacks that
// count on them.
type Strategy interface {
	Name() string
	GenerateDecisions(v View, p conquest.PlayerID) []conquest.Decision
}

// StrategyForDifficulty returns the appropriate strategy for a bot difficulty level.
func StrategyForDifficulty(difficulty string) Strategy {
	switch difficulty {
	case "medium":
		return HeuristicStrategy{Margin: 1}
	case "hard":
		return HeuristicStrategy{Margin: 0, Consolidate: true}
	case "random":
		return RandomStrategy{}
	case "hold":
		return HoldStrategy{}
	default:
		return HeuristicStrategy{Margin: 2}
	}
}

// --- HoldStrategy ---

// HoldStrategy drafts like the heuristic bot and stacks every new troop on
// its most threatened territory. It never attacks or moves.
type HoldStrategy struct{}

func (HoldStrategy) Name() string { return "hold" }

func (HoldStrategy) GenerateDecisions(v View, p conquest.PlayerID) []conquest.Decision {
	b := newBoard(v, p)
	switch v.Status().Stage {
	case conquest.StageDraft:
		return draftDecisions(b)
	case conquest.StageAdditions:
		return placeAdditions(b)
	}
	return nil
}

// --- RandomStrategy ---

// RandomStrategy generates random but valid decisions for testing.
type RandomStrategy struct{}

func (RandomStrategy) Name() string { return "random" }

// GenerateDecisions places troops at random, then attacks or moves out of
// about half of the player's stronger territories.
func (RandomStrategy) GenerateDecisions(v View, p conquest.PlayerID) []conquest.Decision {
	b := newBoard(v, p)
	stage := v.Status().Stage
	if stage == conquest.StageDraft {
		var out []conquest.Decision
		for _, i := range botPerm(len(b.order))[:min(3, len(b.order))] {
			if t := b.order[i]; b.terrs[t].Owner == conquest.NoOwner {
				out = append(out, conquest.Decision{Kind: conquest.KindDraft, Territory: t})
			}
		}
		return out
	}
	if stage != conquest.StageAdditions {
		return nil
	}

	own := b.owned()
	if len(own) == 0 {
		return nil
	}
	var out []conquest.Decision
	for i := 0; i < b.self.NewTroops; i++ {
		t := botPick(own)
		b.added[t]++
		out = append(out, conquest.Decision{Kind: conquest.KindAdd, Territory: t})
	}
	for _, t := range own {
		avail := b.troops(t) - 1
		nbs := b.terrs[t].Neighbors
		if avail < 1 || len(nbs) == 0 || botFloat64() < 0.5 {
			continue
		}
		n := botPick(nbs)
		qty := 1 + botIntn(avail)
		switch {
		case b.terrs[n].Owner == p:
			out = append(out, conquest.Decision{Kind: conquest.KindMove, From: t, To: n, Quantity: qty})
		case !b.friendly(n):
			out = append(out, conquest.Decision{Kind: conquest.KindAttack, From: t, To: n, Quantity: qty})
		}
	}
	return out
}

func draftDecisions(b *board) []conquest.Decision {
	var out []conquest.Decision
	for _, t := range b.draftPreferences(3) {
		out = append(out, conquest.Decision{Kind: conquest.KindDraft, Territory: t})
	}
	return out
}

// placeAdditions puts each new troop, one at a time, where the threat most
// exceeds the garrison. With no border left the troops go to the largest stack.
func placeAdditions(b *board) []conquest.Decision {
	own := b.owned()
	if len(own) == 0 {
		return nil
	}
	var out []conquest.Decision
	for i := 0; i < b.self.NewTroops; i++ {
		best := own[0]
		bestScore := -1 << 30
		for _, t := range own {
			score := b.troops(t)
			if len(b.hostile(t)) > 0 {
				score = b.threat(t) - b.troops(t) + 1000
			}
			if score > bestScore {
				best, bestScore = t, score
			}
		}
		b.added[best]++
		out = append(out, conquest.Decision{Kind: conquest.KindAdd, Territory: best})
	}
	return out
}
