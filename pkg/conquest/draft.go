package conquest

import (
	"maps"
	"slices"
)

// DraftState tracks the opening draft. Players pick in a shuffled order,
// one territory per pick, for the configured number of rounds.
type DraftState struct {
	Order       []PlayerID                 `json:"order"`
	Next        int                        `json:"next"`
	Total       int                        `json:"total"`
	Preferences map[PlayerID][]TerritoryID `json:"preferences,omitempty"`
}

func (d DraftState) clone() DraftState {
	c := d
	c.Order = slices.Clone(d.Order)
	if d.Preferences != nil {
		c.Preferences = maps.Clone(d.Preferences)
		for k, v := range c.Preferences {
			c.Preferences[k] = slices.Clone(v)
		}
	}
	return c
}

// Done reports whether every pick has been made.
func (d *DraftState) Done() bool {
	return d.Next >= d.Total
}

// startDraft shuffles the pick order and sizes the draft so it never asks
// for more territories than the map has.
func (gs *GameState) startDraft(dice Dice, territories int) {
	order := slices.Clone(gs.PlayerOrder)
	dice.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	gs.Draft = &DraftState{
		Order: order,
		Total: min(len(order)*gs.Rules.DraftRounds, territories),
	}
}

// draftPick assigns the next pick: the player's first still-unclaimed
// preference, or a random unclaimed territory when none is left.
func (e *Engine) draftPick() *DraftPick {
	gs := e.gs
	d := gs.Draft
	player := d.Order[d.Next%len(d.Order)]
	d.Next++

	pick := &DraftPick{Player: player, Troops: gs.Rules.DraftTroops}
	prefs := d.Preferences[player]
	for len(prefs) > 0 {
		t := prefs[0]
		prefs = prefs[1:]
		if gs.Owner(t) == NoOwner {
			pick.Territory = t
			pick.Preferred = true
			break
		}
	}
	if d.Preferences != nil {
		d.Preferences[player] = prefs
	}
	if pick.Territory == "" {
		var open []TerritoryID
		for _, id := range e.m.IDs() {
			if gs.Owner(id) == NoOwner {
				open = append(open, id)
			}
		}
		if len(open) == 0 {
			d.Next = d.Total
			return nil
		}
		pick.Territory = open[e.dice.Intn(len(open))]
	}
	ts := gs.Territories[pick.Territory]
	ts.Owner = player
	ts.Troops = gs.Rules.DraftTroops
	return pick
}
