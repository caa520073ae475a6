package bot

import (
	"slices"

	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// board indexes a game view for one player's planning.
type board struct {
	me      conquest.PlayerID
	self    conquest.PlayerView
	terrs   map[conquest.TerritoryID]conquest.TerritoryView
	order   []conquest.TerritoryID
	teams   map[conquest.PlayerID]conquest.PlayerID
	added   map[conquest.TerritoryID]int
	frontAt map[conquest.TerritoryID]int
}

func newBoard(v View, me conquest.PlayerID) *board {
	b := &board{
		me:    me,
		terrs: make(map[conquest.TerritoryID]conquest.TerritoryView),
		teams: make(map[conquest.PlayerID]conquest.PlayerID),
		added: make(map[conquest.TerritoryID]int),
	}
	for _, t := range v.Territories() {
		b.terrs[t.ID] = t
		b.order = append(b.order, t.ID)
	}
	for _, p := range v.Players() {
		b.teams[p.ID] = p.Team
		if p.ID == me {
			b.self = p
		}
	}
	return b
}

// friendly reports whether t belongs to the player's team.
func (b *board) friendly(t conquest.TerritoryID) bool {
	owner := b.terrs[t].Owner
	if owner == conquest.NoOwner {
		return false
	}
	return b.teams[owner] == b.teams[b.me]
}

// owned returns the territories the player holds directly, in id order.
func (b *board) owned() []conquest.TerritoryID {
	var out []conquest.TerritoryID
	for _, id := range b.order {
		if b.terrs[id].Owner == b.me {
			out = append(out, id)
		}
	}
	return out
}

// troops is the garrison of t plus the troops this bot has queued for it.
func (b *board) troops(t conquest.TerritoryID) int {
	return b.terrs[t].Troops + b.added[t]
}

// hostile returns the neighbors of t outside the player's team, unclaimed
// land included.
func (b *board) hostile(t conquest.TerritoryID) []conquest.TerritoryID {
	var out []conquest.TerritoryID
	for _, n := range b.terrs[t].Neighbors {
		if !b.friendly(n) {
			out = append(out, n)
		}
	}
	return out
}

// threat sums the troops of claimed enemy territories bordering t.
func (b *board) threat(t conquest.TerritoryID) int {
	n := 0
	for _, h := range b.hostile(t) {
		if b.terrs[h].Owner != conquest.NoOwner {
			n += b.terrs[h].Troops
		}
	}
	return n
}

// frontDistance returns how many steps through the player's own territory
// separate t from a border. Border territories are at 0; territories cut off
// from every border are absent.
func (b *board) frontDistance() map[conquest.TerritoryID]int {
	if b.frontAt != nil {
		return b.frontAt
	}
	dist := make(map[conquest.TerritoryID]int)
	var queue []conquest.TerritoryID
	for _, id := range b.owned() {
		if len(b.hostile(id)) > 0 {
			dist[id] = 0
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range b.terrs[cur].Neighbors {
			if _, seen := dist[n]; seen || b.terrs[n].Owner != b.me {
				continue
			}
			dist[n] = dist[cur] + 1
			queue = append(queue, n)
		}
	}
	b.frontAt = dist
	return dist
}

// draftPreferences ranks unclaimed territories by how many unclaimed
// neighbors they have, so early picks leave room to grow.
func (b *board) draftPreferences(n int) []conquest.TerritoryID {
	var open []conquest.TerritoryID
	for _, id := range b.order {
		if b.terrs[id].Owner == conquest.NoOwner {
			open = append(open, id)
		}
	}
	room := func(t conquest.TerritoryID) int {
		c := 0
		for _, nb := range b.terrs[t].Neighbors {
			if b.terrs[nb].Owner == conquest.NoOwner {
				c++
			}
		}
		return c
	}
	slices.SortStableFunc(open, func(x, y conquest.TerritoryID) int {
		return room(y) - room(x)
	})
	return open[:min(n, len(open))]
}
