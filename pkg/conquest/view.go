package conquest

import "slices"

// TerritoryView is a read-only territory snapshot for renderers.
type TerritoryView struct {
	ID        TerritoryID   `json:"id"`
	Name      string        `json:"name"`
	Owner     PlayerID      `json:"owner,omitempty"`
	Troops    int           `json:"troops"`
	Neighbors []TerritoryID `json:"neighbors"`
}

// PlayerView is a read-only player snapshot with derived standing.
type PlayerView struct {
	Player
	Team        PlayerID `json:"team"`
	Territories int      `json:"territories"`
	Troops      int      `json:"troops"`
	Eliminated  bool     `json:"eliminated"`
}

// Territories returns every territory in id order.
func (e *Engine) Territories() []TerritoryView {
	out := make([]TerritoryView, 0, len(e.m.IDs()))
	for _, id := range e.m.IDs() {
		out = append(out, TerritoryView{
			ID:        id,
			Name:      e.m.Name(id),
			Owner:     e.gs.Owner(id),
			Troops:    e.gs.TroopCount(id),
			Neighbors: e.m.Neighbors(id),
		})
	}
	return out
}

// Players returns every player in join order.
func (e *Engine) Players() []PlayerView {
	gs := e.gs
	out := make([]PlayerView, 0, len(gs.PlayerOrder))
	for _, id := range gs.PlayerOrder {
		p := gs.Players[id]
		out = append(out, PlayerView{
			Player:      *p,
			Team:        gs.Team(id),
			Territories: len(gs.TerritoriesOf(id)),
			Troops:      gs.TroopsOf(id),
			Eliminated:  p.Eliminator != NoOwner,
		})
	}
	return out
}

// Status is where a game stands in its turn cycle.
type Status struct {
	Turn     int        `json:"turn"`
	Stage    Stage      `json:"stage"`
	Seq      int        `json:"seq"`
	GameOver bool       `json:"gameOver"`
	Winners  []PlayerID `json:"winners,omitempty"`
}

// Status returns the current turn, stage and outcome.
func (e *Engine) Status() Status {
	gs := e.gs
	return Status{
		Turn:     gs.Turn,
		Stage:    gs.Stage,
		Seq:      gs.Seq,
		GameOver: gs.GameOver(),
		Winners:  slices.Clone(gs.Winners),
	}
}
