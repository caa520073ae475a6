package conquest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameState(t *testing.T) {
	m := testMap(t)
	gs, err := NewGameState(m, testRoster(), DefaultRules())
	require.NoError(t, err)

	assert.Equal(t, StageSetup, gs.Stage)
	assert.Equal(t, []PlayerID{"p1", "p2", "p3", "p4"}, gs.PlayerOrder)
	for _, id := range m.IDs() {
		assert.Equal(t, NoOwner, gs.Owner(id))
		assert.Equal(t, 2, gs.TroopCount(id))
	}

	_, err = NewGameState(m, testRoster()[:1], DefaultRules())
	assert.Error(t, err, "one player is not a game")

	_, err = NewGameState(m, []Player{{ID: "p1"}, {ID: "p1"}}, DefaultRules())
	assert.Error(t, err, "duplicate ids")

	bad := DefaultRules()
	bad.MaxDefendDice = 0
	_, err = NewGameState(m, testRoster(), bad)
	assert.Error(t, err)
}

func TestAddTroops_NegativeIsInvariant(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{"a": hold("p1", 2)})

	require.NoError(t, e.gs.AddTroops("a", -1))
	assert.Equal(t, 1, e.gs.TroopCount("a"))

	err := e.gs.AddTroops("a", -2)
	assert.True(t, errors.Is(err, ErrInvariant))
	assert.Equal(t, 1, e.gs.TroopCount("a"), "failed add must not change the garrison")

	assert.True(t, errors.Is(e.gs.SetTroops("a", -1), ErrInvariant))
	assert.True(t, errors.Is(e.gs.AddTroops("nowhere", 1), ErrInvariant))
}

func TestTerritoriesOf(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"a": hold("p1", 3),
		"c": hold("p1", 1),
		"b": hold("p2", 4),
	})
	gs := e.gs
	gs.Players["p2"].FinalRank = 4
	gs.Players["p2"].Eliminator = "p1"

	assert.Equal(t, []TerritoryID{"a", "c"}, gs.TerritoriesOf("p1"))
	assert.Equal(t, []TerritoryID{"a", "b", "c"}, gs.TeamTerritories("p1"))
	assert.Equal(t, 4, gs.TroopsOf("p1"))
	assert.Empty(t, gs.TerritoriesOf(NoOwner))
}

func TestTeam_FollowsEliminatorChain(t *testing.T) {
	e := newTestEngine(t, dice(), nil)
	gs := e.gs
	gs.Players["p3"].Eliminator = "p2"
	gs.Players["p2"].Eliminator = "p1"

	assert.Equal(t, PlayerID("p1"), gs.Team("p3"))
	assert.Equal(t, PlayerID("p1"), gs.Team("p2"))
	assert.Equal(t, PlayerID("p1"), gs.Team("p1"))
	assert.Equal(t, PlayerID("p4"), gs.Team("p4"))
	assert.True(t, gs.SameTeam("p3", "p1"))
	assert.False(t, gs.SameTeam("p3", "p4"))
	assert.False(t, gs.SameTeam(NoOwner, NoOwner), "unclaimed land belongs to no team")
	assert.Equal(t, []PlayerID{"p2", "p3"}, gs.VassalsOf("p1"))
	assert.Empty(t, gs.VassalsOf("p4"))
}

func TestTeam_LoopResolvesToRevisitedPlayer(t *testing.T) {
	e := newTestEngine(t, dice(), nil)
	gs := e.gs
	gs.Players["p1"].Eliminator = "p2"
	gs.Players["p2"].Eliminator = "p1"

	assert.Equal(t, PlayerID("p1"), gs.Team("p1"))
	assert.Equal(t, PlayerID("p1"), gs.Team("p2"), "cached from the first walk")
}

func TestEliminate(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"a": hold("p1", 3),
		"d": hold("p4", 2),
	})
	gs := e.gs
	gs.Players["p2"].Color = "red"
	gs.Players["p3"].Eliminator = "p2"
	gs.Players["p3"].FinalRank = 4
	gs.Moves = map[PlayerID][]MoveDecision{"p2": {{From: "b", To: "c", Quantity: 1}}}

	// Warm the team cache so Eliminate has to drop it.
	require.Equal(t, PlayerID("p2"), gs.Team("p3"))

	require.NoError(t, gs.Eliminate("p2", "p1"))
	p2 := gs.Players["p2"]
	assert.Equal(t, 3, p2.FinalRank)
	assert.Equal(t, PlayerID("p1"), p2.Eliminator)
	assert.Empty(t, p2.Color)
	assert.True(t, gs.IsEliminated("p2"))
	assert.Equal(t, PlayerID("p1"), gs.Team("p3"), "vassals follow their lord")
	assert.Empty(t, gs.Moves["p2"])
	assert.Equal(t, []PlayerID{"p2"}, gs.Pending)

	// Two players remain, so the game is decided by territory count.
	assert.True(t, gs.GameOver())
	assert.Equal(t, []PlayerID{"p1", "p4"}, gs.Winners)
	assert.Equal(t, 1, gs.Players["p1"].FinalRank)
	assert.Equal(t, 2, gs.Players["p4"].FinalRank)

	err := gs.Eliminate("p2", "p1")
	assert.True(t, errors.Is(err, ErrInvariant))
	assert.True(t, errors.Is(gs.Eliminate("zz", "p1"), ErrUnknownPlayer))
}

func TestRankSurvivors_TieBreaks(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"a": hold("p1", 2),
		"b": hold("p2", 5),
	})
	gs := e.gs
	gs.rankSurvivors([]PlayerID{"p1", "p2"})
	assert.Equal(t, []PlayerID{"p2", "p1"}, gs.Winners, "same territory count, more troops wins")

	gs.Winners = nil
	gs.Territories["b"].Troops = 2
	gs.Players["p1"].Points = 7
	gs.rankSurvivors([]PlayerID{"p2", "p1"})
	assert.Equal(t, []PlayerID{"p1", "p2"}, gs.Winners, "then points")
}

func TestGameState_Clone_Independent(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{"a": hold("p1", 3)})
	gs := e.gs
	gs.Attacks = map[PlayerID][]AttackDecision{"p1": {{From: "a", To: "b", Quantity: 2}}}
	gs.Conflict = &Conflict{Kind: ConflictCircular, Attackers: agentQueue{{Player: "p1", Home: "a", Initial: 2, Troops: 2}}}
	gs.Draft = &DraftState{Order: []PlayerID{"p1"}, Preferences: map[PlayerID][]TerritoryID{"p1": {"b"}}}

	c := gs.Clone()
	c.Territories["a"].Troops = 99
	c.Players["p1"].Kills = 5
	c.Attacks["p1"][0].Quantity = 1
	c.Conflict.Attackers[0].Troops = 0
	c.Draft.Preferences["p1"][0] = "c"

	assert.Equal(t, 3, gs.TroopCount("a"))
	assert.Equal(t, 0, gs.Players["p1"].Kills)
	assert.Equal(t, 2, gs.Attacks["p1"][0].Quantity)
	assert.Equal(t, 2, gs.Conflict.Attackers[0].Troops)
	assert.Equal(t, TerritoryID("b"), gs.Draft.Preferences["p1"][0])
}

func TestCheckInvariants(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{"a": hold("p1", 3)})
	gs := e.gs
	require.NoError(t, gs.checkInvariants())

	gs.Territories["b"].Owner = "ghost"
	assert.True(t, errors.Is(gs.checkInvariants(), ErrInvariant))
	gs.Territories["b"].Owner = NoOwner

	gs.Players["p1"].Eliminator = "p2"
	assert.True(t, errors.Is(gs.checkInvariants(), ErrInvariant), "eliminated players own nothing")
	gs.Players["p1"].Eliminator = NoOwner

	gs.Players["p2"].FinalRank = 4
	gs.Players["p3"].FinalRank = 4
	assert.True(t, errors.Is(gs.checkInvariants(), ErrInvariant), "final ranks are unique")
}

func TestAwardPoints(t *testing.T) {
	e := newTestEngine(t, dice(), nil)
	require.NoError(t, e.AwardPoints("p1", 3))
	require.NoError(t, e.AwardPoints("p1", 2))
	assert.Equal(t, 5, e.gs.Players["p1"].Points)
	assert.Equal(t, 5, e.gs.Players["p1"].WeeklyPoints)

	assert.True(t, errors.Is(e.AwardPoints("zz", 1), ErrUnknownPlayer))
	assert.Error(t, e.AwardPoints("p1", 0))
}
