package conquest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCode(t *testing.T, err error, code ValidationCode) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, code, ve.Code, ve.Error())
}

func TestSubmitAddDecision(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"a": hold("p1", 1),
		"b": hold("p2", 1),
		"c": hold("p3", 1),
	})
	gs := e.gs
	gs.Players["p1"].NewTroops = 2
	gs.Players["p3"].Eliminator = "p1"
	gs.Players["p3"].FinalRank = 4

	require.NoError(t, e.SubmitAddDecision("p1", "a"))
	require.NoError(t, e.SubmitAddDecision("p1", "c"), "vassal land is team land")
	requireCode(t, e.SubmitAddDecision("p1", "a"), CodeNoNewTroops)
	requireCode(t, e.SubmitAddDecision("p2", "a"), CodeNotOwner)
	requireCode(t, e.SubmitAddDecision("p2", "zz"), CodeUnknownTerritory)
	requireCode(t, e.SubmitAddDecision("p3", "a"), CodeEliminated)
	assert.ErrorIs(t, e.SubmitAddDecision("ghost", "a"), ErrUnknownPlayer)

	assert.Equal(t, []TerritoryID{"a", "c"}, gs.Additions["p1"])
	assert.Equal(t, 2, gs.Promised("a"))
	assert.Equal(t, 1, gs.TroopCount("a"), "adds are not placed until resolution")
}

func TestSubmitAttackDecision(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"a": hold("p1", 4),
		"b": hold("p2", 2),
		"c": hold("p1", 1),
		"d": hold("p2", 3),
	})
	gs := e.gs

	tests := []struct {
		name     string
		player   PlayerID
		from, to TerritoryID
		qty      int
		code     ValidationCode
	}{
		{"unknown target", "p1", "a", "zz", 1, CodeUnknownTerritory},
		{"zero quantity", "p1", "a", "b", 0, CodeBadQuantity},
		{"not adjacent", "p1", "a", "d", 1, CodeNotAdjacent},
		{"not owner", "p1", "b", "a", 1, CodeNotOwner},
		{"own territory", "p1", "a", "c", 1, CodeOwnTarget},
		{"one troop left behind", "p1", "c", "d", 1, CodeInsufficientTroops},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireCode(t, e.SubmitAttackDecision(tt.player, tt.from, tt.to, tt.qty), tt.code)
		})
	}
	assert.Empty(t, gs.Attacks, "rejected attacks never queue")

	require.NoError(t, e.SubmitAttackDecision("p1", "a", "b", 2))
	require.NoError(t, e.SubmitAttackDecision("p1", "a", "b", 3))
	assert.Equal(t, []AttackDecision{{From: "a", To: "b", Quantity: 3}}, gs.Attacks["p1"], "same border replaces")

	require.NoError(t, e.SubmitAttackDecision("p2", "d", "c", 10), "quantity above garrison is clamped later")
}

func TestSubmitAttackDecision_PromisedTroops(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"c": hold("p1", 1),
		"d": hold("p2", 3),
	})
	e.gs.Players["p1"].NewTroops = 1

	requireCode(t, e.SubmitAttackDecision("p1", "c", "d", 1), CodeInsufficientTroops)
	require.NoError(t, e.SubmitAddDecision("p1", "c"))
	require.NoError(t, e.SubmitAttackDecision("p1", "c", "d", 1))
}

func TestSubmitAttackDecision_NPCTarget(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{"a": hold("p1", 3)})
	require.NoError(t, e.SubmitAttackDecision("p1", "a", "b", 2))
}

func TestSubmitMoveDecision(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"a": hold("p1", 4),
		"b": hold("p1", 1),
		"c": hold("p2", 3),
	})
	requireCode(t, e.SubmitMoveDecision("p1", "a", "c", 1), CodeNotOwner)
	requireCode(t, e.SubmitMoveDecision("p1", "b", "a", 1), CodeInsufficientTroops)
	requireCode(t, e.SubmitMoveDecision("p1", "a", "b", -1), CodeBadQuantity)
	require.NoError(t, e.SubmitMoveDecision("p1", "a", "b", 2))

	e.gs.Stage = StageAttacks
	require.NoError(t, e.SubmitMoveDecision("p1", "a", "b", 1), "moves stay open while attacks resolve")
	assert.Len(t, e.gs.Moves["p1"], 2)
}

func TestIntakeClosed(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{"a": hold("p1", 4)})
	e.gs.Players["p1"].NewTroops = 1
	e.gs.Stage = StageAttacks

	assert.ErrorIs(t, e.SubmitAttackDecision("p1", "a", "b", 1), ErrIntakeClosed)
	assert.ErrorIs(t, e.SubmitAddDecision("p1", "a"), ErrIntakeClosed)
	assert.ErrorIs(t, e.SubmitDraftPick("p1", "b"), ErrIntakeClosed)

	e.gs.Stage = StageMovements
	assert.ErrorIs(t, e.SubmitMoveDecision("p1", "a", "b", 1), ErrIntakeClosed)

	e.gs.Winners = []PlayerID{"p1", "p2"}
	assert.ErrorIs(t, e.SubmitMoveDecision("p1", "a", "b", 1), ErrGameOver)
}

func TestSubmit_DispatchesByKind(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{"a": hold("p1", 4)})
	e.gs.Players["p1"].NewTroops = 1

	require.NoError(t, e.Submit("p1", Decision{Kind: KindAdd, Territory: "a"}))
	require.NoError(t, e.Submit("p1", Decision{Kind: KindAttack, From: "a", To: "b", Quantity: 2}))
	requireCode(t, e.Submit("p1", Decision{Kind: KindMove, From: "a", To: "c", Quantity: 1}), CodeNotOwner)
	requireCode(t, e.Submit("p1", Decision{Kind: "surrender"}), CodeUnknownKind)

	assert.Equal(t, []Decision{
		{Kind: KindAdd, Territory: "a"},
		{Kind: KindAttack, From: "a", To: "b", Quantity: 2},
	}, e.gs.Decisions("p1"), "move into unclaimed c was rejected")
}

func TestRetractDecisions(t *testing.T) {
	e := newTestEngine(t, dice(), map[TerritoryID]TerritoryState{
		"a": hold("p1", 4),
		"c": hold("p1", 2),
	})
	e.gs.Players["p1"].NewTroops = 2
	require.NoError(t, e.SubmitAddDecision("p1", "a"))
	require.NoError(t, e.SubmitAttackDecision("p1", "a", "b", 2))
	require.NoError(t, e.SubmitMoveDecision("p1", "a", "c", 1))

	require.NoError(t, e.RetractDecisions("p1", KindAttack))
	assert.Empty(t, e.gs.Attacks["p1"])
	assert.Len(t, e.gs.Additions["p1"], 1)
	assert.Len(t, e.gs.Moves["p1"], 1)

	e.gs.Stage = StageAttacks
	assert.ErrorIs(t, e.RetractDecisions("p1", KindAdd), ErrIntakeClosed)
	require.NoError(t, e.RetractDecisions("p1", KindMove))
	assert.Empty(t, e.gs.Moves["p1"])
}

func TestDecision_Describe(t *testing.T) {
	assert.Equal(t, "attack a -> b with 3", Decision{Kind: KindAttack, From: "a", To: "b", Quantity: 3}.Describe())
	assert.Equal(t, "move 2 a -> c", Decision{Kind: KindMove, From: "a", To: "c", Quantity: 2}.Describe())
	assert.Equal(t, "add 1 to a", Decision{Kind: KindAdd, Territory: "a"}.Describe())

	err := invalid(CodeNotOwner, "add 1 to a", "territory is not held by your team")
	assert.Equal(t, "add 1 to a: territory is not held by your team", err.Error())
}
