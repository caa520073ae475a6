package conquest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testMap is a small board: a triangle a-b-c, with c bordering d, and d
// part of a second triangle d-e-f.
func testMap(t testing.TB) *TerritoryMap {
	t.Helper()
	m, err := NewTerritoryMap("test", []Territory{
		{ID: "a", Neighbors: []TerritoryID{"b", "c"}},
		{ID: "b", Neighbors: []TerritoryID{"c"}},
		{ID: "c", Neighbors: []TerritoryID{"d"}},
		{ID: "d", Neighbors: []TerritoryID{"e", "f"}},
		{ID: "e", Neighbors: []TerritoryID{"f"}},
		{ID: "f"},
	})
	require.NoError(t, err)
	return m
}

// scriptedDice returns the given die faces in order and never shuffles.
type scriptedDice struct {
	faces []int
	used  int
}

func dice(faces ...int) *scriptedDice {
	return &scriptedDice{faces: faces}
}

func (d *scriptedDice) Intn(n int) int {
	if d.used >= len(d.faces) {
		panic("scripted dice exhausted")
	}
	f := d.faces[d.used]
	d.used++
	return (f - 1) % n
}

func (d *scriptedDice) Shuffle(int, func(i, j int)) {}

func hold(owner PlayerID, troops int) TerritoryState {
	return TerritoryState{Owner: owner, Troops: troops}
}

func testRoster() []Player {
	return []Player{
		{ID: "p1", Name: "Ada"},
		{ID: "p2", Name: "Bo"},
		{ID: "p3", Name: "Cy"},
		{ID: "p4", Name: "Di"},
	}
}

// newTestEngine returns a four-player engine on testMap, in the additions
// stage of turn 2, with the given territories assigned.
func newTestEngine(t testing.TB, d Dice, holdings map[TerritoryID]TerritoryState) *Engine {
	t.Helper()
	e, err := New(testMap(t), testRoster(), DefaultRules(), d)
	require.NoError(t, err)
	for id, ts := range holdings {
		*e.gs.Territories[id] = ts
	}
	e.gs.Turn = 2
	e.gs.Stage = StageAdditions
	return e
}

func advance(t testing.TB, e *Engine) *ResolutionEvent {
	t.Helper()
	ev, err := e.Advance()
	require.NoError(t, err)
	return ev
}

// advanceUntil advances until an event of kind is returned and fails if
// the turn closes first.
func advanceUntil(t testing.TB, e *Engine, kind EventKind) *ResolutionEvent {
	t.Helper()
	for i := 0; i < 1000; i++ {
		ev := advance(t, e)
		if ev.Kind == kind {
			return ev
		}
		require.NotEqual(t, EventTurnComplete, ev.Kind, "turn closed before %s", kind)
	}
	t.Fatalf("no %s event after 1000 steps", kind)
	return nil
}
