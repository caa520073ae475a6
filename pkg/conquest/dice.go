package conquest

import (
	"fmt"
	"slices"

	"golang.org/x/exp/rand"
)

// Dice is the single source of randomness used during resolution: combat
// rolls, draft order, draft fallback picks and scheduling tie-breaks.
type Dice interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// SeededDice is a PCG-backed Dice whose state can be saved with the game
// and restored, so a resolution interrupted between steps continues with
// the same rolls.
type SeededDice struct {
	src *rand.PCGSource
	*rand.Rand
}

// NewDice returns dice seeded with seed.
func NewDice(seed uint64) *SeededDice {
	src := &rand.PCGSource{}
	src.Seed(seed)
	return &SeededDice{src: src, Rand: rand.New(src)}
}

// RestoreDice rebuilds dice from MarshalBinary output.
func RestoreDice(state []byte) (*SeededDice, error) {
	src := &rand.PCGSource{}
	if err := src.UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("restore dice: %w", err)
	}
	return &SeededDice{src: src, Rand: rand.New(src)}, nil
}

// MarshalBinary returns the generator state.
func (d *SeededDice) MarshalBinary() ([]byte, error) {
	return d.src.MarshalBinary()
}

// roll returns n six-sided rolls sorted in descending order.
func roll(d Dice, n int) []int {
	rolls := make([]int, n)
	for i := range rolls {
		rolls[i] = d.Intn(6) + 1
	}
	slices.SortFunc(rolls, func(a, b int) int { return b - a })
	return rolls
}

// compareRolls pairs the highest rolls of each side. It returns how many
// pairs the first side won strictly and how many it lost or tied.
func compareRolls(a, b []int) (wins, losses int) {
	for i := 0; i < min(len(a), len(b)); i++ {
		if a[i] > b[i] {
			wins++
		} else {
			losses++
		}
	}
	return wins, losses
}
