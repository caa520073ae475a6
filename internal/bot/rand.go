package bot

import (
	"sync"

	"golang.org/x/exp/rand"
)

// rng drives every random bot choice. The server runs bots for several games
// at once, so access is locked. A nil rng means the global source.
var (
	rngMu sync.Mutex
	rng   *rand.Rand
)

// SeedBotRng sets a deterministic random source so a bot match can be
// replayed exactly.
func SeedBotRng(seed uint64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewSource(seed))
}

// ResetBotRng reverts to the default (non-deterministic) global random source.
func ResetBotRng() {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = nil
}

func botFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	if rng != nil {
		return rng.Float64()
	}
	return rand.Float64()
}

func botIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	if rng != nil {
		return rng.Intn(n)
	}
	return rand.Intn(n)
}

func botPerm(n int) []int {
	rngMu.Lock()
	defer rngMu.Unlock()
	if rng != nil {
		return rng.Perm(n)
	}
	return rand.Perm(n)
}

// botPick returns a random element of a non-empty slice.
func botPick[T any](xs []T) T {
	return xs[botIntn(len(xs))]
}
