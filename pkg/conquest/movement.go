package conquest

// applyMovements applies every still-valid move at once. Each source can
// give away at most its post-combat garrison minus one, shared between its
// moves in submission order; moves whose territories changed hands are
// dropped. Incoming troops never fund outgoing moves.
func (e *Engine) applyMovements() ([]AppliedMove, error) {
	gs := e.gs
	budget := make(map[TerritoryID]int)
	delta := make(map[TerritoryID]int)
	var applied []AppliedMove
	for _, p := range gs.PlayerOrder {
		for _, m := range gs.Moves[p] {
			if gs.Owner(m.From) != p || gs.Owner(m.To) != p {
				continue
			}
			left, ok := budget[m.From]
			if !ok {
				left = gs.TroopCount(m.From) - 1
			}
			if left < 1 {
				continue
			}
			q := min(m.Quantity, left)
			budget[m.From] = left - q
			delta[m.From] -= q
			delta[m.To] += q
			applied = append(applied, AppliedMove{Player: p, From: m.From, To: m.To, Quantity: q})
		}
	}
	for _, id := range e.m.IDs() {
		if d := delta[id]; d != 0 {
			if err := gs.AddTroops(id, d); err != nil {
				return nil, err
			}
		}
	}
	gs.Moves = nil
	return applied, nil
}
