package conquest

import (
	"fmt"
	"slices"
)

// DecisionKind is the type of a submitted intent.
type DecisionKind string

const (
	KindDraft  DecisionKind = "draft"
	KindAdd    DecisionKind = "add"
	KindAttack DecisionKind = "attack"
	KindMove   DecisionKind = "move"
)

// Decision is a player intent of any kind. Draft and add decisions use
// Territory; attack and move decisions use From, To and Quantity.
type Decision struct {
	Kind      DecisionKind `json:"kind"`
	Territory TerritoryID  `json:"territory,omitempty"`
	From      TerritoryID  `json:"from,omitempty"`
	To        TerritoryID  `json:"to,omitempty"`
	Quantity  int          `json:"quantity,omitempty"`
}

// Describe returns a human-readable description of the decision.
func (d Decision) Describe() string {
	switch d.Kind {
	case KindDraft:
		return fmt.Sprintf("draft %s", d.Territory)
	case KindAdd:
		return fmt.Sprintf("add 1 to %s", d.Territory)
	case KindAttack:
		return fmt.Sprintf("attack %s -> %s with %d", d.From, d.To, d.Quantity)
	case KindMove:
		return fmt.Sprintf("move %d %s -> %s", d.Quantity, d.From, d.To)
	default:
		return string(d.Kind)
	}
}

// intakeOpen reports whether decisions of kind are accepted in the current stage.
func (gs *GameState) intakeOpen(kind DecisionKind) bool {
	switch kind {
	case KindDraft:
		return gs.Stage == StageDraft
	case KindAdd, KindAttack:
		return gs.Stage == StageAdditions
	case KindMove:
		return gs.Stage == StageAdditions || gs.Stage == StageAttacks
	}
	return false
}

// Promised returns the garrison of t plus every addition queued for it,
// so players can plan against troops they have not placed yet.
func (gs *GameState) Promised(t TerritoryID) int {
	n := gs.TroopCount(t)
	for _, adds := range gs.Additions {
		for _, a := range adds {
			if a == t {
				n++
			}
		}
	}
	return n
}

func (gs *GameState) queuedAdds(p PlayerID) int {
	return len(gs.Additions[p])
}

// checkSubmitter returns an error unless p may submit a decision of kind now.
func (gs *GameState) checkSubmitter(p PlayerID, d Decision) error {
	if gs.GameOver() {
		return ErrGameOver
	}
	if _, ok := gs.Players[p]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, p)
	}
	if gs.IsEliminated(p) {
		return invalid(CodeEliminated, d.Describe(), "player has been eliminated")
	}
	if !gs.intakeOpen(d.Kind) {
		return fmt.Errorf("%w: %s decisions not accepted during %s", ErrIntakeClosed, d.Kind, gs.Stage)
	}
	return nil
}

// Submit validates a decision and queues it. Rejected decisions leave the
// state unchanged.
func (e *Engine) Submit(p PlayerID, d Decision) error {
	switch d.Kind {
	case KindDraft:
		return e.SubmitDraftPick(p, d.Territory)
	case KindAdd:
		return e.SubmitAddDecision(p, d.Territory)
	case KindAttack:
		return e.SubmitAttackDecision(p, d.From, d.To, d.Quantity)
	case KindMove:
		return e.SubmitMoveDecision(p, d.From, d.To, d.Quantity)
	default:
		return invalid(CodeUnknownKind, d.Describe(), "unknown decision kind")
	}
}

// SubmitDraftPick records a territory preference for the opening draft.
// Preferences are tried in submission order when the player's pick comes up.
func (e *Engine) SubmitDraftPick(p PlayerID, t TerritoryID) error {
	d := Decision{Kind: KindDraft, Territory: t}
	gs := e.gs
	if err := gs.checkSubmitter(p, d); err != nil {
		return err
	}
	if !e.m.Has(t) {
		return invalid(CodeUnknownTerritory, d.Describe(), "no such territory")
	}
	if gs.Owner(t) != NoOwner {
		return invalid(CodeClaimed, d.Describe(), "territory already claimed")
	}
	if slices.Contains(gs.Draft.Preferences[p], t) {
		return nil
	}
	if gs.Draft.Preferences == nil {
		gs.Draft.Preferences = make(map[PlayerID][]TerritoryID)
	}
	gs.Draft.Preferences[p] = append(gs.Draft.Preferences[p], t)
	return nil
}

// SubmitAddDecision queues one new troop for a territory held by the
// player's team.
func (e *Engine) SubmitAddDecision(p PlayerID, t TerritoryID) error {
	d := Decision{Kind: KindAdd, Territory: t}
	gs := e.gs
	if err := gs.checkSubmitter(p, d); err != nil {
		return err
	}
	if !e.m.Has(t) {
		return invalid(CodeUnknownTerritory, d.Describe(), "no such territory")
	}
	if !gs.SameTeam(gs.Owner(t), p) {
		return invalid(CodeNotOwner, d.Describe(), "territory is not held by your team")
	}
	if gs.Players[p].NewTroops-gs.queuedAdds(p) < 1 {
		return invalid(CodeNoNewTroops, d.Describe(), "no new troops left to place")
	}
	if gs.Additions == nil {
		gs.Additions = make(map[PlayerID][]TerritoryID)
	}
	gs.Additions[p] = append(gs.Additions[p], t)
	return nil
}

// SubmitAttackDecision queues an attack from a territory the player holds
// into an adjacent territory outside their team. A second attack along the
// same border replaces the first.
func (e *Engine) SubmitAttackDecision(p PlayerID, from, to TerritoryID, qty int) error {
	d := Decision{Kind: KindAttack, From: from, To: to, Quantity: qty}
	gs := e.gs
	if err := gs.checkSubmitter(p, d); err != nil {
		return err
	}
	if err := e.checkRoute(d); err != nil {
		return err
	}
	if gs.Owner(from) != p {
		return invalid(CodeNotOwner, d.Describe(), fmt.Sprintf("you do not hold %s", e.m.Name(from)))
	}
	if gs.SameTeam(gs.Owner(to), p) {
		return invalid(CodeOwnTarget, d.Describe(), "cannot attack your own team")
	}
	if gs.Promised(from) <= 1 {
		return invalid(CodeInsufficientTroops, d.Describe(), "at least one troop must stay behind")
	}
	if gs.Attacks == nil {
		gs.Attacks = make(map[PlayerID][]AttackDecision)
	}
	a := AttackDecision{From: from, To: to, Quantity: qty}
	queued := gs.Attacks[p]
	if i := slices.IndexFunc(queued, func(q AttackDecision) bool { return q.From == from && q.To == to }); i >= 0 {
		queued[i] = a
		return nil
	}
	gs.Attacks[p] = append(queued, a)
	return nil
}

// SubmitMoveDecision queues a troop movement between two adjacent
// territories the player holds. Moves apply after all attacks.
func (e *Engine) SubmitMoveDecision(p PlayerID, from, to TerritoryID, qty int) error {
	d := Decision{Kind: KindMove, From: from, To: to, Quantity: qty}
	gs := e.gs
	if err := gs.checkSubmitter(p, d); err != nil {
		return err
	}
	if err := e.checkRoute(d); err != nil {
		return err
	}
	if gs.Owner(from) != p || gs.Owner(to) != p {
		return invalid(CodeNotOwner, d.Describe(), "both territories must be yours")
	}
	if gs.Promised(from) <= 1 {
		return invalid(CodeInsufficientTroops, d.Describe(), "at least one troop must stay behind")
	}
	if gs.Moves == nil {
		gs.Moves = make(map[PlayerID][]MoveDecision)
	}
	gs.Moves[p] = append(gs.Moves[p], MoveDecision{From: from, To: to, Quantity: qty})
	return nil
}

func (e *Engine) checkRoute(d Decision) error {
	if !e.m.Has(d.From) || !e.m.Has(d.To) {
		return invalid(CodeUnknownTerritory, d.Describe(), "no such territory")
	}
	if d.Quantity < 1 {
		return invalid(CodeBadQuantity, d.Describe(), "quantity must be at least 1")
	}
	if !e.m.Adjacent(d.From, d.To) {
		return invalid(CodeNotAdjacent, d.Describe(), fmt.Sprintf("%s does not border %s", e.m.Name(d.From), e.m.Name(d.To)))
	}
	return nil
}

// RetractDecisions drops every queued decision of kind for the player while
// that intake is still open.
func (e *Engine) RetractDecisions(p PlayerID, kind DecisionKind) error {
	gs := e.gs
	if err := gs.checkSubmitter(p, Decision{Kind: kind}); err != nil {
		return err
	}
	switch kind {
	case KindDraft:
		delete(gs.Draft.Preferences, p)
	case KindAdd:
		delete(gs.Additions, p)
	case KindAttack:
		delete(gs.Attacks, p)
	case KindMove:
		delete(gs.Moves, p)
	}
	return nil
}

// Decisions returns the player's queued decisions.
func (e *Engine) Decisions(p PlayerID) []Decision {
	return e.gs.Decisions(p)
}

// Decisions returns the player's queued decisions in submission order,
// grouped by kind.
func (gs *GameState) Decisions(p PlayerID) []Decision {
	var out []Decision
	if gs.Draft != nil {
		for _, t := range gs.Draft.Preferences[p] {
			out = append(out, Decision{Kind: KindDraft, Territory: t})
		}
	}
	for _, t := range gs.Additions[p] {
		out = append(out, Decision{Kind: KindAdd, Territory: t})
	}
	for _, a := range gs.Attacks[p] {
		out = append(out, Decision{Kind: KindAttack, From: a.From, To: a.To, Quantity: a.Quantity})
	}
	for _, m := range gs.Moves[p] {
		out = append(out, Decision{Kind: KindMove, From: m.From, To: m.To, Quantity: m.Quantity})
	}
	return out
}
