package conquest

import "errors"

var (
	ErrIntakeClosed     = errors.New("decision intake is closed")
	ErrGameOver         = errors.New("game is over")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrInvariant        = errors.New("invariant violated")
	ErrTurnInProgress   = errors.New("turn still in progress")
	ErrNothingToAdvance = errors.New("turn is complete")
)

// ValidationCode classifies a rejected decision.
type ValidationCode string

const (
	CodeUnknownTerritory   ValidationCode = "unknown_territory"
	CodeNotOwner           ValidationCode = "not_owner"
	CodeNotAdjacent        ValidationCode = "not_adjacent"
	CodeOwnTarget          ValidationCode = "own_target"
	CodeInsufficientTroops ValidationCode = "insufficient_troops"
	CodeNoNewTroops        ValidationCode = "no_new_troops"
	CodeBadQuantity        ValidationCode = "bad_quantity"
	CodeEliminated         ValidationCode = "eliminated"
	CodeClaimed            ValidationCode = "claimed"
	CodeUnknownKind        ValidationCode = "unknown_kind"
)

// ValidationError describes why a submitted decision was rejected.
type ValidationError struct {
	Code     ValidationCode `json:"code"`
	Reason   string         `json:"reason"`
	Decision string         `json:"decision"`
}

func (e *ValidationError) Error() string {
	if e.Decision == "" {
		return e.Reason
	}
	return e.Decision + ": " + e.Reason
}

func invalid(code ValidationCode, decision, reason string) *ValidationError {
	return &ValidationError{Code: code, Reason: reason, Decision: decision}
}
