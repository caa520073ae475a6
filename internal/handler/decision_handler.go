package handler

import (
	"errors"
	"net/http"

	"github.com/freeeve/polite-conquest/internal/auth"
	"github.com/freeeve/polite-conquest/internal/service"
	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// DecisionHandler handles decision intake and point awards.
type DecisionHandler struct {
	decisionSvc *service.DecisionService
	hub         *Hub
}

// NewDecisionHandler creates a DecisionHandler.
func NewDecisionHandler(decisionSvc *service.DecisionService, hub *Hub) *DecisionHandler {
	return &DecisionHandler{decisionSvc: decisionSvc, hub: hub}
}

// decisionErrStatus maps intake errors to HTTP status codes.
func decisionErrStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidDecision):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNoDecisions),
		errors.Is(err, service.ErrBadPoints),
		errors.Is(err, service.ErrNoActiveTurn):
		return http.StatusBadRequest
	default:
		return gameErrStatus(err)
	}
}

// writeDecisionError adds the engine's rejection code when there is one.
func writeDecisionError(w http.ResponseWriter, err error) {
	var verr *conquest.ValidationError
	if errors.As(err, &verr) {
		writeRejection(w, decisionErrStatus(err), err, verr)
		return
	}
	writeError(w, decisionErrStatus(err), err.Error())
}

// SubmitDecisions handles POST /api/v1/games/{id}/decisions
func (h *DecisionHandler) SubmitDecisions(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Decisions []conquest.Decision `json:"decisions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	queued, err := h.decisionSvc.Submit(r.Context(), gameID, userID, req.Decisions)
	if err != nil {
		writeDecisionError(w, err)
		return
	}
	if queued == nil {
		queued = []conquest.Decision{}
	}
	writeJSON(w, http.StatusOK, queued)
}

// ListDecisions handles GET /api/v1/games/{id}/decisions
func (h *DecisionHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	decisions, err := h.decisionSvc.Decisions(r.Context(), gameID, userID)
	if err != nil {
		writeDecisionError(w, err)
		return
	}
	if decisions == nil {
		decisions = []conquest.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// RetractDecisions handles DELETE /api/v1/games/{id}/decisions/{kind}
func (h *DecisionHandler) RetractDecisions(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())
	kind := conquest.DecisionKind(r.PathValue("kind"))

	switch kind {
	case conquest.KindDraft, conquest.KindAdd, conquest.KindAttack, conquest.KindMove:
	default:
		writeError(w, http.StatusBadRequest, "unknown decision kind")
		return
	}

	if err := h.decisionSvc.Retract(r.Context(), gameID, userID, kind); err != nil {
		writeDecisionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retracted"})
}

// AwardPoints handles POST /api/v1/games/{id}/players/{userId}/points
func (h *DecisionHandler) AwardPoints(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	playerID := r.PathValue("userId")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Points int `json:"points"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.decisionSvc.AwardPoints(r.Context(), gameID, userID, playerID, req.Points); err != nil {
		writeDecisionError(w, err)
		return
	}

	h.hub.BroadcastToGame(gameID, WSEvent{
		Type:   EventPointsAwarded,
		GameID: gameID,
		Data:   map[string]any{"user_id": playerID, "points": req.Points},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "awarded"})
}
