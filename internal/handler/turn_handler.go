package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/freeeve/polite-conquest/internal/auth"
	"github.com/freeeve/polite-conquest/internal/service"
	"github.com/freeeve/polite-conquest/pkg/conquest"
)

// TurnHandler serves turn history, resolution events and the live board.
type TurnHandler struct {
	turnSvc *service.TurnService
}

// NewTurnHandler creates a TurnHandler.
func NewTurnHandler(turnSvc *service.TurnService) *TurnHandler {
	return &TurnHandler{turnSvc: turnSvc}
}

// ListTurns handles GET /api/v1/games/{id}/turns
func (h *TurnHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	turns, err := h.turnSvc.Turns(r.Context(), gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if turns == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

// TurnEvents handles GET /api/v1/games/{id}/turns/{number}/events
func (h *TurnHandler) TurnEvents(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "invalid turn number")
		return
	}
	events, err := h.turnSvc.Events(r.Context(), gameID, number)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// view loads the live game or writes the error response.
func (h *TurnHandler) view(w http.ResponseWriter, r *http.Request) (conquest.Game, bool) {
	g, err := h.turnSvc.View(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrNoActiveTurn) {
			writeError(w, http.StatusNotFound, "game has not started")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return g, true
}

// State handles GET /api/v1/games/{id}/state
func (h *TurnHandler) State(w http.ResponseWriter, r *http.Request) {
	g, ok := h.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      g.Status(),
		"territories": g.Territories(),
		"players":     g.Players(),
	})
}

// Territories handles GET /api/v1/games/{id}/territories
func (h *TurnHandler) Territories(w http.ResponseWriter, r *http.Request) {
	if g, ok := h.view(w, r); ok {
		writeJSON(w, http.StatusOK, g.Territories())
	}
}

// Players handles GET /api/v1/games/{id}/players
func (h *TurnHandler) Players(w http.ResponseWriter, r *http.Request) {
	if g, ok := h.view(w, r); ok {
		writeJSON(w, http.StatusOK, g.Players())
	}
}

// Advance handles POST /api/v1/games/{id}/advance
func (h *TurnHandler) Advance(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.turnSvc.AdvanceNow(r.Context(), gameID, userID); err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "advanced"})
}
