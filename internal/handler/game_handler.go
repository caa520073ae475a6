package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/auth"
	"github.com/freeeve/polite-conquest/internal/logger"
	"github.com/freeeve/polite-conquest/internal/service"
)

// GameHandler serves the lobby: creating, joining, starting and ending games.
type GameHandler struct {
	gameSvc *service.GameService
	turnSvc *service.TurnService
	wsHub   *Hub
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(gameSvc *service.GameService, turnSvc *service.TurnService, wsHub *Hub) *GameHandler {
	return &GameHandler{gameSvc: gameSvc, turnSvc: turnSvc, wsHub: wsHub}
}

// gameErrCodes maps game lifecycle errors to HTTP status codes. Anything
// not listed is a server fault.
var gameErrCodes = []struct {
	err    error
	status int
}{
	{service.ErrGameNotFound, http.StatusNotFound},
	{service.ErrNotCreator, http.StatusForbidden},
	{service.ErrNotInGame, http.StatusForbidden},
	{service.ErrGameNotWaiting, http.StatusConflict},
	{service.ErrGameNotActive, http.StatusConflict},
	{service.ErrGameFull, http.StatusConflict},
	{service.ErrAlreadyJoined, http.StatusConflict},
	{service.ErrNotEnough, http.StatusBadRequest},
	{service.ErrUnknownMap, http.StatusBadRequest},
	{service.ErrBadPlayerCount, http.StatusBadRequest},
	{service.ErrInvalidDifficulty, http.StatusBadRequest},
}

func gameErrStatus(err error) int {
	for _, c := range gameErrCodes {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// writeGameError answers with the mapped status and logs server faults.
func writeGameError(w http.ResponseWriter, r *http.Request, err error) {
	status := gameErrStatus(err)
	if status == http.StatusInternalServerError {
		l := logger.ForRequest(r.Context())
		l.Error().Err(err).Str("path", r.URL.Path).Msg("Game request failed")
	}
	writeError(w, status, err.Error())
}

// listFilters are the accepted values of GET /games?filter=.
var listFilters = map[string]bool{"": true, "open": true, "my": true, "finished": true}

// CreateGame handles POST /api/v1/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	var req struct {
		Name string `json:"name"`
		service.GameOptions
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	game, err := h.gameSvc.CreateGame(r.Context(), req.Name, userID, req.GameOptions)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

// ListGames handles GET /api/v1/games
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	filter := r.URL.Query().Get("filter")
	if !listFilters[filter] {
		writeError(w, http.StatusBadRequest, "filter must be open, my or finished")
		return
	}
	games, err := h.gameSvc.ListGames(r.Context(), userID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame handles GET /api/v1/games/{id}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	game, err := h.gameSvc.GetGame(r.Context(), gameID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// DeleteGame handles DELETE /api/v1/games/{id}
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.gameSvc.DeleteGame(r.Context(), gameID, userID); err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// StopGame handles POST /api/v1/games/{id}/stop
func (h *GameHandler) StopGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	game, err := h.gameSvc.StopGame(r.Context(), gameID, userID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}

	if err := h.turnSvc.CleanupStoppedGame(r.Context(), gameID); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Failed to cleanup stopped game")
	}

	writeJSON(w, http.StatusOK, game)
}

// UpdateBotDifficulty handles PATCH /api/v1/games/{id}/players/{userId}/bot-difficulty
func (h *GameHandler) UpdateBotDifficulty(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	botUserID := r.PathValue("userId")
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Difficulty string `json:"difficulty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.gameSvc.UpdateBotDifficulty(r.Context(), gameID, userID, botUserID, req.Difficulty); err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// JoinGame handles POST /api/v1/games/{id}/join
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	if err := h.gameSvc.JoinGame(r.Context(), gameID, userID); err != nil {
		writeGameError(w, r, err)
		return
	}

	h.wsHub.BroadcastToGame(gameID, WSEvent{
		Type:   EventPlayerJoined,
		GameID: gameID,
		Data:   map[string]string{"user_id": userID},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// StartGame handles POST /api/v1/games/{id}/start
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	game, err := h.gameSvc.StartGame(r.Context(), gameID, userID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}

	// Use a detached context since the request context is cancelled on handler return.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.turnSvc.InitializeGame(ctx, gameID); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Failed to initialize game after start")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.wsHub.BroadcastToGame(gameID, WSEvent{
		Type:   EventGameStarted,
		GameID: gameID,
		Data:   game,
	})
	writeJSON(w, http.StatusOK, game)
}
