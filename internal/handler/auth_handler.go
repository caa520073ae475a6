package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/auth"
	"github.com/freeeve/polite-conquest/internal/repository"
)

const oauthStateCookie = "oauth_state"

// AuthHandler handles Discord login, token refresh and dev login.
type AuthHandler struct {
	discord  *auth.OAuthProvider
	jwtMgr   *auth.JWTManager
	userRepo repository.UserRepository
	dev      bool
}

// NewAuthHandler creates an AuthHandler. Dev login is served only when dev is true.
func NewAuthHandler(discord *auth.OAuthProvider, jwtMgr *auth.JWTManager, userRepo repository.UserRepository, dev bool) *AuthHandler {
	return &AuthHandler{discord: discord, jwtMgr: jwtMgr, userRepo: userRepo, dev: dev}
}

// DiscordLogin redirects to Discord's OAuth2 consent screen.
func (h *AuthHandler) DiscordLogin(w http.ResponseWriter, r *http.Request) {
	if h.discord == nil {
		writeError(w, http.StatusNotFound, "discord login not configured")
		return
	}
	state := randomState()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/discord",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.discord.LoginURL(state), http.StatusTemporaryRedirect)
}

// DiscordCallback handles the OAuth2 callback from Discord.
func (h *AuthHandler) DiscordCallback(w http.ResponseWriter, r *http.Request) {
	if h.discord == nil {
		writeError(w, http.StatusNotFound, "discord login not configured")
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/discord", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code parameter")
		return
	}

	info, err := h.discord.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "oauth exchange failed: "+err.Error())
		return
	}

	user, err := h.userRepo.Upsert(r.Context(), h.discord.Name(), info.ID, info.DisplayName(), info.AvatarURL())
	if err != nil {
		log.Error().Err(err).Str("discordId", info.ID).Msg("Failed to upsert Discord user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	tokens, err := h.jwtMgr.GenerateTokenPair(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := h.jwtMgr.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	tokens, err := h.jwtMgr.GenerateTokenPair(claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// DevLogin creates or upserts a test user and returns a JWT token pair.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.dev {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing name parameter")
		return
	}

	providerID := fmt.Sprintf("dev-%s", name)
	user, err := h.userRepo.Upsert(r.Context(), "dev", providerID, name, "")
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to upsert dev user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	tokens, err := h.jwtMgr.GenerateTokenPair(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func randomState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
