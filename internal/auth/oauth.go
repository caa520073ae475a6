package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

const discordAPI = "https://discord.com/api"

// DiscordEndpoint is Discord's OAuth2 authorization server.
var DiscordEndpoint = oauth2.Endpoint{
	AuthURL:   discordAPI + "/oauth2/authorize",
	TokenURL:  discordAPI + "/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DiscordUser holds the profile returned by Discord's /users/@me.
type DiscordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// DisplayName prefers the user's global display name over their handle.
func (u *DiscordUser) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// AvatarURL returns the CDN URL of the user's avatar, or "" if unset.
func (u *DiscordUser) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
}

// OAuthProvider handles OAuth2 flows for a specific provider.
type OAuthProvider struct {
	config  *oauth2.Config
	name    string
	userURL string
}

// NewDiscordOAuth creates an OAuth provider for Discord sign-in.
func NewDiscordOAuth(clientID, clientSecret, redirectURL string) *OAuthProvider {
	return &OAuthProvider{
		name:    "discord",
		userURL: discordAPI + "/users/@me",
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify"},
			Endpoint:     DiscordEndpoint,
		},
	}
}

// LoginURL returns the OAuth2 authorization URL with a state parameter.
func (p *OAuthProvider) LoginURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

// Exchange trades an authorization code for the Discord profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*DiscordUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}

	client := p.config.Client(ctx, token)
	resp, err := client.Get(p.userURL)
	if err != nil {
		return nil, fmt.Errorf("oauth userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("oauth userinfo status %d: %s", resp.StatusCode, body)
	}

	var info DiscordUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("oauth userinfo decode: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("oauth userinfo: missing user id")
	}
	return &info, nil
}

// Name returns the provider name (e.g. "discord").
func (p *OAuthProvider) Name() string {
	return p.name
}
