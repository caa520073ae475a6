package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/freeeve/polite-conquest/internal/model"
)

type mockGameRepo struct {
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
	}
}

func (m *mockGameRepo) Create(_ context.Context, name, creatorID, mapName, turnDur, stepDelay string, maxPlayers int) (*model.Game, error) {
	g := &model.Game{
		ID:           fmt.Sprintf("game-%d", len(m.games)+1),
		Name:         name,
		CreatorID:    creatorID,
		Status:       "waiting",
		MapName:      mapName,
		TurnDuration: turnDur,
		StepDelay:    stepDelay,
		MaxPlayers:   maxPlayers,
		CreatedAt:    time.Now(),
	}
	m.games[g.ID] = g
	return g, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = m.players[id]
	return &cp, nil
}

func (m *mockGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "waiting" {
			result = append(result, *g)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	seen := make(map[string]bool)
	var result []model.Game
	for gameID, players := range m.players {
		for _, p := range players {
			if p.UserID == userID && !seen[gameID] {
				if g, ok := m.games[gameID]; ok {
					result = append(result, *g)
					seen[gameID] = true
				}
			}
		}
	}
	// Also include games where user is creator but not a player (bot-only games)
	for _, g := range m.games {
		if g.CreatorID == userID && !seen[g.ID] {
			result = append(result, *g)
			seen[g.ID] = true
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListFinished(_ context.Context) ([]model.Game, error) {
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "finished" {
			cp := *g
			cp.Players = m.players[g.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	var result []model.Game
	for _, g := range m.games {
		if g.Status == "active" {
			cp := *g
			cp.Players = m.players[g.ID]
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockGameRepo) JoinGame(_ context.Context, gameID, userID string) error {
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:      gameID,
		UserID:      userID,
		DisplayName: userID,
		JoinedAt:    time.Now(),
	})
	return nil
}

func (m *mockGameRepo) JoinGameAsBot(_ context.Context, gameID, userID, difficulty string) error {
	if difficulty == "" {
		difficulty = "easy"
	}
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:        gameID,
		UserID:        userID,
		DisplayName:   userID,
		IsBot:         true,
		BotDifficulty: difficulty,
		JoinedAt:      time.Now(),
	})
	return nil
}

func (m *mockGameRepo) ReplaceBot(_ context.Context, gameID, newUserID string) error {
	players := m.players[gameID]
	for i := len(players) - 1; i >= 0; i-- {
		if players[i].IsBot {
			players[i] = model.GamePlayer{
				GameID:      gameID,
				UserID:      newUserID,
				DisplayName: newUserID,
				JoinedAt:    time.Now(),
			}
			return nil
		}
	}
	return fmt.Errorf("no bot to replace")
}

func (m *mockGameRepo) UpdateBotDifficulty(_ context.Context, gameID, botUserID, difficulty string) error {
	players := m.players[gameID]
	for i, p := range players {
		if p.UserID == botUserID && p.IsBot {
			players[i].BotDifficulty = difficulty
			return nil
		}
	}
	return fmt.Errorf("bot not found")
}

func (m *mockGameRepo) PlayerCount(_ context.Context, gameID string) (int, error) {
	return len(m.players[gameID]), nil
}

func (m *mockGameRepo) AssignColors(_ context.Context, gameID string, colors map[string]string) error {
	players := m.players[gameID]
	for i := range players {
		if color, ok := colors[players[i].UserID]; ok {
			players[i].Color = color
		}
	}
	if g, ok := m.games[gameID]; ok {
		g.Status = "active"
		now := time.Now()
		g.StartedAt = &now
	}
	return nil
}

func (m *mockGameRepo) SetFinished(_ context.Context, gameID, winner string) error {
	if g, ok := m.games[gameID]; ok {
		g.Status = "finished"
		g.Winner = winner
	}
	return nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	delete(m.games, gameID)
	delete(m.players, gameID)
	return nil
}

// mockUserRepo implements repository.UserRepository for testing.
type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("bot-user-%d", m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	if u, ok := m.users[id]; ok {
		u.DisplayName = displayName
	}
	return nil
}

// mockTurnRepo implements repository.TurnRepository for testing.
type mockTurnRepo struct {
	turns  []*model.Turn
	events []model.TurnEvent
}

func newMockTurnRepo() *mockTurnRepo {
	return &mockTurnRepo{}
}

func (m *mockTurnRepo) CreateTurn(_ context.Context, gameID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Turn, error) {
	t := &model.Turn{
		ID:          fmt.Sprintf("turn-%d", len(m.turns)+1),
		GameID:      gameID,
		Number:      number,
		StateBefore: stateBefore,
		Deadline:    deadline,
		CreatedAt:   time.Now(),
	}
	m.turns = append(m.turns, t)
	return t, nil
}

func (m *mockTurnRepo) CurrentTurn(_ context.Context, gameID string) (*model.Turn, error) {
	for i := len(m.turns) - 1; i >= 0; i-- {
		t := m.turns[i]
		if t.GameID == gameID && t.ResolvedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockTurnRepo) ListTurns(_ context.Context, gameID string) ([]model.Turn, error) {
	var result []model.Turn
	for _, t := range m.turns {
		if t.GameID == gameID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (m *mockTurnRepo) ResolveTurn(_ context.Context, turnID string, stateAfter json.RawMessage) error {
	for _, t := range m.turns {
		if t.ID == turnID {
			t.StateAfter = stateAfter
			now := time.Now()
			t.ResolvedAt = &now
		}
	}
	return nil
}

func (m *mockTurnRepo) SaveEvent(_ context.Context, ev model.TurnEvent) error {
	for _, e := range m.events {
		if e.GameID == ev.GameID && e.Seq == ev.Seq {
			return nil
		}
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockTurnRepo) EventsByTurn(_ context.Context, gameID string, turn int) ([]model.TurnEvent, error) {
	var result []model.TurnEvent
	for _, e := range m.events {
		if e.GameID == gameID && e.Turn == turn {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockTurnRepo) ListExpired(_ context.Context) ([]model.Turn, error) {
	var result []model.Turn
	now := time.Now()
	for _, t := range m.turns {
		if t.ResolvedAt == nil && t.Deadline.Before(now) {
			result = append(result, *t)
		}
	}
	return result, nil
}

// mockCache implements repository.GameCache for testing.
type mockCache struct {
	states map[string]json.RawMessage
	timers map[string]time.Time
	steps  map[string]time.Duration

	clearErr error
}

func newMockCache() *mockCache {
	return &mockCache{
		states: make(map[string]json.RawMessage),
		timers: make(map[string]time.Time),
		steps:  make(map[string]time.Duration),
	}
}

func (c *mockCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	c.states[gameID] = state
	return nil
}

func (c *mockCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	return c.states[gameID], nil
}

func (c *mockCache) SetTimer(_ context.Context, gameID string, deadline time.Time) error {
	c.timers[gameID] = deadline
	return nil
}

func (c *mockCache) ClearTimer(_ context.Context, gameID string) error {
	if c.clearErr != nil {
		return c.clearErr
	}
	delete(c.timers, gameID)
	return nil
}

func (c *mockCache) SetStepTimer(_ context.Context, gameID string, delay time.Duration) error {
	c.steps[gameID] = delay
	return nil
}

func (c *mockCache) StepPending(_ context.Context, gameID string) (bool, error) {
	_, ok := c.steps[gameID]
	return ok, nil
}

// expireStep simulates the step key expiring in Redis.
func (c *mockCache) expireStep(gameID string) {
	delete(c.steps, gameID)
}

func (c *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	delete(c.states, gameID)
	delete(c.timers, gameID)
	delete(c.steps, gameID)
	return nil
}

// recordingBroadcaster captures broadcast event types in order.
type recordingBroadcaster struct {
	events  []string
	data    []any
	notices map[string][]any
}

func (b *recordingBroadcaster) NotifyUser(userID, _ string, _ string, data any) {
	if b.notices == nil {
		b.notices = make(map[string][]any)
	}
	b.notices[userID] = append(b.notices[userID], data)
}

func (b *recordingBroadcaster) BroadcastGameEvent(_ string, eventType string, data any) {
	b.events = append(b.events, eventType)
	b.data = append(b.data, data)
}

func (b *recordingBroadcaster) count(eventType string) int {
	n := 0
	for _, e := range b.events {
		if e == eventType {
			n++
		}
	}
	return n
}
