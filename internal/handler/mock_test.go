package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/polite-conquest/internal/model"
)

// The services spawn bot work on goroutines, so these mocks lock.

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			cp := *u
			return &cp, nil
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
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.DisplayName = displayName
	return nil
}

type mockGameRepo struct {
	mu      sync.Mutex
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
	m.mu.Lock()
	defer m.mu.Unlock()
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
	cp := *g
	return &cp, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = append([]model.GamePlayer(nil), m.players[id]...)
	return &cp, nil
}

func (m *mockGameRepo) list(keep func(*model.Game) bool) []model.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Game
	for _, g := range m.games {
		if keep(g) {
			result = append(result, *g)
		}
	}
	return result
}

func (m *mockGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == "waiting" }), nil
}

func (m *mockGameRepo) ListFinished(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == "finished" }), nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == "active" }), nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	m.mu.Lock()
	members := make(map[string]bool)
	for gameID, players := range m.players {
		for _, p := range players {
			if p.UserID == userID {
				members[gameID] = true
			}
		}
	}
	m.mu.Unlock()
	return m.list(func(g *model.Game) bool { return members[g.ID] || g.CreatorID == userID }), nil
}

func (m *mockGameRepo) JoinGame(_ context.Context, gameID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:      gameID,
		UserID:      userID,
		DisplayName: userID,
		JoinedAt:    time.Now(),
	})
	return nil
}

func (m *mockGameRepo) JoinGameAsBot(_ context.Context, gameID, userID, difficulty string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players[gameID]), nil
}

func (m *mockGameRepo) AssignColors(_ context.Context, gameID string, colors map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.games[gameID]; ok {
		g.Status = "finished"
		g.Winner = winner
	}
	return nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
	delete(m.players, gameID)
	return nil
}

type mockTurnRepo struct {
	mu     sync.Mutex
	turns  []*model.Turn
	events []model.TurnEvent
}

func (m *mockTurnRepo) CreateTurn(_ context.Context, gameID string, number int, stateBefore json.RawMessage, deadline time.Time) (*model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &model.Turn{
		ID:          fmt.Sprintf("turn-%d", len(m.turns)+1),
		GameID:      gameID,
		Number:      number,
		StateBefore: stateBefore,
		Deadline:    deadline,
		CreatedAt:   time.Now(),
	}
	m.turns = append(m.turns, t)
	cp := *t
	return &cp, nil
}

func (m *mockTurnRepo) CurrentTurn(_ context.Context, gameID string) (*model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.turns) - 1; i >= 0; i-- {
		if t := m.turns[i]; t.GameID == gameID && t.ResolvedAt == nil {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockTurnRepo) ListTurns(_ context.Context, gameID string) ([]model.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Turn
	for _, t := range m.turns {
		if t.GameID == gameID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (m *mockTurnRepo) ResolveTurn(_ context.Context, turnID string, stateAfter json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockTurnRepo) EventsByTurn(_ context.Context, gameID string, turn int) ([]model.TurnEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.TurnEvent
	for _, e := range m.events {
		if e.GameID == gameID && e.Turn == turn {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockTurnRepo) ListExpired(_ context.Context) ([]model.Turn, error) {
	return nil, nil
}

type mockCache struct {
	mu     sync.Mutex
	states map[string]json.RawMessage
	timers map[string]time.Time
	steps  map[string]time.Duration
}

func newMockCache() *mockCache {
	return &mockCache{
		states: make(map[string]json.RawMessage),
		timers: make(map[string]time.Time),
		steps:  make(map[string]time.Duration),
	}
}

func (c *mockCache) SetGameState(_ context.Context, gameID string, state json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[gameID] = state
	return nil
}

func (c *mockCache) GetGameState(_ context.Context, gameID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[gameID], nil
}

func (c *mockCache) SetTimer(_ context.Context, gameID string, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers[gameID] = deadline
	return nil
}

func (c *mockCache) ClearTimer(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, gameID)
	return nil
}

func (c *mockCache) SetStepTimer(_ context.Context, gameID string, delay time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[gameID] = delay
	return nil
}

func (c *mockCache) StepPending(_ context.Context, gameID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.steps[gameID]
	return ok, nil
}

func (c *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, gameID)
	delete(c.timers, gameID)
	delete(c.steps, gameID)
	return nil
}
