package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types sent over WebSocket. Resolution steps are sent under the
// engine's own event kinds (draft_picked, conflict_round, ...).
const (
	EventConnected       = "connected"
	EventTurnStarted     = "turn_started"
	EventDecisionDropped = "decision_dropped"
	EventGameStarted     = "game_started"
	EventPlayerJoined    = "player_joined"
	EventPointsAwarded   = "points_awarded"
)

// WSEvent is the envelope for all WebSocket messages. Every message is sent
// in its own frame so renderers can play resolution events one at a time.
type WSEvent struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
	Data   any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	GameID string `json:"game_id"`
	// Turn and AfterSeq ask a subscribe to replay that turn's resolution
	// events with a higher seq, so a renderer that dropped mid-turn can
	// catch up before live events resume.
	Turn     int `json:"turn,omitempty"`
	AfterSeq int `json:"after_seq,omitempty"`
}

// WSConn wraps a WebSocket connection with its user and subscriptions.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub manages WebSocket connections, game-channel subscriptions and the
// per-user index used for private notices.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[*WSConn]bool // userID -> connections
	games map[string]map[*WSConn]bool // gameID -> subscribed connections
	count int
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[*WSConn]bool),
		games: make(map[string]map[*WSConn]bool),
	}
}

func addConn(set map[string]map[*WSConn]bool, key string, c *WSConn) bool {
	if set[key] == nil {
		set[key] = make(map[*WSConn]bool)
	}
	if set[key][c] {
		return false
	}
	set[key][c] = true
	return true
}

func removeConn(set map[string]map[*WSConn]bool, key string, c *WSConn) bool {
	conns, ok := set[key]
	if !ok || !conns[c] {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(set, key)
	}
	return true
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if addConn(h.users, c.userID, c) {
		h.count++
	}
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !removeConn(h.users, c.userID, c) {
		return
	}
	h.count--
	for gameID := range h.games {
		removeConn(h.games, gameID, c)
	}
	close(c.send)
}

// Subscribe adds a connection to a game channel.
func (h *Hub) Subscribe(c *WSConn, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	addConn(h.games, gameID, c)
}

// Unsubscribe removes a connection from a game channel.
func (h *Hub) Unsubscribe(c *WSConn, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removeConn(h.games, gameID, c)
}

// deliver queues data on every connection in conns without blocking. A full
// buffer means the client stopped reading; the message is dropped.
func deliver(conns map[*WSConn]bool, data []byte, event WSEvent) {
	for c := range conns {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("userId", c.userID).Str("gameId", event.GameID).Str("type", event.Type).
				Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// BroadcastToGame sends an event to all connections subscribed to a game.
func (h *Hub) BroadcastToGame(gameID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	deliver(h.games[gameID], data, event)
}

// BroadcastToUser sends an event to a specific user across all their connections.
func (h *Hub) BroadcastToUser(userID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	deliver(h.users[userID], data, event)
}

// sendTo queues an event for one connection, as long as it is still registered.
func (h *Hub) sendTo(c *WSConn, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", c.userID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.users[c.userID][c] {
		deliver(map[*WSConn]bool{c: true}, data, event)
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// GameSubscriberCount returns the number of connections subscribed to a game.
func (h *Hub) GameSubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}
