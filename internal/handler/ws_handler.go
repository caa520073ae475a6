package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/auth"
	"github.com/freeeve/polite-conquest/internal/model"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	replayWait  = 5 * time.Second
	maxMsgSize  = 4096
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware; tighten in production
	},
}

// EventHistory serves the persisted resolution events of a turn.
type EventHistory interface {
	Events(ctx context.Context, gameID string, turn int) ([]model.TurnEvent, error)
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *Hub
	jwtMgr  *auth.JWTManager
	history EventHistory
}

// NewWSHandler creates a WSHandler. history may be nil, which disables replay.
func NewWSHandler(hub *Hub, jwtMgr *auth.JWTManager, history EventHistory) *WSHandler {
	return &WSHandler{hub: hub, jwtMgr: jwtMgr, history: history}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket.
// Auth via query param: /api/v1/ws?token=<jwt>
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, err := h.jwtMgr.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		userID: claims.UserID,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)
	h.hub.sendTo(client, WSEvent{Type: EventConnected, Data: map[string]any{}})

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("userId", claims.UserID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads subscribe/unsubscribe messages from the client.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("userId", c.userID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("userId", c.userID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.GameID == "" {
			continue
		}

		switch msg.Action {
		case "subscribe":
			h.hub.Subscribe(c, msg.GameID)
			if msg.Turn > 0 {
				h.replay(c, msg)
			}
		case "unsubscribe":
			h.hub.Unsubscribe(c, msg.GameID)
		}
	}
}

// replay queues the stored events of msg.Turn after msg.AfterSeq. The
// connection is subscribed first, so a live event may arrive twice; clients
// drop any seq they have already applied.
func (h *WSHandler) replay(c *WSConn, msg ClientMessage) {
	if h.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), replayWait)
	defer cancel()

	events, err := h.history.Events(ctx, msg.GameID, msg.Turn)
	if err != nil {
		log.Warn().Err(err).Str("userId", c.userID).Str("gameId", msg.GameID).Int("turn", msg.Turn).Msg("WebSocket replay failed")
		return
	}
	n := 0
	for _, ev := range events {
		if ev.Seq <= msg.AfterSeq {
			continue
		}
		h.hub.sendTo(c, WSEvent{Type: ev.Kind, GameID: msg.GameID, Data: ev.Payload})
		n++
	}
	log.Debug().Str("userId", c.userID).Str("gameId", msg.GameID).Int("turn", msg.Turn).Int("events", n).Msg("WebSocket replay sent")
}

// writePump writes queued messages to the connection, one frame each, and
// keeps it alive with pings.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
