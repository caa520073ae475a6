package handler

// BroadcastGameEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastGameEvent(gameID string, eventType string, data any) {
	h.BroadcastToGame(gameID, WSEvent{
		Type:   eventType,
		GameID: gameID,
		Data:   data,
	})
}

// NotifyUser implements service.Broadcaster for events only one player may see.
func (h *Hub) NotifyUser(userID, gameID, eventType string, data any) {
	h.BroadcastToUser(userID, WSEvent{
		Type:   eventType,
		GameID: gameID,
		Data:   data,
	})
}
