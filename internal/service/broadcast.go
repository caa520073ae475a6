package service

// Event types the services publish besides the resolution events, which go
// out under their own kind.
const (
	EventTurnStarted        = "turn_started"
	EventGameEnded          = "game_ended"
	EventDecisionsSubmitted = "decisions_submitted"
	EventDecisionDropped    = "decision_dropped"
)

// Broadcaster pushes game events to connected clients. The WebSocket hub
// implements it.
type Broadcaster interface {
	// BroadcastGameEvent reaches every subscriber of the game.
	BroadcastGameEvent(gameID string, eventType string, data any)
	// NotifyUser reaches only the given player, for decisions they lost.
	NotifyUser(userID, gameID, eventType string, data any)
}

// NoopBroadcaster drops everything. Used when no hub is wired, as in botmatch.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastGameEvent(string, string, any) {}

func (NoopBroadcaster) NotifyUser(string, string, string, any) {}
