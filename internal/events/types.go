package events

// Event names a gateway lifecycle topic.
type Event string

const (
	EventSessionConnected    Event = "session.connected"
	EventSessionDisconnected Event = "session.disconnected"
	EventOrderPlaced         Event = "order.placed"
	EventOrderFailed         Event = "order.failed"
	EventPositionClosed      Event = "position.closed"
	EventCloseFailed         Event = "position.close_failed"
	EventStreamStarted       Event = "stream.started"
	EventStreamStopped       Event = "stream.stopped"
)

// StreamEvent is the payload for stream start/stop topics.
type StreamEvent struct {
	Symbol string
	Reason string // "subscribed", "unsubscribed", "errors", "shutdown"
}

// SessionEvent is the payload for session connect/disconnect topics.
type SessionEvent struct {
	Account int64
	Server  string
}
