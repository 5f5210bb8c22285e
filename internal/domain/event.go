package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	// Session lifecycle events.
	EventSessionCreated   EventType = "session.created"
	EventSessionPhase     EventType = "session.phase"
	EventSessionReady     EventType = "session.ready"
	EventSessionFailed    EventType = "session.failed"
	EventSessionCancelled EventType = "session.cancelled"

	// Terminal transport events.
	EventTerminalConnected    EventType = "terminal.connected"
	EventTerminalDisconnected EventType = "terminal.disconnected"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PhasePayload is the payload for EventSessionPhase and EventSessionReady.
type PhasePayload struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message,omitempty"`
	Percent *int   `json:"percent,omitempty"`
}

// FailurePayload is the payload for EventSessionFailed.
type FailurePayload struct {
	Code  ErrorCode `json:"code"`
	Error string    `json:"error"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
