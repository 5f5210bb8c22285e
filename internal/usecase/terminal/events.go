package terminal

import (
	"context"
	"time"

	"sandbox-term/internal/domain"
)

// EventObserver forwards every notification to the wrapped observer and
// publishes connect and disconnect transitions on the event bus.
type EventObserver struct {
	next    domain.TerminalObserver
	bus     domain.EventBus
	session func() string

	connected bool
}

// NewEventObserver wraps next. session reports the id events are tagged with.
func NewEventObserver(next domain.TerminalObserver, bus domain.EventBus, session func() string) *EventObserver {
	if next == nil {
		next = domain.NopTerminalObserver{}
	}
	if session == nil {
		session = func() string { return "" }
	}
	return &EventObserver{next: next, bus: bus, session: session}
}

func (o *EventObserver) LineAppended(l domain.TerminalLine) { o.next.LineAppended(l) }

func (o *EventObserver) TerminalReady() { o.next.TerminalReady() }

// ConnectionChanged is called serially by the transport, so connected needs no lock.
func (o *EventObserver) ConnectionChanged(s domain.ConnectionState) {
	o.next.ConnectionChanged(s)
	switch {
	case s == domain.StateConnected && !o.connected:
		o.connected = true
		o.publish(domain.EventTerminalConnected)
	case s == domain.StateDisconnected && o.connected:
		o.connected = false
		o.publish(domain.EventTerminalDisconnected)
	}
}

func (o *EventObserver) publish(t domain.EventType) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(context.Background(), domain.Event{
		Type:      t,
		Timestamp: time.Now(),
		SessionID: o.session(),
	})
}
