package link

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EventKind identifies a notification.
type EventKind int

// Event kinds. The values are the event codes of mode 0.
const (
	EventConnected       EventKind = 1
	EventDisconnected    EventKind = 2
	EventModeDataWritten EventKind = 10
)

// Event is a notification raised by the link.
type Event struct {
	Kind EventKind
	// Mode is the mode written by the hub, for EventModeDataWritten.
	Mode int
	Time time.Time
}

// Code returns the numeric event code, mode N written is 10+N.
func (e Event) Code() int {
	if e.Kind == EventModeDataWritten {
		return int(e.Kind) + e.Mode
	}
	return int(e.Kind)
}

func (e Event) String() string {
	switch e.Kind {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventModeDataWritten:
		return fmt.Sprintf("mode %d data written", e.Mode)
	}
	return fmt.Sprintf("event %d", e.Code())
}

// EventHandler receives events. It is called from the link goroutine and
// should not block.
type EventHandler interface {
	HandleEvent(context.Context, Event)
}

// HandleEventFunc is func type of EventHandler.
type HandleEventFunc func(context.Context, Event)

// HandleEvent implements EventHandler.
func (f HandleEventFunc) HandleEvent(ctx context.Context, evt Event) {
	f(ctx, evt)
}

// EventChan delivers events to a channel, dropping them when it is full.
type EventChan chan Event

// HandleEvent implements EventHandler.
func (c EventChan) HandleEvent(ctx context.Context, evt Event) {
	select {
	case c <- evt:
	default:
	}
}

// EventMux dispatches events to multiple handlers.
type EventMux struct {
	lock     sync.RWMutex
	handlers []EventHandler
}

// Add registers handlers.
func (m *EventMux) Add(handlers ...EventHandler) *EventMux {
	m.lock.Lock()
	m.handlers = append(m.handlers, handlers...)
	m.lock.Unlock()
	return m
}

// HandleEvent implements EventHandler.
func (m *EventMux) HandleEvent(ctx context.Context, evt Event) {
	m.lock.RLock()
	handlers := m.handlers
	m.lock.RUnlock()
	for _, h := range handlers {
		h.HandleEvent(ctx, evt)
	}
}

// StateNotifier is called when the connection state changes.
type StateNotifier interface {
	StateChanged(context.Context, State)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, State)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state State) {
	f(ctx, state)
}
