package device

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a position event.
type EventType string

// Position event types.
const (
	// EventPositionChanged follows a confirmed move.
	EventPositionChanged EventType = "position_changed"

	// EventPositionStale follows a failed or timed-out transport call.
	EventPositionStale EventType = "position_stale"

	// EventPositionSynced follows a query that refreshed the cache
	// (on connect, or when a read found the cache empty).
	EventPositionSynced EventType = "position_synced"
)

// Operations reported in Event.Operation.
const (
	OpMove    = "move"
	OpQuery   = "query"
	OpConnect = "connect"
)

// Event records one change of a component's rotor state.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	DeviceID  string        `json:"device_id"`
	Component string        `json:"component"`
	Operation string        `json:"operation,omitempty"`
	Position  int           `json:"position"`
	Label     string        `json:"label,omitempty"`
	Previous  string        `json:"previous,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewEvent stamps a new event with a random ID and the current UTC time.
func NewEvent(typ EventType, deviceID, component string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		DeviceID:  deviceID,
		Component: component,
		Timestamp: time.Now().UTC(),
	}
}

// EventSink receives position events. Implementations must not block for
// long: sinks run synchronously on the publishing driver's goroutine.
type EventSink interface {
	HandleEvent(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event)

// HandleEvent calls f(ctx, ev).
func (f EventSinkFunc) HandleEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Publisher is what drivers publish events through.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) {}

type namedSink struct {
	name string
	sink EventSink
}

// Bus fans events out to every subscribed sink in subscription order.
//
// All public methods are thread-safe.
type Bus struct {
	mu     sync.RWMutex
	sinks  []namedSink
	logger Logger
}

// NewBus creates a bus with no sinks.
func NewBus() *Bus {
	return &Bus{logger: noopLogger{}}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// Subscribe adds a sink. The name only appears in logs.
func (b *Bus) Subscribe(name string, sink EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, namedSink{name: name, sink: sink})
}

// Publish delivers ev to every sink. A panicking sink is logged and
// skipped so one faulty sink cannot take the driver down.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	sinks := append([]namedSink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, s := range sinks {
		b.deliver(ctx, s, ev)
	}
}

func (b *Bus) deliver(ctx context.Context, s namedSink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event sink panicked", "sink", s.name, "event_type", ev.Type, "panic", r)
		}
	}()
	s.sink.HandleEvent(ctx, ev)
}
