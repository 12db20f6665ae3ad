package device

import (
	"context"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

// Component is one addressable part of a device. Concrete components
// implement whichever capability interfaces below they support; callers
// discover them with type assertions, never by inspecting the concrete type.
type Component interface {
	Descriptor() ComponentDescriptor
}

// PositionReader reports the current rotor position as a label.
type PositionReader interface {
	Component
	GetPosition(ctx context.Context) (string, error)
}

// PositionSetter resolves a connection request and moves the rotor.
type PositionSetter interface {
	Component
	SetPosition(ctx context.Context, req valve.Request) (string, error)
}

// ConnectionLister lists every rotor position with the groups it joins.
type ConnectionLister interface {
	Component
	ListPositions() []PositionConnections
}

// PositionSelector moves the rotor directly to a labelled position.
type PositionSelector interface {
	Component
	SelectPosition(ctx context.Context, label string) (string, error)
}

// StatusReporter exposes the cached rotor state without touching the
// transport.
type StatusReporter interface {
	Component
	Status() PositionStatus
}

// Device is one physical instrument with its components.
type Device interface {
	Descriptor() Descriptor
	Components() []Component

	// Connect opens the transport and resynchronises cached state.
	Connect(ctx context.Context) error

	// Close releases the transport. It must be safe to call more than once.
	Close() error
}

// CapabilitiesOf derives the capability tags from the interfaces a
// component implements.
func CapabilitiesOf(c Component) []Capability {
	var caps []Capability
	if _, ok := c.(PositionReader); ok {
		caps = append(caps, CapPositionRead)
	}
	if _, ok := c.(PositionSetter); ok {
		caps = append(caps, CapPositionSet)
	}
	if _, ok := c.(ConnectionLister); ok {
		caps = append(caps, CapConnectionList)
	}
	if _, ok := c.(PositionSelector); ok {
		caps = append(caps, CapPositionSelect)
	}
	return caps
}
