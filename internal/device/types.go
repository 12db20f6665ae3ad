package device

import (
	"time"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

// Kind classifies a physical device.
type Kind string

// Device kinds.
const (
	KindValveActuator Kind = "valve_actuator"
	KindValveManifold Kind = "valve_manifold"
)

// AllKinds returns all valid device kinds.
func AllKinds() []Kind {
	return []Kind{KindValveActuator, KindValveManifold}
}

// ComponentKind classifies one addressable part of a device.
type ComponentKind string

// Component kinds.
const (
	ComponentInjectionValve    ComponentKind = "injection_valve"
	ComponentDistributionValve ComponentKind = "distribution_valve"
	ComponentSelectorValve     ComponentKind = "selector_valve"
)

// AllComponentKinds returns all valid component kinds.
func AllComponentKinds() []ComponentKind {
	return []ComponentKind{ComponentInjectionValve, ComponentDistributionValve, ComponentSelectorValve}
}

// ComponentKindFor maps a valve model kind onto the component kind exposed
// to API consumers.
func ComponentKindFor(k valve.Kind) ComponentKind {
	switch k {
	case valve.KindInjection:
		return ComponentInjectionValve
	case valve.KindDistribution:
		return ComponentDistributionValve
	default:
		return ComponentSelectorValve
	}
}

// Capability names one operation a component supports. The tag mirrors
// the capability interface the component implements.
type Capability string

// Component capabilities.
const (
	CapPositionRead   Capability = "position_read"
	CapPositionSet    Capability = "position_set"
	CapConnectionList Capability = "connection_list"
	CapPositionSelect Capability = "position_select"
)

// AllCapabilities returns all valid capabilities.
func AllCapabilities() []Capability {
	return []Capability{CapPositionRead, CapPositionSet, CapConnectionList, CapPositionSelect}
}

// Descriptor is the tagged description of one registered device.
type Descriptor struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Kind       Kind                  `json:"kind"`
	Driver     string                `json:"driver"`
	Components []ComponentDescriptor `json:"components"`
}

// Component returns the named component descriptor, if present.
func (d Descriptor) Component(name string) (ComponentDescriptor, bool) {
	for _, c := range d.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentDescriptor{}, false
}

// ComponentDescriptor describes one component of a device.
type ComponentDescriptor struct {
	Name         string        `json:"name"`
	Kind         ComponentKind `json:"kind"`
	Model        string        `json:"model"`
	Capabilities []Capability  `json:"capabilities"`
}

// Has reports whether the component carries the capability tag.
func (c ComponentDescriptor) Has(capability Capability) bool {
	for _, have := range c.Capabilities {
		if have == capability {
			return true
		}
	}
	return false
}

// PositionConnections is one rotor position with its label and the port
// groups it joins.
type PositionConnections struct {
	Index  int           `json:"index"`
	Label  string        `json:"label"`
	Groups []valve.Group `json:"groups"`
}

// PositionStatus is the cached view of a component's rotor.
type PositionStatus struct {
	Index     int       `json:"index"`
	Label     string    `json:"label,omitempty"`
	Known     bool      `json:"known"`
	Stale     bool      `json:"stale"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}
