package device

import (
	"context"
	"errors"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

// fakeComponent supports reading and setting only.
type fakeComponent struct {
	name  string
	kind  ComponentKind
	label string
}

func (c *fakeComponent) Descriptor() ComponentDescriptor {
	return ComponentDescriptor{
		Name:         c.name,
		Kind:         c.kind,
		Model:        "fake",
		Capabilities: []Capability{CapPositionSelect}, // replaced on registration
	}
}

func (c *fakeComponent) GetPosition(context.Context) (string, error) { return c.label, nil }

func (c *fakeComponent) SetPosition(_ context.Context, _ valve.Request) (string, error) {
	return c.label, nil
}

// listingComponent adds ConnectionLister.
type listingComponent struct{ fakeComponent }

func (c *listingComponent) ListPositions() []PositionConnections { return nil }

type fakeDevice struct {
	id         string
	components []Component
	connectErr error
	closeErr   error
	closed     *[]string
	connected  bool
}

func (d *fakeDevice) Descriptor() Descriptor {
	return Descriptor{ID: d.id, Name: "Fake " + d.id, Kind: KindValveActuator, Driver: "fake"}
}

func (d *fakeDevice) Components() []Component { return d.components }

func (d *fakeDevice) Connect(context.Context) error {
	if d.connectErr != nil {
		return d.connectErr
	}
	d.connected = true
	return nil
}

func (d *fakeDevice) Close() error {
	if d.closed != nil {
		*d.closed = append(*d.closed, d.id)
	}
	return d.closeErr
}

func newFakeDevice(id string) *fakeDevice {
	return &fakeDevice{
		id: id,
		components: []Component{
			&fakeComponent{name: "injector", kind: ComponentInjectionValve, label: valve.LabelLoad},
			&listingComponent{fakeComponent{name: "selector", kind: ComponentDistributionValve, label: "3"}},
		},
	}
}

var errBoom = errors.New("boom")
