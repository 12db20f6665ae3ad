package rotary

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/benchlink-core/internal/device"
)

// Connector opens and closes the link an instrument's actuators share.
type Connector interface {
	Connect(ctx context.Context) error
	Close() error
}

// Instrument is a device made of one or more rotary valves behind a
// shared link. It implements device.Device.
type Instrument struct {
	desc   device.Descriptor
	link   Connector
	valves []*Valve
}

var _ device.Device = (*Instrument)(nil)

// NewInstrument groups valves into one device. link may be nil for
// instruments without a transport.
func NewInstrument(desc device.Descriptor, link Connector, valves []*Valve) *Instrument {
	return &Instrument{desc: desc, link: link, valves: valves}
}

// Descriptor implements device.Device.
func (i *Instrument) Descriptor() device.Descriptor {
	d := i.desc
	d.Components = make([]device.ComponentDescriptor, 0, len(i.valves))
	for _, v := range i.valves {
		d.Components = append(d.Components, v.Descriptor())
	}
	return d
}

// Components implements device.Device.
func (i *Instrument) Components() []device.Component {
	out := make([]device.Component, 0, len(i.valves))
	for _, v := range i.valves {
		out = append(out, v)
	}
	return out
}

// Valves returns the instrument's valve components.
func (i *Instrument) Valves() []*Valve {
	return append([]*Valve(nil), i.valves...)
}

// Connect (re)opens the link and resynchronises every valve. A failed
// link marks every valve stale; a valve that cannot be read back stays
// stale while the others proceed.
func (i *Instrument) Connect(ctx context.Context) error {
	if i.link != nil {
		if err := i.link.Connect(ctx); err != nil {
			for _, v := range i.valves {
				v.MarkStale(ctx, err)
			}
			return fmt.Errorf("opening link: %w", err)
		}
	}

	var errs []error
	for _, v := range i.valves {
		if err := v.Resync(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v.cfg.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the link. The cached positions are forgotten because
// nothing guarantees the rotor stays put while disconnected.
func (i *Instrument) Close() error {
	for _, v := range i.valves {
		v.Invalidate()
	}
	if i.link == nil {
		return nil
	}
	return i.link.Close()
}
