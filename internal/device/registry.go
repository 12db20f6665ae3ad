package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// registered pairs a device with its validated descriptor and a component
// index.
type registered struct {
	dev        Device
	desc       Descriptor
	components map[string]Component
}

// Registry is the process-wide set of device instances.
//
// It is built once at startup, handed by reference to the HTTP layer and
// the driver factory, and torn down with Close. There is no package-level
// registry.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	devices map[string]*registered
	closed  bool
	logger  Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*registered),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register validates a device and adds it to the registry.
//
// Capability tags in the stored descriptor are derived from the interfaces
// each component implements; whatever the driver declared is replaced.
//
// Returns:
//   - ErrRegistryClosed after Close
//   - ErrDeviceExists if the ID is taken
//   - a validation error wrapping ErrInvalidDevice, ErrInvalidName or ErrInvalidSlug
func (r *Registry) Register(dev Device) error {
	desc := dev.Descriptor()
	comps := dev.Components()
	components := make(map[string]Component, len(comps))

	desc.Components = make([]ComponentDescriptor, 0, len(comps))
	for _, c := range comps {
		cd := c.Descriptor()
		cd.Capabilities = CapabilitiesOf(c)
		desc.Components = append(desc.Components, cd)
		components[cd.Name] = c
	}

	if err := ValidateDescriptor(desc); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, exists := r.devices[desc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, desc.ID)
	}

	r.devices[desc.ID] = &registered{dev: dev, desc: desc, components: components}
	r.order = append(r.order, desc.ID)

	r.logger.Info("device registered", "device_id", desc.ID, "driver", desc.Driver, "components", len(desc.Components))
	return nil
}

// Get returns the device registered under id.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return reg.dev, nil
}

// Describe returns the stored descriptor of a device.
func (r *Registry) Describe(id string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.devices[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return cloneDescriptor(reg.desc), nil
}

// Component returns one component of a device.
func (r *Registry) Component(deviceID, name string) (Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	c, ok := reg.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrComponentNotFound, deviceID, name)
	}
	return c, nil
}

// List returns every descriptor in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneDescriptor(r.devices[id].desc))
	}
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ConnectAll connects every device in registration order.
//
// A device that fails to connect stays registered; its components report
// communication errors until a later reconnect succeeds. All failures are
// logged and returned joined.
func (r *Registry) ConnectAll(ctx context.Context) error {
	r.mu.RLock()
	devs := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		devs = append(devs, r.devices[id].dev)
	}
	r.mu.RUnlock()

	var errs []error
	for _, d := range devs {
		id := d.Descriptor().ID
		start := time.Now()
		if err := d.Connect(ctx); err != nil {
			r.logger.Error("device connect failed", "device_id", id, "error", err)
			errs = append(errs, fmt.Errorf("connecting %s: %w", id, err))
			continue
		}
		r.logger.Info("device connected", "device_id", id, "took", time.Since(start))
	}
	return errors.Join(errs...)
}

// Close tears every device down in reverse registration order and rejects
// further registrations. Calling Close twice is a no-op.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	order := append([]string(nil), r.order...)
	devices := r.devices
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if err := devices[id].dev.Close(); err != nil {
			r.logger.Warn("device close failed", "device_id", id, "error", err)
			errs = append(errs, fmt.Errorf("closing %s: %w", id, err))
			continue
		}
		r.logger.Debug("device closed", "device_id", id)
	}
	return errors.Join(errs...)
}

func cloneDescriptor(d Descriptor) Descriptor {
	cpy := d
	cpy.Components = make([]ComponentDescriptor, len(d.Components))
	for i, c := range d.Components {
		c.Capabilities = append([]Capability(nil), c.Capabilities...)
		cpy.Components[i] = c
	}
	return cpy
}
