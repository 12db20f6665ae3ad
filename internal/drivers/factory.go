// Package drivers turns device declarations from the configuration into
// registered instruments.
//
// Driver selection is a static table from driver name to constructor; there
// is no runtime plugin loading. Every driver builds one rotary.Actuator per
// declared valve, and the shared rotary.Valve core supplies resolution,
// labelling, caching and events on top.
package drivers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/drivers/rotary"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
	"github.com/nerrad567/benchlink-core/internal/valve"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
)

// Driver names accepted in devices[].driver.
const (
	DriverVICI      = "vici"
	DriverModbus    = "modbus"
	DriverSimulated = "simulated"
)

var (
	// ErrUnknownDriver is returned for a driver name not in the table.
	ErrUnknownDriver = errors.New("drivers: unknown driver")

	// ErrInvalidOption is returned for a malformed component option.
	ErrInvalidOption = errors.New("drivers: invalid option")
)

// Logger defines the logging interface used by built instruments.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the shared services every instrument is built with.
type Deps struct {
	Catalog   *models.Catalog
	Publisher device.Publisher
	Logger    Logger

	// DefaultMoveTimeout applies to components without move_timeout.
	DefaultMoveTimeout time.Duration
}

// component is one declared valve with its model resolved.
type component struct {
	cfg    config.ComponentConfig
	model  valve.Model
	geom   *valve.Geometry
	labels *valve.Labeler
}

// actuatorBuilder creates the shared link and one actuator per component,
// in declaration order.
type actuatorBuilder func(dev config.DeviceConfig, comps []component) (rotary.Connector, []rotary.Actuator, error)

var builders = map[string]actuatorBuilder{
	DriverVICI:      buildVICI,
	DriverModbus:    buildModbus,
	DriverSimulated: buildSimulated,
}

// Names returns every supported driver name, sorted.
func Names() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build creates the instrument declared by dev. Nothing is opened; the
// registry connects instruments after registration.
func Build(dev config.DeviceConfig, deps Deps) (*rotary.Instrument, error) {
	build, ok := builders[dev.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q (device %s)", ErrUnknownDriver, dev.Driver, dev.ID)
	}
	if deps.Catalog == nil {
		return nil, errors.New("drivers: model catalog is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = device.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	comps := make([]component, 0, len(dev.Components))
	for _, cc := range dev.Components {
		c, err := resolveComponent(deps.Catalog, cc)
		if err != nil {
			return nil, fmt.Errorf("device %s component %s: %w", dev.ID, cc.Name, err)
		}
		comps = append(comps, c)
	}

	link, acts, err := build(dev, comps)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", dev.ID, err)
	}

	valves := make([]*rotary.Valve, 0, len(comps))
	for i, c := range comps {
		timeout := c.cfg.MoveTimeout
		if timeout <= 0 {
			timeout = deps.DefaultMoveTimeout
		}
		v, err := rotary.New(rotary.Config{
			DeviceID:    dev.ID,
			Name:        c.cfg.Name,
			Model:       c.model.Name,
			Kind:        c.model.Kind,
			Geometry:    c.geom,
			Labels:      c.labels,
			MoveTimeout: timeout,
		}, acts[i])
		if err != nil {
			return nil, err
		}
		v.SetPublisher(deps.Publisher)
		v.SetLogger(deps.Logger)
		valves = append(valves, v)
	}

	kind := device.KindValveActuator
	if len(valves) > 1 {
		kind = device.KindValveManifold
	}
	name := dev.Name
	if name == "" {
		name = dev.ID
	}
	desc := device.Descriptor{ID: dev.ID, Name: name, Kind: kind, Driver: dev.Driver}

	deps.Logger.Debug("instrument built", "device_id", dev.ID, "driver", dev.Driver, "components", len(valves))
	return rotary.NewInstrument(desc, link, valves), nil
}

// RegisterAll builds every declared device and registers it. The first
// failure aborts; devices already registered stay for the caller to close.
func RegisterAll(reg *device.Registry, devices []config.DeviceConfig, deps Deps) error {
	for _, d := range devices {
		inst, err := Build(d, deps)
		if err != nil {
			return err
		}
		if err := reg.Register(inst); err != nil {
			return fmt.Errorf("registering %s: %w", d.ID, err)
		}
	}
	return nil
}

func resolveComponent(cat *models.Catalog, cc config.ComponentConfig) (component, error) {
	entry, err := cat.Get(cc.Model)
	if err != nil {
		return component{}, err
	}
	c := component{cfg: cc, model: entry.Model, geom: entry.Geometry, labels: entry.Labels}
	if len(cc.Labels) > 0 {
		c.labels, err = valve.NewLabeler(entry.Geometry, cc.Labels)
		if err != nil {
			return component{}, fmt.Errorf("label override: %w", err)
		}
	}
	return c, nil
}

// durationOption reads an optional duration-valued option.
func durationOption(opts map[string]string, key string) (time.Duration, error) {
	v, ok := opts[key]
	if !ok || v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidOption, key, v)
	}
	return d, nil
}

// intOption reads an optional integer option.
func intOption(opts map[string]string, key string, def int) (int, error) {
	v, ok := opts[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidOption, key, v)
	}
	return n, nil
}
