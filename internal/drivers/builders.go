package drivers

import (
	"fmt"
	"strconv"

	"github.com/nerrad567/benchlink-core/internal/drivers/modbusvalve"
	"github.com/nerrad567/benchlink-core/internal/drivers/rotary"
	"github.com/nerrad567/benchlink-core/internal/drivers/simulated"
	"github.com/nerrad567/benchlink-core/internal/drivers/vici"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
	"github.com/nerrad567/benchlink-core/internal/transport"
)

// buildVICI puts every component on one line; components are told apart
// by their address (the actuator ID prefix).
//
// Options: mode (multiposition | twoposition; two-position valves default
// to twoposition), poll_interval.
func buildVICI(dev config.DeviceConfig, comps []component) (rotary.Connector, []rotary.Actuator, error) {
	conn := dev.Connection
	link := transport.NewLink(transport.Config{
		Type:     conn.Type,
		Address:  conn.Address,
		BaudRate: conn.BaudRate,
		DataBits: conn.DataBits,
		StopBits: conn.StopBits,
		Parity:   conn.Parity,
		Timeout:  conn.Timeout,
	}, nil)

	switch conn.Type {
	case transport.TypeSerial, transport.TypeTCP:
	default:
		return nil, nil, fmt.Errorf("vici: connection.type must be %s or %s, got %q", transport.TypeSerial, transport.TypeTCP, conn.Type)
	}
	if conn.Address == "" {
		return nil, nil, fmt.Errorf("vici: connection.address is required")
	}

	acts := make([]rotary.Actuator, 0, len(comps))
	for _, c := range comps {
		mode := vici.Mode(c.cfg.Options["mode"])
		if mode == "" && c.geom.Positions() == 2 {
			mode = vici.ModeTwoPosition
		}
		poll, err := durationOption(c.cfg.Options, "poll_interval")
		if err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
		}
		a, err := vici.NewActuator(link, vici.Options{
			ID:           c.cfg.Address,
			Mode:         mode,
			Positions:    c.geom.Positions(),
			PollInterval: poll,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
		}
		acts = append(acts, a)
	}
	return link, acts, nil
}

// buildModbus puts every component on one Modbus bus. A component address
// overrides connection.unit_id.
//
// Options: poll_interval.
func buildModbus(dev config.DeviceConfig, comps []component) (rotary.Connector, []rotary.Actuator, error) {
	conn := dev.Connection
	unit, err := unitID(conn.UnitID)
	if err != nil {
		return nil, nil, err
	}
	bus := modbusvalve.NewBus(modbusvalve.Config{
		Type:     conn.Type,
		Address:  conn.Address,
		UnitID:   unit,
		BaudRate: conn.BaudRate,
		DataBits: conn.DataBits,
		StopBits: conn.StopBits,
		Parity:   conn.Parity,
		Timeout:  conn.Timeout,
	}, nil)

	switch conn.Type {
	case modbusvalve.TypeTCP, modbusvalve.TypeRTU:
	default:
		return nil, nil, fmt.Errorf("modbus: connection.type must be %s or %s, got %q", modbusvalve.TypeTCP, modbusvalve.TypeRTU, conn.Type)
	}

	acts := make([]rotary.Actuator, 0, len(comps))
	for _, c := range comps {
		compUnit := unit
		if c.cfg.Address != "" {
			n, err := strconv.Atoi(c.cfg.Address)
			if err != nil {
				return nil, nil, fmt.Errorf("component %s: %w: address=%q", c.cfg.Name, ErrInvalidOption, c.cfg.Address)
			}
			if compUnit, err = unitID(n); err != nil {
				return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
			}
		}
		if c.cfg.Registers.Target == 0 && c.cfg.Registers.Position == 0 {
			return nil, nil, fmt.Errorf("component %s: registers.target and registers.position are required", c.cfg.Name)
		}
		poll, err := durationOption(c.cfg.Options, "poll_interval")
		if err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
		}

		a, err := modbusvalve.NewActuator(bus, modbusvalve.Options{
			Unit: compUnit,
			Registers: modbusvalve.Registers{
				Target:    c.cfg.Registers.Target,
				Position:  c.cfg.Registers.Position,
				IndexBase: c.cfg.Registers.IndexBase,
			},
			Positions:    c.geom.Positions(),
			PollInterval: poll,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
		}
		acts = append(acts, a)
	}
	return bus, acts, nil
}

func unitID(n int) (byte, error) {
	if n < 0 || n > 247 {
		return 0, fmt.Errorf("%w: modbus unit id %d outside 0..247", ErrInvalidOption, n)
	}
	return byte(n), nil
}

// buildSimulated gives each component its own in-memory actuator.
//
// Options: initial (rotor index at power-on), move_delay.
func buildSimulated(_ config.DeviceConfig, comps []component) (rotary.Connector, []rotary.Actuator, error) {
	link := make(simulated.Link, 0, len(comps))
	acts := make([]rotary.Actuator, 0, len(comps))
	for _, c := range comps {
		initial, err := intOption(c.cfg.Options, "initial", 0)
		if err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
		}
		delay, err := durationOption(c.cfg.Options, "move_delay")
		if err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
		}
		a, err := simulated.NewActuator(simulated.Options{
			Positions: c.geom.Positions(),
			Initial:   initial,
			MoveDelay: delay,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.cfg.Name, err)
		}
		link = append(link, a)
		acts = append(acts, a)
	}
	return link, acts, nil
}
