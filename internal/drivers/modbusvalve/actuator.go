package modbusvalve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/benchlink-core/internal/drivers/rotary"
)

// DefaultPollInterval is the gap between position reads while a move settles.
const DefaultPollInterval = 50 * time.Millisecond

// ErrBadPosition is returned for a rotor index outside the model.
var ErrBadPosition = errors.New("modbus: position not addressable")

// Registers maps one valve onto its controller.
type Registers struct {
	// Target is written with the requested position.
	Target uint16

	// Position reads back the confirmed position.
	Position uint16

	// IndexBase is the register value of rotor index 0 (usually 0 or 1).
	IndexBase int
}

// Options configures one valve on a bus.
type Options struct {
	Unit         byte
	Registers    Registers
	Positions    int
	PollInterval time.Duration
}

// Actuator implements rotary.Actuator over two holding registers.
type Actuator struct {
	bus  *Bus
	opts Options
}

var _ rotary.Actuator = (*Actuator)(nil)

// NewActuator creates an actuator on bus.
func NewActuator(bus *Bus, opts Options) (*Actuator, error) {
	if opts.Positions < 1 {
		return nil, fmt.Errorf("modbus valve needs at least one position, got %d", opts.Positions)
	}
	if opts.Registers.IndexBase < 0 || opts.Registers.IndexBase+opts.Positions-1 > 0xFFFF {
		return nil, fmt.Errorf("modbus valve index base %d does not fit a register", opts.Registers.IndexBase)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Actuator{bus: bus, opts: opts}, nil
}

// MoveTo implements rotary.Actuator: write the target register, then poll
// the position register until it matches.
func (a *Actuator) MoveTo(ctx context.Context, position int) error {
	if position < 0 || position >= a.opts.Positions {
		return fmt.Errorf("%w: %d of %d", ErrBadPosition, position, a.opts.Positions)
	}
	want := uint16(position + a.opts.Registers.IndexBase)
	if err := a.bus.WriteRegister(ctx, a.opts.Unit, a.opts.Registers.Target, want); err != nil {
		return err
	}

	for {
		got, err := a.bus.ReadRegister(ctx, a.opts.Unit, a.opts.Registers.Position)
		if err == nil && got == want {
			return nil
		}
		if errors.Is(err, ErrNotConnected) {
			return err
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("waiting for position %d: %w (last: %v)", position, ctx.Err(), err)
			}
			return fmt.Errorf("waiting for position %d: %w (register reads %d)", position, ctx.Err(), got)
		case <-time.After(a.opts.PollInterval):
		}
	}
}

// CurrentPosition implements rotary.Actuator.
func (a *Actuator) CurrentPosition(ctx context.Context) (int, error) {
	v, err := a.bus.ReadRegister(ctx, a.opts.Unit, a.opts.Registers.Position)
	if err != nil {
		return 0, err
	}
	return int(v) - a.opts.Registers.IndexBase, nil
}
