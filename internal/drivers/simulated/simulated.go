// Package simulated provides an in-memory valve actuator for running the
// server without hardware and for exercising failure paths in tests.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/benchlink-core/internal/drivers/rotary"
)

// ErrInjected is returned by a move or query while a fault is injected.
var ErrInjected = errors.New("simulated: injected fault")

// Options configures a simulated actuator.
type Options struct {
	Positions int

	// Initial is the rotor index at power-on.
	Initial int

	// MoveDelay is how long each move takes.
	MoveDelay time.Duration
}

// Actuator implements rotary.Actuator in memory.
//
// All public methods are thread-safe.
type Actuator struct {
	mu        sync.Mutex
	opts      Options
	position  int
	moves     int
	fault     error
	connected bool
}

var _ rotary.Actuator = (*Actuator)(nil)

// NewActuator creates a simulated actuator.
func NewActuator(opts Options) (*Actuator, error) {
	if opts.Positions < 1 {
		return nil, fmt.Errorf("simulated valve needs at least one position, got %d", opts.Positions)
	}
	if opts.Initial < 0 || opts.Initial >= opts.Positions {
		return nil, fmt.Errorf("simulated valve initial position %d outside 0..%d", opts.Initial, opts.Positions-1)
	}
	return &Actuator{opts: opts, position: opts.Initial, connected: true}, nil
}

// MoveTo implements rotary.Actuator.
func (a *Actuator) MoveTo(ctx context.Context, position int) error {
	if err := a.check(); err != nil {
		return err
	}
	if position < 0 || position >= a.opts.Positions {
		return fmt.Errorf("simulated: position %d outside 0..%d", position, a.opts.Positions-1)
	}

	if a.opts.MoveDelay > 0 {
		timer := time.NewTimer(a.opts.MoveDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.position = position
	a.moves++
	return nil
}

// CurrentPosition implements rotary.Actuator.
func (a *Actuator) CurrentPosition(ctx context.Context) (int, error) {
	if err := a.check(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.position, nil
}

func (a *Actuator) check() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return errors.New("simulated: not connected")
	}
	return a.fault
}

// InjectFault makes every call fail with err wrapped in ErrInjected until
// cleared with a nil err.
func (a *Actuator) InjectFault(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		a.fault = nil
		return
	}
	a.fault = fmt.Errorf("%w: %w", ErrInjected, err)
}

// Moves returns how many moves completed.
func (a *Actuator) Moves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moves
}

// Connect implements rotary.Connector for a set of simulated actuators.
func (a *Actuator) Connect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	return nil
}

// Close implements rotary.Connector.
func (a *Actuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

// Link connects and closes a group of simulated actuators together, the
// way a real instrument's transport would.
type Link []*Actuator

// Connect implements rotary.Connector.
func (l Link) Connect(ctx context.Context) error {
	for _, a := range l {
		if err := a.Connect(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close implements rotary.Connector.
func (l Link) Close() error {
	for _, a := range l {
		_ = a.Close()
	}
	return nil
}
