// Package rotary implements the driver-independent half of a rotary valve:
// resolving connection requests against the model geometry, naming rotor
// positions, caching the last known position, and publishing events. A
// driver only supplies an Actuator that can move the rotor and read it
// back.
package rotary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve"
)

// DefaultMoveTimeout bounds one actuator call when Config leaves it unset.
const DefaultMoveTimeout = 10 * time.Second

// Actuator is the physical side of a valve: the driver-specific commands
// that turn the rotor and report where it is. Positions are rotor indices
// into the model table.
type Actuator interface {
	// MoveTo turns the rotor and returns once the move is confirmed.
	MoveTo(ctx context.Context, position int) error

	// CurrentPosition asks the hardware for its rotor index.
	CurrentPosition(ctx context.Context) (int, error)
}

// Logger defines the logging interface used by valve components.
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

// Config describes one valve component.
type Config struct {
	DeviceID string
	Name     string
	Model    string
	Kind     valve.Kind
	Geometry *valve.Geometry
	Labels   *valve.Labeler

	// MoveTimeout bounds each MoveTo and CurrentPosition call.
	MoveTimeout time.Duration
}

// Valve is one rotary valve component. It implements every capability
// interface in the device package.
//
// Resolution runs lock-free against the immutable geometry. Actuator calls
// and cache updates are serialised by the component mutex, so at most one
// move or query is outstanding per physical valve.
type Valve struct {
	cfg Config
	act Actuator

	mu    sync.Mutex
	state valve.RuntimeState

	publisher device.Publisher
	logger    Logger
}

var (
	_ device.PositionReader   = (*Valve)(nil)
	_ device.PositionSetter   = (*Valve)(nil)
	_ device.ConnectionLister = (*Valve)(nil)
	_ device.PositionSelector = (*Valve)(nil)
	_ device.StatusReporter   = (*Valve)(nil)
)

// New creates a valve component with an unknown position.
func New(cfg Config, act Actuator) (*Valve, error) {
	if cfg.Geometry == nil || cfg.Labels == nil {
		return nil, fmt.Errorf("valve %s/%s: geometry and labels are required", cfg.DeviceID, cfg.Name)
	}
	if act == nil {
		return nil, fmt.Errorf("valve %s/%s: actuator is required", cfg.DeviceID, cfg.Name)
	}
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = DefaultMoveTimeout
	}
	return &Valve{
		cfg:       cfg,
		act:       act,
		state:     valve.NewRuntimeState(),
		publisher: device.NopPublisher{},
		logger:    noopLogger{},
	}, nil
}

// SetPublisher sets where position events go.
func (v *Valve) SetPublisher(p device.Publisher) {
	v.publisher = p
}

// SetLogger sets the logger for the component.
func (v *Valve) SetLogger(logger Logger) {
	v.logger = logger
}

// Geometry returns the model geometry.
func (v *Valve) Geometry() *valve.Geometry {
	return v.cfg.Geometry
}

// Descriptor implements device.Component.
func (v *Valve) Descriptor() device.ComponentDescriptor {
	return device.ComponentDescriptor{
		Name:  v.cfg.Name,
		Kind:  device.ComponentKindFor(v.cfg.Kind),
		Model: v.cfg.Model,
	}
}

// GetPosition returns the label of the current rotor position. A fresh
// cached index is served directly; otherwise the actuator is queried.
func (v *Valve) GetPosition(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if pos, ok := v.state.Position(); ok {
		return v.cfg.Labels.Label(pos)
	}
	pos, err := v.sync(ctx)
	if err != nil {
		return "", err
	}
	return v.cfg.Labels.Label(pos)
}

// SetPosition resolves req against the geometry and moves the rotor to the
// resulting position. The move is always issued, even when the cache says
// the rotor is already there.
func (v *Valve) SetPosition(ctx context.Context, req valve.Request) (string, error) {
	pos, err := v.cfg.Geometry.Resolve(req)
	if err != nil {
		return "", err
	}
	return v.move(ctx, pos)
}

// SelectPosition moves the rotor to the position carrying label.
func (v *Valve) SelectPosition(ctx context.Context, label string) (string, error) {
	pos, err := v.cfg.Labels.Position(label)
	if err != nil {
		return "", err
	}
	return v.move(ctx, pos)
}

// ListPositions returns every rotor position with its label and groups.
func (v *Valve) ListPositions() []device.PositionConnections {
	g := v.cfg.Geometry
	out := make([]device.PositionConnections, 0, g.Positions())
	for pos := 0; pos < g.Positions(); pos++ {
		groups, _ := g.ConnectionsAt(pos)
		label, _ := v.cfg.Labels.Label(pos)
		out = append(out, device.PositionConnections{Index: pos, Label: label, Groups: groups})
	}
	return out
}

// Status returns the cached state without touching the actuator.
func (v *Valve) Status() device.PositionStatus {
	v.mu.Lock()
	defer v.mu.Unlock()

	pos, known := v.state.Position()
	st := device.PositionStatus{
		Index:     pos,
		Known:     known,
		Stale:     v.state.Stale(),
		UpdatedAt: v.state.UpdatedAt(),
	}
	if pos != valve.UnknownPosition {
		st.Label, _ = v.cfg.Labels.Label(pos)
	}
	return st
}

// Resync forgets the cached position and reads it back from the actuator.
// Called after every (re)connect.
func (v *Valve) Resync(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.Invalidate()
	_, err := v.sync(ctx)
	return err
}

// Invalidate forgets the cached position without querying.
func (v *Valve) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Invalidate()
}

// MarkStale flags the cached position as untrusted, for example when the
// instrument's transport could not be opened.
func (v *Valve) MarkStale(ctx context.Context, cause error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stale(ctx, device.OpConnect, cause, 0)
}

// move drives the actuator to pos. Caller must not hold mu.
func (v *Valve) move(ctx context.Context, pos int) (string, error) {
	label, err := v.cfg.Labels.Label(pos)
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	previous := ""
	if prev, ok := v.state.Position(); ok {
		previous, _ = v.cfg.Labels.Label(prev)
	}

	mctx, cancel := context.WithTimeout(ctx, v.cfg.MoveTimeout)
	defer cancel()

	start := time.Now()
	err = v.act.MoveTo(mctx, pos)
	took := time.Since(start)
	if err != nil {
		return "", v.stale(ctx, device.OpMove, timeoutCause(mctx, err), took)
	}

	v.state.Set(pos)

	ev := v.event(device.EventPositionChanged, pos)
	ev.Operation = device.OpMove
	ev.Label = label
	ev.Previous = previous
	ev.Duration = took
	v.publisher.Publish(ctx, ev)

	v.logger.Info("valve moved",
		"device_id", v.cfg.DeviceID, "component", v.cfg.Name,
		"position", label, "previous", previous, "took", took)
	return label, nil
}

// sync queries the actuator and refreshes the cache. Caller holds mu.
func (v *Valve) sync(ctx context.Context) (int, error) {
	qctx, cancel := context.WithTimeout(ctx, v.cfg.MoveTimeout)
	defer cancel()

	pos, err := v.act.CurrentPosition(qctx)
	if err != nil {
		return 0, v.stale(ctx, device.OpQuery, timeoutCause(qctx, err), 0)
	}
	if pos < 0 || pos >= v.cfg.Geometry.Positions() {
		err = fmt.Errorf("%w: device reported %d of %d positions", valve.ErrPositionOutOfRange, pos, v.cfg.Geometry.Positions())
		return 0, v.stale(ctx, device.OpQuery, err, 0)
	}

	v.state.Set(pos)

	ev := v.event(device.EventPositionSynced, pos)
	ev.Operation = device.OpQuery
	ev.Label, _ = v.cfg.Labels.Label(pos)
	v.publisher.Publish(ctx, ev)
	return pos, nil
}

// stale marks the cache untrusted, publishes the failure and returns it
// wrapped as a communication error. Caller holds mu.
func (v *Valve) stale(ctx context.Context, op string, cause error, took time.Duration) error {
	v.state.MarkStale()

	pos, _ := v.state.Position()
	ev := v.event(device.EventPositionStale, pos)
	ev.Operation = op
	if pos != valve.UnknownPosition {
		ev.Label, _ = v.cfg.Labels.Label(pos)
	}
	ev.Duration = took
	ev.Error = cause.Error()
	v.publisher.Publish(ctx, ev)

	v.logger.Warn("valve "+op+" failed",
		"device_id", v.cfg.DeviceID, "component", v.cfg.Name, "error", cause)
	return &valve.CommunicationError{Op: op, Err: cause}
}

func (v *Valve) event(typ device.EventType, pos int) device.Event {
	ev := device.NewEvent(typ, v.cfg.DeviceID, v.cfg.Name)
	ev.Position = pos
	return ev
}

// timeoutCause reports an expired move deadline as a plain timeout rather
// than whatever the actuator made of it.
func timeoutCause(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w (%v)", context.DeadlineExceeded, err)
	}
	return err
}
