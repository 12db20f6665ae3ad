package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve"
)

// DefaultCommandTimeout bounds one MQTT-initiated move.
const DefaultCommandTimeout = 60 * time.Second

// Publisher is the publishing half of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber is the subscribing half of Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// ComponentResolver finds a registered component. *device.Registry
// satisfies it.
type ComponentResolver interface {
	Component(deviceID, name string) (device.Component, error)
}

// StatePayload is the retained message on benchlink/state/{device}/{component}.
type StatePayload struct {
	DeviceID  string    `json:"device_id"`
	Component string    `json:"component"`
	Position  *int      `json:"position"`
	Label     string    `json:"label,omitempty"`
	Stale     bool      `json:"stale"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Command is the payload accepted on benchlink/command/{device}/{component}.
// Label selects a position directly; otherwise Connect/Disconnect are
// resolved like a PUT on the HTTP position route.
type Command struct {
	RequestID          string       `json:"request_id,omitempty"`
	Label              string       `json:"label,omitempty"`
	Connect            []valve.Pair `json:"connect,omitempty"`
	Disconnect         []valve.Pair `json:"disconnect,omitempty"`
	AmbiguousSwitching bool         `json:"ambiguous_switching,omitempty"`
}

// Ack is published on benchlink/ack/{device}/{component} after a command.
type Ack struct {
	RequestID  string `json:"request_id,omitempty"`
	OK         bool   `json:"ok"`
	Label      string `json:"label,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	Candidates []int  `json:"candidates,omitempty"`
}

// Bridge mirrors valve events onto MQTT and accepts move commands.
//
// Thread Safety:
//   - HandleEvent and the command handler may run concurrently.
//   - Commands served by ServeCommands each run on their own goroutine, so
//     a slow move never holds up the client's delivery goroutine or
//     commands for other devices. Moves on one component are still
//     serialised by its driver.
type Bridge struct {
	pub     Publisher
	qos     byte
	timeout time.Duration
	logger  Logger

	inflight sync.WaitGroup
}

// NewBridge creates a bridge publishing with the given QoS.
func NewBridge(pub Publisher, qos byte) *Bridge {
	return &Bridge{pub: pub, qos: qos, timeout: DefaultCommandTimeout}
}

// SetLogger sets the logger for publish failures.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
}

// SetCommandTimeout overrides DefaultCommandTimeout.
func (b *Bridge) SetCommandTimeout(d time.Duration) {
	if d > 0 {
		b.timeout = d
	}
}

// HandleEvent implements device.EventSink. Every event goes to the event
// topic; the retained state topic is refreshed alongside it.
func (b *Bridge) HandleEvent(_ context.Context, ev device.Event) {
	topics := Topics{}
	if payload, err := json.Marshal(ev); err == nil {
		b.publish(topics.Event(ev.DeviceID, ev.Component), payload, false)
	}

	state := StatePayload{
		DeviceID:  ev.DeviceID,
		Component: ev.Component,
		Label:     ev.Label,
		Stale:     ev.Type == device.EventPositionStale,
		Error:     ev.Error,
		Timestamp: ev.Timestamp,
	}
	if ev.Position != valve.UnknownPosition {
		pos := ev.Position
		state.Position = &pos
	}
	if payload, err := json.Marshal(state); err == nil {
		b.publish(topics.State(ev.DeviceID, ev.Component), payload, true)
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if err := b.pub.Publish(topic, payload, b.qos, retained); err != nil && b.logger != nil {
		b.logger.Warn("MQTT publish failed", "topic", topic, "error", err)
	}
}

// ServeCommands subscribes to benchlink/command/+/+ and executes each
// command against the resolver's components in the background. Failures
// are reported on the ack topic and logged.
func (b *Bridge) ServeCommands(sub Subscriber, components ComponentResolver) error {
	handle := b.CommandHandler(components)
	return sub.Subscribe(Topics{}.AllCommands(), b.qos, func(topic string, payload []byte) error {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			if err := handle(topic, payload); err != nil && b.logger != nil {
				b.logger.Warn("MQTT command failed", "topic", topic, "error", err)
			}
		}()
		return nil
	})
}

// Wait blocks until every command started by ServeCommands has been acked.
func (b *Bridge) Wait() {
	b.inflight.Wait()
}

// CommandHandler executes one command synchronously and acks it.
func (b *Bridge) CommandHandler(components ComponentResolver) MessageHandler {
	return func(topic string, payload []byte) error {
		_, deviceID, name, err := ParseComponentTopic(topic)
		if err != nil {
			return err
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.ack(deviceID, name, Ack{Code: device.CodeInvalidRequest, Error: "malformed command payload"})
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		label, err := b.execute(ctx, components, deviceID, name, cmd)
		ack := Ack{RequestID: cmd.RequestID, OK: err == nil, Label: label}
		if err != nil {
			ack.Code = device.ErrorCode(err)
			ack.Error = err.Error()
			var amb *valve.AmbiguousConnectionError
			if errors.As(err, &amb) {
				ack.Candidates = amb.Candidates
			}
		}
		b.ack(deviceID, name, ack)
		return err
	}
}

func (b *Bridge) execute(ctx context.Context, components ComponentResolver, deviceID, name string, cmd Command) (string, error) {
	comp, err := components.Component(deviceID, name)
	if err != nil {
		return "", err
	}

	if cmd.Label != "" {
		sel, ok := comp.(device.PositionSelector)
		if !ok {
			return "", fmt.Errorf("%w: %s/%s cannot select positions", device.ErrCapabilityNotSupported, deviceID, name)
		}
		return sel.SelectPosition(ctx, cmd.Label)
	}

	setter, ok := comp.(device.PositionSetter)
	if !ok {
		return "", fmt.Errorf("%w: %s/%s cannot set positions", device.ErrCapabilityNotSupported, deviceID, name)
	}
	return setter.SetPosition(ctx, valve.Request{
		Connect:            cmd.Connect,
		Disconnect:         cmd.Disconnect,
		AmbiguousSwitching: cmd.AmbiguousSwitching,
	})
}

func (b *Bridge) ack(deviceID, name string, ack Ack) {
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	b.publish(Topics{}.Ack(deviceID, name), payload, false)
}
