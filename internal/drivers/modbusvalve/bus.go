// Package modbusvalve drives rotary valves whose controller exposes the
// rotor as two holding registers: a target register the host writes and a
// position register the controller updates once the rotor has arrived.
//
// Both Modbus TCP and Modbus RTU (serial) controllers are supported through
// github.com/goburrow/modbus.
package modbusvalve

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Bus types.
const (
	TypeTCP = "tcp"
	TypeRTU = "rtu"
)

const defaultTimeout = 2 * time.Second

// ErrNotConnected is returned by a bus that has not been connected yet.
var ErrNotConnected = errors.New("modbus: not connected")

// Client is the subset of modbus.Client the valves use.
type Client interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Conn is an open Modbus connection whose unit ID can be switched between
// requests.
type Conn interface {
	Client
	SetUnit(id byte)
	Close() error
}

// DialFunc opens one connection.
type DialFunc func(ctx context.Context, cfg Config) (Conn, error)

// Config describes how to reach the controller.
type Config struct {
	// Type is TypeTCP or TypeRTU.
	Type string

	// Address is host:port for TCP or a device path for RTU.
	Address string

	// UnitID is the default slave address.
	UnitID byte

	// RTU line settings. Zero values mean 19200 8E1.
	BaudRate int
	DataBits int
	StopBits int
	Parity   string

	// Timeout bounds each request. Zero means 2s.
	Timeout time.Duration
}

// Bus is the Modbus connection shared by every valve on one controller.
// Requests are serialised; goburrow handlers are not safe for concurrent
// use with differing unit IDs.
//
// All public methods are thread-safe.
type Bus struct {
	mu   sync.Mutex
	cfg  Config
	dial DialFunc
	conn Conn
}

// NewBus creates an unconnected bus. A nil dial uses Dial.
func NewBus(cfg Config, dial DialFunc) *Bus {
	if dial == nil {
		dial = Dial
	}
	return &Bus{cfg: cfg, dial: dial}
}

// Connect closes any open connection and dials a new one.
func (b *Bus) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
	conn, err := b.dial(ctx, b.cfg)
	if err != nil {
		return err
	}
	b.conn = conn
	return nil
}

// Close closes the connection. Safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// ReadRegister reads one holding register from unit.
func (b *Bus) ReadRegister(ctx context.Context, unit byte, address uint16) (uint16, error) {
	var value uint16
	err := b.do(ctx, unit, func(c Client) error {
		raw, err := c.ReadHoldingRegisters(address, 1)
		if err != nil {
			return fmt.Errorf("reading register %d: %w", address, err)
		}
		if len(raw) < 2 {
			return fmt.Errorf("reading register %d: short response (%d bytes)", address, len(raw))
		}
		value = binary.BigEndian.Uint16(raw)
		return nil
	})
	return value, err
}

// WriteRegister writes one holding register on unit.
func (b *Bus) WriteRegister(ctx context.Context, unit byte, address, value uint16) error {
	return b.do(ctx, unit, func(c Client) error {
		if _, err := c.WriteSingleRegister(address, value); err != nil {
			return fmt.Errorf("writing register %d: %w", address, err)
		}
		return nil
	})
}

func (b *Bus) do(ctx context.Context, unit byte, fn func(Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return ErrNotConnected
	}
	b.conn.SetUnit(unit)
	return fn(b.conn)
}

// handlerConn adapts a goburrow client handler to Conn.
type handlerConn struct {
	modbus.Client
	setUnit func(byte)
	close   func() error
}

func (h *handlerConn) SetUnit(id byte) { h.setUnit(id) }
func (h *handlerConn) Close() error    { return h.close() }

// Dial opens a Modbus TCP or RTU connection with goburrow/modbus.
func Dial(_ context.Context, cfg Config) (Conn, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("modbus address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch cfg.Type {
	case TypeTCP, "":
		handler := modbus.NewTCPClientHandler(cfg.Address)
		handler.SlaveId = cfg.UnitID
		handler.Timeout = timeout
		if err := handler.Connect(); err != nil {
			return nil, fmt.Errorf("connect modbus %s: %w", cfg.Address, err)
		}
		return &handlerConn{
			Client:  modbus.NewClient(handler),
			setUnit: func(id byte) { handler.SlaveId = id },
			close:   handler.Close,
		}, nil

	case TypeRTU:
		handler := modbus.NewRTUClientHandler(cfg.Address)
		handler.SlaveId = cfg.UnitID
		handler.Timeout = timeout
		handler.BaudRate = orDefault(cfg.BaudRate, 19200)
		handler.DataBits = orDefault(cfg.DataBits, 8)
		handler.StopBits = orDefault(cfg.StopBits, 1)
		handler.Parity = cfg.Parity
		if handler.Parity == "" {
			handler.Parity = "E"
		}
		if err := handler.Connect(); err != nil {
			return nil, fmt.Errorf("open modbus %s: %w", cfg.Address, err)
		}
		return &handlerConn{
			Client:  modbus.NewClient(handler),
			setUnit: func(id byte) { handler.SlaveId = id },
			close:   handler.Close,
		}, nil

	default:
		return nil, fmt.Errorf("modbus: unknown bus type %q", cfg.Type)
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
