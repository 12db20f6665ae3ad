// Package transport provides the line-oriented links BenchLink drivers
// talk to instruments over: RS-232/RS-485 serial ports and raw TCP
// sockets (terminal servers, serial-over-IP bridges).
//
// A Conn serialises every exchange under its own mutex, so a command and
// its reply are never interleaved with another caller's.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

// Link types.
const (
	TypeSerial = "serial"
	TypeTCP    = "tcp"
)

const (
	defaultTimeout    = 2 * time.Second
	defaultTerminator = '\r'
	maxLineLength     = 512
)

var (
	// ErrTimeout is returned when the instrument does not answer in time.
	ErrTimeout = errors.New("transport: timeout")

	// ErrClosed is returned for calls on a closed Conn.
	ErrClosed = errors.New("transport: closed")

	// ErrLineTooLong is returned when a reply exceeds the line limit.
	ErrLineTooLong = errors.New("transport: reply line too long")
)

// Config describes how to reach an instrument.
type Config struct {
	// Type is TypeSerial or TypeTCP.
	Type string

	// Address is a device path (/dev/ttyUSB0, COM3) or host:port.
	Address string

	// Serial line settings. Zero values mean 9600 8N1.
	BaudRate int
	DataBits int
	StopBits int
	Parity   string

	// Timeout bounds each exchange. Zero means 2s.
	Timeout time.Duration

	// Terminator ends every command and reply. Zero means CR.
	Terminator byte
}

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = 9600
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Terminator == 0 {
		c.Terminator = defaultTerminator
	}
	return c
}

// Line is what drivers need from a transport.
type Line interface {
	// Send writes one command without waiting for a reply.
	Send(ctx context.Context, cmd string) error

	// Query writes one command and returns the next reply line with the
	// terminator stripped.
	Query(ctx context.Context, cmd string) (string, error)

	Close() error
}

// Conn is a terminated-line link over any byte stream.
type Conn struct {
	mu         sync.Mutex
	rw         io.ReadWriteCloser
	r          *bufio.Reader
	timeout    time.Duration
	terminator byte
	closed     bool
}

// deadliner is implemented by net.Conn.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Open dials the link described by cfg.
func Open(ctx context.Context, cfg Config) (*Conn, error) {
	switch cfg.Type {
	case TypeSerial:
		return OpenSerial(cfg)
	case TypeTCP:
		return DialTCP(ctx, cfg)
	default:
		return nil, fmt.Errorf("transport: unknown link type %q", cfg.Type)
	}
}

// OpenSerial opens a serial port. The port's read timeout is cfg.Timeout.
func OpenSerial(cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Address, err)
	}
	return NewConn(port, cfg), nil
}

// DialTCP connects to host:port.
func DialTCP(ctx context.Context, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.Address, classify(err))
	}
	return NewConn(conn, cfg), nil
}

// NewConn wraps an already open stream. Deadlines are applied when the
// stream supports them (net.Conn); otherwise the stream's own read timeout
// is relied on.
func NewConn(rw io.ReadWriteCloser, cfg Config) *Conn {
	cfg = cfg.withDefaults()
	return &Conn{
		rw:         rw,
		r:          bufio.NewReader(rw),
		timeout:    cfg.Timeout,
		terminator: cfg.Terminator,
	}
}

// Send implements Line.
func (c *Conn) Send(ctx context.Context, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(ctx); err != nil {
		return err
	}
	return c.write(cmd)
}

// Query implements Line.
func (c *Conn) Query(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.begin(ctx); err != nil {
		return "", err
	}
	if err := c.write(cmd); err != nil {
		return "", err
	}
	return c.readLine()
}

// Close closes the underlying stream. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.rw.Close()
}

// begin checks state and arms the deadline for one exchange. Caller holds mu.
func (c *Conn) begin(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if dl, ok := c.rw.(deadliner); ok {
		if err := dl.SetDeadline(deadline); err != nil {
			return fmt.Errorf("setting deadline: %w", err)
		}
	}
	return nil
}

func (c *Conn) write(cmd string) error {
	if _, err := io.WriteString(c.rw, cmd+string(c.terminator)); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, classify(err))
	}
	return nil
}

// readLine reads up to the terminator. Empty lines (a stray LF after CR)
// are skipped. On error the buffer is discarded so a late reply cannot be
// mistaken for the answer to the next command.
func (c *Conn) readLine() (string, error) {
	var b strings.Builder
	for {
		ch, err := c.r.ReadByte()
		if err != nil {
			c.r.Reset(c.rw)
			return "", fmt.Errorf("reading reply: %w", classify(err))
		}
		switch {
		case ch == c.terminator || ch == '\n':
			if line := strings.TrimSpace(b.String()); line != "" {
				return line, nil
			}
			b.Reset()
		case b.Len() >= maxLineLength:
			c.r.Reset(c.rw)
			return "", ErrLineTooLong
		default:
			b.WriteByte(ch)
		}
	}
}

// classify maps timeouts from every layer onto ErrTimeout and a closed
// stream onto ErrClosed.
func classify(err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, serial.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	default:
		return err
	}
}
