package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrNotConnected is returned by a Link that has not been connected yet,
// or whose last connect attempt failed.
var ErrNotConnected = errors.New("transport: not connected")

// DialFunc opens one Line.
type DialFunc func(ctx context.Context, cfg Config) (Line, error)

// Link is a Line that can be (re)connected. Drivers hold the Link from
// construction; the underlying Conn only exists between Connect and Close.
//
// All public methods are thread-safe.
type Link struct {
	mu   sync.RWMutex
	cfg  Config
	dial DialFunc
	line Line
}

// NewLink creates an unconnected link. A nil dial uses Open.
func NewLink(cfg Config, dial DialFunc) *Link {
	if dial == nil {
		dial = func(ctx context.Context, cfg Config) (Line, error) {
			return Open(ctx, cfg)
		}
	}
	return &Link{cfg: cfg, dial: dial}
}

// Config returns the link settings.
func (l *Link) Config() Config {
	return l.cfg
}

// Connect closes any open line and dials a new one.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.line != nil {
		_ = l.line.Close()
		l.line = nil
	}
	line, err := l.dial(ctx, l.cfg)
	if err != nil {
		return err
	}
	l.line = line
	return nil
}

// Connected reports whether a line is open.
func (l *Link) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.line != nil
}

func (l *Link) current() (Line, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.line == nil {
		return nil, ErrNotConnected
	}
	return l.line, nil
}

// Send implements Line.
func (l *Link) Send(ctx context.Context, cmd string) error {
	line, err := l.current()
	if err != nil {
		return err
	}
	return line.Send(ctx, cmd)
}

// Query implements Line.
func (l *Link) Query(ctx context.Context, cmd string) (string, error) {
	line, err := l.current()
	if err != nil {
		return "", err
	}
	return line.Query(ctx, cmd)
}

// Close closes the open line, if any. Safe to call more than once.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.line == nil {
		return nil
	}
	err := l.line.Close()
	l.line = nil
	return err
}
