// Package vici drives VICI/Valco universal electric actuators over their
// ASCII command set.
//
// Every command is an optional device ID followed by the command and a
// carriage return:
//
//	GO<n>   move a multiposition actuator to position n (1-based)
//	GOA     move a two-position actuator to position A
//	GOB     move a two-position actuator to position B
//	CP      report the current position
//
// Move commands are not acknowledged, so MoveTo polls CP until the
// actuator reports the target position or the context expires.
package vici

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/benchlink-core/internal/drivers/rotary"
	"github.com/nerrad567/benchlink-core/internal/transport"
)

// Mode selects the actuator command set.
type Mode string

// Actuator modes.
const (
	ModeMultiposition Mode = "multiposition"
	ModeTwoPosition   Mode = "twoposition"
)

// DefaultPollInterval is the gap between CP queries while a move settles.
const DefaultPollInterval = 100 * time.Millisecond

var (
	// ErrUnexpectedReply is returned when a CP reply cannot be parsed.
	ErrUnexpectedReply = errors.New("vici: unexpected reply")

	// ErrBadPosition is returned for a rotor index the actuator cannot reach.
	ErrBadPosition = errors.New("vici: position not addressable")
)

// Options configures one actuator on a line.
type Options struct {
	// ID is the actuator's address on a shared RS-485 line ("" when the
	// actuator is alone on the line).
	ID string

	Mode Mode

	// Positions is the number of rotor positions in the valve model.
	Positions int

	PollInterval time.Duration
}

// Actuator implements rotary.Actuator for one VICI actuator.
type Actuator struct {
	line transport.Line
	opts Options
}

var _ rotary.Actuator = (*Actuator)(nil)

// NewActuator creates an actuator speaking over line.
func NewActuator(line transport.Line, opts Options) (*Actuator, error) {
	if opts.Mode == "" {
		opts.Mode = ModeMultiposition
	}
	switch opts.Mode {
	case ModeMultiposition:
		if opts.Positions < 2 {
			return nil, fmt.Errorf("vici: multiposition actuator needs at least 2 positions, got %d", opts.Positions)
		}
	case ModeTwoPosition:
		if opts.Positions != 2 {
			return nil, fmt.Errorf("vici: two-position actuator cannot drive a %d-position valve", opts.Positions)
		}
	default:
		return nil, fmt.Errorf("vici: unknown mode %q", opts.Mode)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Actuator{line: line, opts: opts}, nil
}

// MoveTo implements rotary.Actuator.
func (a *Actuator) MoveTo(ctx context.Context, position int) error {
	cmd, err := a.goCommand(position)
	if err != nil {
		return err
	}
	if err := a.line.Send(ctx, a.opts.ID+cmd); err != nil {
		return err
	}

	var last error
	for {
		got, err := a.CurrentPosition(ctx)
		switch {
		case err == nil && got == position:
			return nil
		case err == nil:
			last = fmt.Errorf("actuator at position %d", got)
		case errors.Is(err, transport.ErrClosed), errors.Is(err, transport.ErrNotConnected):
			return err
		default:
			last = err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for position %d: %w (last: %v)", position, ctx.Err(), last)
		case <-time.After(a.opts.PollInterval):
		}
	}
}

// CurrentPosition implements rotary.Actuator.
func (a *Actuator) CurrentPosition(ctx context.Context) (int, error) {
	reply, err := a.line.Query(ctx, a.opts.ID+"CP")
	if err != nil {
		return 0, err
	}
	return a.parsePosition(reply)
}

func (a *Actuator) goCommand(position int) (string, error) {
	if position < 0 || position >= a.opts.Positions {
		return "", fmt.Errorf("%w: %d of %d", ErrBadPosition, position, a.opts.Positions)
	}
	if a.opts.Mode == ModeTwoPosition {
		return "GO" + string(rune('A'+position)), nil
	}
	return "GO" + strconv.Itoa(position+1), nil
}

// parsePosition reads a CP reply. Firmware revisions answer with
// "Position is = 5", "CP05", "Position is = A" or a bare "A"/"B",
// optionally echoing the device ID first.
func (a *Actuator) parsePosition(reply string) (int, error) {
	s := strings.TrimSpace(reply)
	if a.opts.ID != "" && strings.HasPrefix(s, a.opts.ID+"CP") {
		s = s[len(a.opts.ID):]
	}

	if i := strings.LastIndexByte(s, '='); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	} else {
		s = strings.TrimPrefix(s, "CP")
	}
	s = strings.Trim(s, `"' `)

	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'B' {
		return int(s[0] - 'A'), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedReply, reply)
	}
	return n - 1, nil
}
