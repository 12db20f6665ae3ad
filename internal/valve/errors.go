package valve

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the valve package.
//
// Every typed error below unwraps to one of these sentinels, so callers can
// branch with errors.Is and still reach the details with errors.As:
//
//	var amb *valve.AmbiguousConnectionError
//	if errors.As(err, &amb) {
//	    // amb.Candidates lists every satisfying rotor position
//	}
var (
	// ErrGeometry is returned when a static valve table is malformed.
	ErrGeometry = errors.New("valve: invalid geometry")

	// ErrInvalidRequest is returned for malformed connection requests
	// (unknown port, dead-end port, self-pair, unknown label).
	ErrInvalidRequest = errors.New("valve: invalid connection request")

	// ErrUnreachable is returned when no rotor position satisfies a request.
	ErrUnreachable = errors.New("valve: connection unreachable")

	// ErrAmbiguous is returned when several rotor positions satisfy a request
	// and ambiguous switching was not permitted.
	ErrAmbiguous = errors.New("valve: connection ambiguous")

	// ErrUnlabeled is returned when a rotor position has no user-facing label.
	ErrUnlabeled = errors.New("valve: unlabeled position")

	// ErrDeviceCommunication is returned when the transport to the physical
	// valve fails or times out.
	ErrDeviceCommunication = errors.New("valve: device communication failed")

	// ErrPositionOutOfRange is returned when a rotor index does not exist.
	ErrPositionOutOfRange = errors.New("valve: position out of range")
)

// GeometryError describes a fault in a valve table.
// Position is -1 for faults in the stator description itself.
type GeometryError struct {
	Position int
	Ring     int
	Slot     int
	Reason   string
}

func (e *GeometryError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("%v: stator ring %d slot %d: %s", ErrGeometry, e.Ring, e.Slot, e.Reason)
	}
	return fmt.Sprintf("%v: rotor position %d ring %d slot %d: %s", ErrGeometry, e.Position, e.Ring, e.Slot, e.Reason)
}

func (e *GeometryError) Unwrap() error { return ErrGeometry }

// InvalidRequestError describes a connection request rejected before
// resolution.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidRequest, e.Reason)
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// UnreachableConnectionError is returned when no rotor position satisfies
// the request.
type UnreachableConnectionError struct {
	Request Request
}

func (e *UnreachableConnectionError) Error() string {
	return fmt.Sprintf("%v: no rotor position satisfies %s", ErrUnreachable, e.Request)
}

func (e *UnreachableConnectionError) Unwrap() error { return ErrUnreachable }

// AmbiguousConnectionError lists every rotor position that satisfies the
// request so the caller can retry with disambiguating disconnect pairs.
type AmbiguousConnectionError struct {
	Request    Request
	Candidates []int
}

func (e *AmbiguousConnectionError) Error() string {
	idx := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		idx[i] = fmt.Sprint(c)
	}
	return fmt.Sprintf("%v: positions [%s] all satisfy %s", ErrAmbiguous, strings.Join(idx, ", "), e.Request)
}

func (e *AmbiguousConnectionError) Unwrap() error { return ErrAmbiguous }

// UnlabeledPositionError marks a valve table authoring bug: the rotor
// position cannot be named for users.
type UnlabeledPositionError struct {
	Position int
	Reason   string
}

func (e *UnlabeledPositionError) Error() string {
	return fmt.Sprintf("%v: rotor position %d: %s", ErrUnlabeled, e.Position, e.Reason)
}

func (e *UnlabeledPositionError) Unwrap() error { return ErrUnlabeled }

// CommunicationError wraps a transport failure reported by a valve driver.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrDeviceCommunication, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying transport error.
func (e *CommunicationError) Unwrap() []error { return []error{ErrDeviceCommunication, e.Err} }
