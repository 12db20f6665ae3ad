package device

import (
	"errors"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering a device whose ID is taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrComponentNotFound is returned when a device has no such component.
	ErrComponentNotFound = errors.New("device: component not found")

	// ErrInvalidDevice is returned when descriptor validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidSlug is returned when an ID or component name is malformed.
	ErrInvalidSlug = errors.New("device: invalid slug")

	// ErrCapabilityNotSupported is returned when a component lacks the
	// capability an operation needs.
	ErrCapabilityNotSupported = errors.New("device: capability not supported")

	// ErrRegistryClosed is returned after the registry has been torn down.
	ErrRegistryClosed = errors.New("device: registry closed")
)

// Error codes reported to API and MQTT clients.
const (
	CodeInvalidRequest = "invalid_request"
	CodeUnreachable    = "unreachable_connection"
	CodeAmbiguous      = "ambiguous_connection"
	CodeUnlabeled      = "unlabeled_position"
	CodeCommunication  = "device_communication"
	CodeNotFound       = "not_found"
	CodeNotSupported   = "capability_not_supported"
	CodeInternal       = "internal_error"
)

// ErrorCode classifies err into one of the client-facing codes.
func ErrorCode(err error) string {
	switch {
	// A device reporting an impossible index is a transport fault, not a bad request.
	case errors.Is(err, valve.ErrDeviceCommunication):
		return CodeCommunication
	case errors.Is(err, valve.ErrInvalidRequest), errors.Is(err, valve.ErrPositionOutOfRange):
		return CodeInvalidRequest
	case errors.Is(err, valve.ErrUnreachable):
		return CodeUnreachable
	case errors.Is(err, valve.ErrAmbiguous):
		return CodeAmbiguous
	case errors.Is(err, valve.ErrUnlabeled):
		return CodeUnlabeled
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrComponentNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCapabilityNotSupported):
		return CodeNotSupported
	default:
		return CodeInternal
	}
}
