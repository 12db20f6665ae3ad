package mqtt

import "errors"

var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrPayloadTooLarge rejects payloads over maxPayloadSize before they
	// reach the broker.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	ErrInvalidQoS   = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrInvalidCommand marks a command payload that is not valid JSON.
	ErrInvalidCommand = errors.New("mqtt: invalid command payload")
)
