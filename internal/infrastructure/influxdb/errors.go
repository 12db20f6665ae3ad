package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps ping and bucket lookup failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrBucketNotFound means the configured bucket does not exist in the
	// configured organisation.
	ErrBucketNotFound = errors.New("influxdb: bucket not found")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
