package models

import "errors"

// Domain errors for the model catalog.
var (
	// ErrModelNotFound is returned when no model is registered under a name.
	ErrModelNotFound = errors.New("models: model not found")

	// ErrDuplicateModel is returned when a model name is registered twice.
	ErrDuplicateModel = errors.New("models: duplicate model name")

	// ErrInvalidModel is returned when a model file fails schema validation
	// or cannot be decoded.
	ErrInvalidModel = errors.New("models: invalid model file")

	// ErrUnsupportedFormat is returned for file extensions with no codec.
	ErrUnsupportedFormat = errors.New("models: unsupported file format")
)
