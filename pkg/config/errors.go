package config

import "errors"

// Sentinel errors returned by config loading, validation, and registry lookups.
var (
	ErrConfigNotFound        = errors.New("config file not found")
	ErrInvalidYAML           = errors.New("invalid YAML")
	ErrValidationFailed      = errors.New("config validation failed")
	ErrCapabilityNotFound    = errors.New("capability not found")
	ErrMissingRequiredField  = errors.New("missing required field")
	ErrInvalidValue          = errors.New("invalid value")
)

// ValidationError wraps a config validation failure with the component and
// field that caused it, so callers get a precise "what to fix" message.
type ValidationError struct {
	Component string
	ID        string
	Field     string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return e.Component + " '" + e.ID + "': field '" + e.Field + "': " + e.Err.Error()
	}
	return e.Component + ": field '" + e.Field + "': " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError constructs a ValidationError.
func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{Component: component, ID: id, Field: field, Err: err}
}

// LoadError wraps a failure to load or parse a specific config file.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return "loading " + e.File + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }
