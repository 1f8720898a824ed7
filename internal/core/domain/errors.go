package domain

import (
	"errors"
	"fmt"
)

// ShapeMismatchError is returned when a result does not fit the method it is
// built for: wrong number of outputs, or a void/value mismatch.
type ShapeMismatchError struct {
	Method string
	Want   int
	Got    int
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	if e.Want != e.Got {
		return fmt.Sprintf("shape mismatch for %s: %s (want %d, got %d)", e.Method, e.Reason, e.Want, e.Got)
	}
	return fmt.Sprintf("shape mismatch for %s: %s", e.Method, e.Reason)
}

// IsShapeMismatch returns true if err is or wraps a ShapeMismatchError.
func IsShapeMismatch(err error) bool {
	var target *ShapeMismatchError
	return errors.As(err, &target)
}

// ConfigurationError reports misuse detected while building invocations,
// pipelines or proxies.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
