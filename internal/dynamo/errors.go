package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidConfig indicates a configuration that cannot be simulated.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrShapeMismatch indicates a buffer whose length differs from the particle count.
	ErrShapeMismatch = errors.New("dynamo: buffer shape does not match particle count")

	// ErrNotInitialized indicates a step was requested before the initial state was set.
	ErrNotInitialized = errors.New("dynamo: state not initialized")

	// ErrUnstable indicates the simulation produced NaN or Inf positions.
	ErrUnstable = errors.New("dynamo: simulation unstable (state diverged)")
)

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s = %g: %s", ErrInvalidConfig, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// ShapeError reports the expected and actual length of a rejected buffer.
func ShapeError(buffer string, want, got int) error {
	return fmt.Errorf("%w: %s has %d rows, want %d", ErrShapeMismatch, buffer, got, want)
}

// SimError wraps an error with simulation context.
type SimError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimError) Unwrap() error {
	return e.Wrapped
}
