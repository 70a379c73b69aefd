package cyclical

import (
	"errors"
	"fmt"
)

var (
	// ErrShiftAborted wraps any failure inside PerformShift. The cache
	// returns to Idle at its pre-shift BufferState; the driver should
	// treat the triggering frame as failed.
	ErrShiftAborted = errors.New("shift aborted")

	// ErrInvalidPose reports a pose or target point with non-finite
	// entries. No state is mutated.
	ErrInvalidPose = errors.New("pose contains non-finite values")

	// ErrDeviceOperation reports a failed read, clear or write against
	// the Volume.
	ErrDeviceOperation = errors.New("volume device operation failed")

	// ErrArchiveUnavailable reports a failed world-archive insert or
	// query. Treated as fatal for the shift rather than silently
	// dropping points.
	ErrArchiveUnavailable = errors.New("world archive unavailable")
)

// ConfigError reports a rejected configuration value. The cache keeps
// its prior valid configuration.
type ConfigError struct {
	Param string
	Value float64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %g (must be positive)", e.Param, e.Value)
}

func abortf(stage string, class, cause error) error {
	return fmt.Errorf("%w: %s: %w: %v", ErrShiftAborted, stage, class, cause)
}
