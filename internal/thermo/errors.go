package thermo

import (
	"errors"
	"fmt"
)

// ErrNotConverged is returned (wrapped) when an equilibrium search fails for
// the given conditions. It is the only recoverable oracle failure.
var ErrNotConverged = errors.New("equilibrium calculation did not converge")

// ConfigurationError reports that an oracle session could not be set up
// (unknown database, element or phase). It aborts the whole run.
type ConfigurationError struct {
	Database string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Database != "" {
		msg += " (database " + e.Database + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ReferenceError reports that the grain-interior potentials could not be
// evaluated at some temperature. It aborts the whole run.
type ReferenceError struct {
	Temperature float64
	Err         error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("grain interior reference failed at T = %g: %v", e.Temperature, e.Err)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}

// NotConverged wraps ErrNotConverged with a reason.
func NotConverged(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotConverged, fmt.Sprintf(format, args...))
}
