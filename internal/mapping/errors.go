package mapping

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceMissing means no rule set was supplied or it names no devices.
	ErrSourceMissing = errors.New("settings source missing")
	// ErrDuplicateOffset means two rules of one kind read the same control.
	ErrDuplicateOffset = errors.New("duplicate input offset")
	// ErrEmptyName means a device, set, component or button name is blank.
	ErrEmptyName = errors.New("empty name")
)

// ConfigurationError reports a rule set that cannot be resolved.
// Device, Kind and Input are filled in as far as they are known.
type ConfigurationError struct {
	Device string
	Kind   string
	Input  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Device != "" {
		msg += fmt.Sprintf(": device %q", e.Device)
	}
	if e.Kind != "" {
		msg += ": " + e.Kind
	}
	if e.Input != "" {
		msg += fmt.Sprintf(" input %q", e.Input)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
