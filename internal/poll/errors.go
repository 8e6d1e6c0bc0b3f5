package poll

import (
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when injecting into a device nobody acquired.
var ErrNotAcquired = errors.New("device not acquired")

// DeviceNotFoundError means a device the rules need is not present.
type DeviceNotFoundError struct {
	Name string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("input device %q not found", e.Name)
}

// RegistryMismatchError means a rule targets an output device, set,
// component or button that the registry does not have. Component holds the
// button name for button rules and is empty when the device itself is missing.
type RegistryMismatchError struct {
	Device    string
	Set       string
	Component string
	Err       error
}

func (e *RegistryMismatchError) Error() string {
	msg := fmt.Sprintf("registry mismatch: output device %q", e.Device)
	if e.Set != "" {
		msg += fmt.Sprintf(" set %q", e.Set)
	}
	if e.Component != "" {
		msg += fmt.Sprintf(" %q", e.Component)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RegistryMismatchError) Unwrap() error { return e.Err }
