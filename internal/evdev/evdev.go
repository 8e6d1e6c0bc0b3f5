package evdev

import "fmt"

// DefaultGlob matches every event node.
const DefaultGlob = "/dev/input/event*"

// DeviceLostError is returned by Run and Watch when an acquired device goes away.
type DeviceLostError struct {
	Name string
	Path string
	Err  error
}

func (e *DeviceLostError) Error() string {
	msg := fmt.Sprintf("input device %q (%s) lost", e.Name, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceLostError) Unwrap() error { return e.Err }
