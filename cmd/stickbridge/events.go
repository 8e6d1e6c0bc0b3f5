package main

import (
	"encoding/json"
	"fmt"
	"time"

	"stickbridge/internal/mapping"
	"stickbridge/internal/output"
	"stickbridge/internal/poll"
)

// ============================================================================
// Daemon Events
// ============================================================================
// Events carry requests from IPC and the state websocket into the daemon
// loop, which is the only goroutine that touches the poller and the output
// devices.
// ============================================================================

// Event is a marker interface for everything the daemon loop consumes.
type Event interface {
	eventMarker()
}

// SetPolling opens or closes the poll gate. While closed, ticks do not
// drain devices or flush outputs.
type SetPolling struct {
	Enabled bool `json:"enabled"`
}

func (SetPolling) eventMarker() {}

// InjectSample queues a synthetic raw sample on an acquired physical device.
// Input is an offset name such as "X", "Buttons3" or "PointOfViewControllers0".
type InjectSample struct {
	Device string `json:"device"`
	Input  string `json:"input"`
	Value  int32  `json:"value"`
}

func (InjectSample) eventMarker() {}

// Sample resolves the input name into a raw sample.
func (e InjectSample) Sample() (mapping.Sample, error) {
	off, err := mapping.ParseOffset(e.Input)
	if err != nil {
		return mapping.Sample{}, err
	}
	return mapping.Sample{Offset: off, Value: e.Value}, nil
}

// RequestSnapshot asks the daemon loop for the current state. Reply must be
// buffered; the daemon never blocks on it.
type RequestSnapshot struct {
	Reply chan Snapshot `json:"-"`
}

func (RequestSnapshot) eventMarker() {}

// Snapshot is the daemon state as seen by IPC clients and state_init frames.
type Snapshot struct {
	Polling bool                    `json:"polling"`
	Inputs  []string                `json:"inputs"`
	Outputs []output.DeviceSnapshot `json:"outputs"`
	Stats   poll.TickStats          `json:"stats"`
}

// ============================================================================
// State Broadcasts
// ============================================================================
// Output device callbacks and the daemon loop publish these for the state
// websocket. They are never fed back into the daemon.
// ============================================================================

// StateBroadcast is a marker interface for externally visible state changes.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastAxisSet carries one flushed axis set.
type BroadcastAxisSet struct {
	Device output.ID
	Set    output.AxisSnapshot
	At     time.Time
}

// BroadcastButton carries one flushed button.
type BroadcastButton struct {
	Device  output.ID
	Button  string
	Pressed bool
	At      time.Time
}

// BroadcastPolling reports a gate change.
type BroadcastPolling struct {
	Enabled bool
	At      time.Time
}

func (BroadcastAxisSet) broadcastMarker() {}
func (BroadcastButton) broadcastMarker()  {}
func (BroadcastPolling) broadcastMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// A decoded RequestSnapshot has no reply channel; the caller supplies one.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "set_polling":
		var e SetPolling
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetPolling: %w", err)
		}
		return e, nil

	case "inject_sample":
		var e InjectSample
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal InjectSample: %w", err)
		}
		if e.Device == "" {
			return nil, fmt.Errorf("inject_sample: device is required")
		}
		if _, err := e.Sample(); err != nil {
			return nil, fmt.Errorf("inject_sample: %w", err)
		}
		return e, nil

	case "request_snapshot":
		return RequestSnapshot{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case SetPolling:
		env.Type = "set_polling"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetPolling: %w", err)
		}
		env.Data = data

	case InjectSample:
		env.Type = "inject_sample"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal InjectSample: %w", err)
		}
		env.Data = data

	case RequestSnapshot:
		env.Type = "request_snapshot"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
