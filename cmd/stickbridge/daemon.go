package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stickbridge/internal/output"
	"stickbridge/internal/poll"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The daemon loop owns the poller and, through it, every output device:
//   - A ticker at update_hz drives PollOnce while the gate is open.
//   - Events from IPC and the state websocket are handled between ticks.
//   - A PollOnce error (registry mismatch) is fatal and ends the loop.
//
// Output device callbacks run on this goroutine during Flush.
// ============================================================================

// statsInterval is how often tick statistics are written at debug level.
const statsInterval = 10 * time.Second

type daemonDeps struct {
	poller     *poll.Poller
	registry   *output.Registry
	gate       *poll.Gate
	injector   poll.Injector
	broadcasts chan<- StateBroadcast
}

// runDaemon is the main daemon loop.
//
// Shutdown semantics:
//   - Returns nil when ctx is canceled or the events channel is closed
//   - Returns the poll error when a tick fails
func runDaemon(ctx context.Context, events <-chan Event, deps daemonDeps, updateHz int, logger *slog.Logger) error {
	if deps.poller == nil || deps.gate == nil {
		return fmt.Errorf("daemon: poller and gate are required")
	}
	if updateHz <= 0 {
		updateHz = defaultUpdateHz
	}

	ticker := time.NewTicker(time.Second / time.Duration(updateHz))
	defer ticker.Stop()

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	var lastStats poll.TickStats

	logger.Info("daemon started", "update_hz", updateHz, "polling", deps.gate.IsOpen(), "inputs", deps.poller.Devices())

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)", "ticks", deps.poller.Stats().Ticks)
			return nil

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return nil
			}
			handleEvent(ev, deps, logger)

		case <-ticker.C:
			if !deps.gate.IsOpen() {
				continue
			}
			if err := deps.poller.PollOnce(); err != nil {
				return fmt.Errorf("poll: %w", err)
			}

		case <-statsTicker.C:
			s := deps.poller.Stats()
			logger.Debug("poll stats",
				"ticks", s.Ticks-lastStats.Ticks,
				"samples", s.Samples-lastStats.Samples,
				"applied", s.Applied-lastStats.Applied,
				"ignored", s.Ignored-lastStats.Ignored,
			)
			lastStats = s
		}
	}
}

func handleEvent(ev Event, deps daemonDeps, logger *slog.Logger) {
	switch e := ev.(type) {
	case SetPolling:
		if deps.gate.Set(e.Enabled) {
			logger.Info("polling changed", "enabled", e.Enabled)
			publish(deps.broadcasts, BroadcastPolling{Enabled: e.Enabled, At: time.Now().UTC()}, logger)
		}

	case InjectSample:
		if deps.injector == nil {
			logger.Warn("sample injection unavailable", "device", e.Device)
			return
		}
		s, err := e.Sample()
		if err != nil {
			logger.Warn("invalid injected sample", "device", e.Device, "input", e.Input, "error", err)
			return
		}
		if err := deps.injector.Inject(e.Device, s); err != nil {
			logger.Warn("sample injection failed", "device", e.Device, "input", e.Input, "error", err)
			return
		}
		logger.Debug("sample injected", "device", e.Device, "offset", s.Offset, "value", s.Value)

	case RequestSnapshot:
		if e.Reply == nil {
			return
		}
		snap := Snapshot{
			Polling: deps.gate.IsOpen(),
			Inputs:  deps.poller.Devices(),
			Stats:   deps.poller.Stats(),
		}
		if deps.registry != nil {
			snap.Outputs = deps.registry.Snapshot()
		}
		select {
		case e.Reply <- snap:
		default:
			logger.Warn("snapshot reply dropped (receiver not ready)")
		}

	default:
		logger.Warn("daemon ignoring unknown event", "type", fmt.Sprintf("%T", ev))
	}
}

// publish hands b to the broadcaster without blocking the daemon loop.
func publish(ch chan<- StateBroadcast, b StateBroadcast, logger *slog.Logger) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
	default:
		logger.Debug("state broadcast queue full, dropping", "type", fmt.Sprintf("%T", b))
	}
}

// registerCallbacks gives every set and button of every output device its
// one callback: publish the flushed state for the state websocket.
func registerCallbacks(registry *output.Registry, broadcasts chan<- StateBroadcast, logger *slog.Logger) error {
	for _, id := range registry.IDs() {
		id := id // per-iteration copy: go.mod targets go1.21 loop semantics
		d, _ := registry.Lookup(id)
		for _, set := range d.SetNames() {
			if err := d.AddAxisSetCallback(set, func(s output.AxisSnapshot) {
				publish(broadcasts, BroadcastAxisSet{Device: id, Set: s, At: time.Now().UTC()}, logger)
			}); err != nil {
				return fmt.Errorf("output device %q: %w", id, err)
			}
		}
		for _, name := range d.ButtonNames() {
			name := name
			if err := d.AddButtonCallback(name, func(pressed bool) {
				logger.Debug("button", "device", id, "button", name, "pressed", pressed)
				publish(broadcasts, BroadcastButton{Device: id, Button: name, Pressed: pressed, At: time.Now().UTC()}, logger)
			}); err != nil {
				return fmt.Errorf("output device %q: %w", id, err)
			}
		}
	}
	return nil
}
