// Package poll drains physical devices, routes samples through the resolved
// mapping tables, and flushes the output devices once per tick.
package poll

import (
	"errors"
	"fmt"
	"log/slog"

	"stickbridge/internal/convert"
	"stickbridge/internal/mapping"
	"stickbridge/internal/output"
)

// BufferSize is the number of samples each acquired device buffers between ticks.
const BufferSize = 128

// Source acquires physical devices by name.
type Source interface {
	Acquire(name string, bufferSize int) (Device, error)
}

// Device is an acquired physical device.
type Device interface {
	// Drain returns the samples buffered since the last call, oldest first.
	Drain() []mapping.Sample
}

// Injector queues a synthetic sample on an acquired device.
type Injector interface {
	Inject(name string, s mapping.Sample) error
}

// TickStats counts what the poller has done since it was created.
type TickStats struct {
	Ticks   uint64 `json:"ticks"`
	Samples uint64 `json:"samples"`
	Applied uint64 `json:"applied"`
	Ignored uint64 `json:"ignored"`
}

type boundDevice struct {
	name  string
	dev   Device
	table *mapping.DeviceTable
}

// Poller runs the drain, convert, write, flush cycle. It is not safe for
// concurrent use; one goroutine should own it.
type Poller struct {
	logger   *slog.Logger
	registry *output.Registry
	devices  []boundDevice
	mapped   []*output.Device
	stats    TickStats
}

// Option adjusts a Poller built by New.
type Option func(*options)

type options struct {
	bufferSize int
}

// WithBufferSize sets the per-device sample buffer passed to Acquire.
// Values <= 0 keep BufferSize.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// New checks that every rule target exists in registry and acquires every
// physical device named in resolved, in sorted name order.
func New(resolved *mapping.Resolved, registry *output.Registry, source Source, logger *slog.Logger, opts ...Option) (*Poller, error) {
	if resolved == nil || registry == nil || source == nil {
		return nil, errors.New("poll: resolved mapping, registry and source are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := options{bufferSize: BufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Poller{logger: logger, registry: registry}

	for _, name := range resolved.Mapped() {
		d, ok := registry.Lookup(output.ID(name))
		if !ok {
			return nil, &RegistryMismatchError{Device: name}
		}
		if err := verifyTargets(name, d, resolved.Targets[name]); err != nil {
			return nil, err
		}
		p.mapped = append(p.mapped, d)
	}

	for _, name := range resolved.Devices() {
		dev, err := source.Acquire(name, o.bufferSize)
		if err != nil {
			return nil, fmt.Errorf("acquire %q: %w", name, err)
		}
		logger.Info("input device acquired", "device", name, "rules", resolved.Tables[name].Len())
		p.devices = append(p.devices, boundDevice{name: name, dev: dev, table: resolved.Tables[name]})
	}

	return p, nil
}

func verifyTargets(name string, d *output.Device, t *mapping.Targets) error {
	if t == nil {
		return nil
	}
	for set, comps := range t.Sets {
		for _, c := range comps {
			if !d.HasComponent(set, c) {
				return &RegistryMismatchError{Device: name, Set: set, Component: c}
			}
		}
	}
	for _, b := range t.Buttons {
		if !d.HasButton(b) {
			return &RegistryMismatchError{Device: name, Component: b}
		}
	}
	return nil
}

// Devices returns the acquired physical device names in polling order.
func (p *Poller) Devices() []string {
	out := make([]string, len(p.devices))
	for i, bd := range p.devices {
		out[i] = bd.name
	}
	return out
}

// Stats returns cumulative counters.
func (p *Poller) Stats() TickStats {
	return p.stats
}

// PollOnce drains every device, applies every matching rule to each sample,
// then flushes the mapped output devices. A returned error is fatal.
func (p *Poller) PollOnce() error {
	var samples, applied, ignored uint64

	for _, bd := range p.devices {
		for _, s := range bd.dev.Drain() {
			samples++
			n, err := p.apply(bd, s)
			if err != nil {
				return fmt.Errorf("device %q %s: %w", bd.name, s.Offset, err)
			}
			if n == 0 {
				ignored++
				p.logger.Debug("unmapped sample", "device", bd.name, "offset", s.Offset.String(), "value", s.Value)
				continue
			}
			applied += uint64(n)
		}
	}

	for _, d := range p.mapped {
		d.Flush()
	}

	p.stats.Ticks++
	p.stats.Samples += samples
	p.stats.Applied += applied
	p.stats.Ignored += ignored
	return nil
}

// apply fires every rule matching s and returns how many did.
func (p *Poller) apply(bd boundDevice, s mapping.Sample) (int, error) {
	t := bd.table
	n := 0

	switch s.Offset.Classify() {
	case mapping.ClassAxis:
		if r, ok := t.AxisVector(s.Offset); ok {
			v := convert.Axis(s.Value, r.Invert, convert.RangeFull)
			if err := p.setAxis(r.OutputDevice, r.OutputSet, r.OutputComponent, v); err != nil {
				return n, err
			}
			n++
		}
		if r, ok := t.AxisScalar(s.Offset); ok {
			v := convert.Axis(s.Value, r.Invert, r.Range)
			if err := p.setAxis(r.OutputDevice, r.OutputSet, r.OutputSet, v); err != nil {
				return n, err
			}
			n++
		}

	case mapping.ClassHat:
		if r, ok := t.PovTouchpad(s.Offset); ok {
			dir := convert.Pov(s.Value)
			if err := p.setAxis(r.OutputDevice, r.OutputSet, mapping.TouchpadX, dir.X); err != nil {
				return n, err
			}
			if err := p.setAxis(r.OutputDevice, r.OutputSet, mapping.TouchpadY, dir.Y); err != nil {
				return n, err
			}
			n++
		}

	case mapping.ClassButton:
		if r, ok := t.ButtonVector(s.Offset); ok {
			v := convert.ButtonValue(s.Value, r.PressValue, r.ReleaseValue)
			if err := p.setAxis(r.OutputDevice, r.OutputSet, r.OutputComponent, v); err != nil {
				return n, err
			}
			n++
		}
		if r, ok := t.ButtonButton(s.Offset); ok {
			if err := p.setButton(r.OutputDevice, r.OutputButton, convert.Pressed(s.Value)); err != nil {
				return n, err
			}
			n++
		}
		if r, ok := t.ButtonScalar(s.Offset); ok {
			v := convert.ButtonValue(s.Value, r.PressValue, r.ReleaseValue)
			if err := p.setAxis(r.OutputDevice, r.OutputSet, r.OutputSet, v); err != nil {
				return n, err
			}
			n++
		}
	}

	if n > 0 {
		p.logger.Debug("sample applied", "device", bd.name, "offset", s.Offset.String(), "value", s.Value, "rules", n)
	}
	return n, nil
}

func (p *Poller) setAxis(device, set, component string, v float64) error {
	d, ok := p.registry.Lookup(output.ID(device))
	if !ok {
		return &RegistryMismatchError{Device: device, Set: set, Component: component}
	}
	if err := d.SetAxis(component, set, v); err != nil {
		return &RegistryMismatchError{Device: device, Set: set, Component: component, Err: err}
	}
	return nil
}

func (p *Poller) setButton(device, button string, v bool) error {
	d, ok := p.registry.Lookup(output.ID(device))
	if !ok {
		return &RegistryMismatchError{Device: device, Component: button}
	}
	if err := d.SetButton(button, v); err != nil {
		return &RegistryMismatchError{Device: device, Component: button, Err: err}
	}
	return nil
}
