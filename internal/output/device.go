// Package output implements the logical devices that mapped input is written
// into, and the registry the dispatch loop routes through.
package output

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnknownSet       = errors.New("unknown axis set")
	ErrUnknownComponent = errors.New("unknown axis component")
	ErrUnknownButton    = errors.New("unknown button")
	ErrDuplicate        = errors.New("already declared")
	ErrInvalidName      = errors.New("invalid name")
)

// ID names an output device. Use ParseID to build one from configuration.
type ID string

// ParseID validates s as an output device ID: non-empty, no surrounding whitespace.
func ParseID(s string) (ID, error) {
	if err := validName(s); err != nil {
		return "", fmt.Errorf("output device id: %w", err)
	}
	return ID(s), nil
}

func validName(s string) error {
	if s == "" || strings.TrimSpace(s) != s {
		return fmt.Errorf("%w %q", ErrInvalidName, s)
	}
	return nil
}

// AxisDispatch controls when axis sets are handed to their callbacks.
type AxisDispatch int

const (
	// AxisEveryTick dispatches every axis set on every flush, written or not.
	AxisEveryTick AxisDispatch = iota
	// AxisOnChange dispatches an axis set once after each write, like buttons.
	AxisOnChange
)

func (p AxisDispatch) String() string {
	if p == AxisOnChange {
		return "on_change"
	}
	return "every_tick"
}

// ParseAxisDispatch accepts "every_tick" or "on_change". Empty means every_tick.
func ParseAxisDispatch(s string) (AxisDispatch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "every_tick":
		return AxisEveryTick, nil
	case "on_change":
		return AxisOnChange, nil
	default:
		return AxisEveryTick, fmt.Errorf("invalid axis dispatch %q (must be every_tick or on_change)", s)
	}
}

// AxisSnapshot is a copy of one axis set's values, in declaration order.
type AxisSnapshot struct {
	Set    string    `json:"set"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Value returns the named component's value.
func (s AxisSnapshot) Value(component string) (float64, bool) {
	for i, n := range s.Names {
		if n == component {
			return s.Values[i], true
		}
	}
	return 0, false
}

// Map returns the snapshot keyed by component name.
func (s AxisSnapshot) Map() map[string]float64 {
	m := make(map[string]float64, len(s.Names))
	for i, n := range s.Names {
		m[n] = s.Values[i]
	}
	return m
}

// ButtonState is one button's current value.
type ButtonState struct {
	Name    string `json:"name"`
	Pressed bool   `json:"pressed"`
}

// DeviceSnapshot is the full state of a device.
type DeviceSnapshot struct {
	ID      ID             `json:"id"`
	Sets    []AxisSnapshot `json:"sets"`
	Buttons []ButtonState  `json:"buttons"`
}

type axisSet struct {
	name   string
	names  []string
	index  map[string]int
	values []float64
	dirty  bool
	cb     func(AxisSnapshot)
}

func (s *axisSet) snapshot() AxisSnapshot {
	snap := AxisSnapshot{
		Set:    s.name,
		Names:  make([]string, len(s.names)),
		Values: make([]float64, len(s.values)),
	}
	copy(snap.Names, s.names)
	copy(snap.Values, s.values)
	return snap
}

type button struct {
	name  string
	value bool
	dirty bool
	cb    func(bool)
}

// Device is a logical output: named axis sets and named buttons, each with
// a dirty flag and at most one callback.
//
// All methods are safe for concurrent use. Callbacks run on the goroutine
// calling Flush, after the device lock has been released.
type Device struct {
	id     ID
	policy AxisDispatch

	mu        sync.Mutex
	sets      []*axisSet
	setIndex  map[string]*axisSet
	buttons   []*button
	buttonIdx map[string]*button
}

// NewDevice creates an empty device.
func NewDevice(id ID, policy AxisDispatch) *Device {
	return &Device{
		id:        id,
		policy:    policy,
		setIndex:  make(map[string]*axisSet),
		buttonIdx: make(map[string]*button),
	}
}

func (d *Device) ID() ID { return d.id }

func (d *Device) Policy() AxisDispatch { return d.policy }

// AddAxisSet declares a set of components, all starting at 0.
func (d *Device) AddAxisSet(name string, axes []string) error {
	if err := validName(name); err != nil {
		return fmt.Errorf("axis set: %w", err)
	}
	if len(axes) == 0 {
		return fmt.Errorf("axis set %q has no axes", name)
	}

	s := &axisSet{
		name:   name,
		names:  make([]string, 0, len(axes)),
		index:  make(map[string]int, len(axes)),
		values: make([]float64, len(axes)),
		dirty:  d.policy == AxisEveryTick,
	}
	for _, a := range axes {
		if err := validName(a); err != nil {
			return fmt.Errorf("axis set %q component: %w", name, err)
		}
		if _, dup := s.index[a]; dup {
			return fmt.Errorf("axis set %q component %q: %w", name, a, ErrDuplicate)
		}
		s.index[a] = len(s.names)
		s.names = append(s.names, a)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.setIndex[name]; dup {
		return fmt.Errorf("axis set %q: %w", name, ErrDuplicate)
	}
	d.sets = append(d.sets, s)
	d.setIndex[name] = s
	return nil
}

// AddAxisSetCallback registers cb for the named set. A later call replaces it.
func (d *Device) AddAxisSetCallback(name string, cb func(AxisSnapshot)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.setIndex[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownSet, name)
	}
	s.cb = cb
	return nil
}

// AddButton declares a button, initially released.
func (d *Device) AddButton(name string) error {
	if err := validName(name); err != nil {
		return fmt.Errorf("button: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.buttonIdx[name]; dup {
		return fmt.Errorf("button %q: %w", name, ErrDuplicate)
	}
	b := &button{name: name}
	d.buttons = append(d.buttons, b)
	d.buttonIdx[name] = b
	return nil
}

// AddButtonCallback registers cb for the named button. A later call replaces it.
func (d *Device) AddButtonCallback(name string, cb func(bool)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buttonIdx[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownButton, name)
	}
	b.cb = cb
	return nil
}

// SetAxis writes one component and marks its set dirty.
func (d *Device) SetAxis(component, set string, v float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.setIndex[set]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownSet, set)
	}
	i, ok := s.index[component]
	if !ok {
		return fmt.Errorf("set %q: %w %q", set, ErrUnknownComponent, component)
	}
	s.values[i] = v
	s.dirty = true
	return nil
}

// SetButton writes a button and marks it dirty.
func (d *Device) SetButton(name string, v bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buttonIdx[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownButton, name)
	}
	b.value = v
	b.dirty = true
	return nil
}

// Flush hands every dirty set and button that has a callback to it: sets
// first, then buttons, each in declaration order. Buttons are cleared after
// dispatch; sets are cleared only under AxisOnChange.
func (d *Device) Flush() {
	var calls []func()

	d.mu.Lock()
	for _, s := range d.sets {
		if !s.dirty || s.cb == nil {
			continue
		}
		cb, snap := s.cb, s.snapshot()
		calls = append(calls, func() { cb(snap) })
		if d.policy == AxisOnChange {
			s.dirty = false
		}
	}
	for _, b := range d.buttons {
		if !b.dirty || b.cb == nil {
			continue
		}
		cb, v := b.cb, b.value
		calls = append(calls, func() { cb(v) })
		b.dirty = false
	}
	d.mu.Unlock()

	for _, call := range calls {
		call()
	}
}

// Snapshot copies the current value of every set and button.
func (d *Device) Snapshot() DeviceSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DeviceSnapshot{
		ID:      d.id,
		Sets:    make([]AxisSnapshot, 0, len(d.sets)),
		Buttons: make([]ButtonState, 0, len(d.buttons)),
	}
	for _, s := range d.sets {
		snap.Sets = append(snap.Sets, s.snapshot())
	}
	for _, b := range d.buttons {
		snap.Buttons = append(snap.Buttons, ButtonState{Name: b.name, Pressed: b.value})
	}
	return snap
}

// SetNames returns the declared axis sets in declaration order.
func (d *Device) SetNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(d.sets))
	for i, s := range d.sets {
		names[i] = s.name
	}
	return names
}

// ButtonNames returns the declared buttons in declaration order.
func (d *Device) ButtonNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(d.buttons))
	for i, b := range d.buttons {
		names[i] = b.name
	}
	return names
}

// HasComponent reports whether set declares component.
func (d *Device) HasComponent(set, component string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.setIndex[set]
	if !ok {
		return false
	}
	_, ok = s.index[component]
	return ok
}

// HasButton reports whether the named button is declared.
func (d *Device) HasButton(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.buttonIdx[name]
	return ok
}
