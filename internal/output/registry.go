package output

import (
	"fmt"

	"stickbridge/internal/mapping"
)

// Registry holds output devices by ID in insertion order.
type Registry struct {
	devices map[ID]*Device
	order   []ID
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[ID]*Device)}
}

// Add registers d. Adding a second device with the same ID fails.
func (r *Registry) Add(d *Device) error {
	if d == nil {
		return fmt.Errorf("nil output device")
	}
	if _, dup := r.devices[d.ID()]; dup {
		return fmt.Errorf("output device %q: %w", d.ID(), ErrDuplicate)
	}
	r.devices[d.ID()] = d
	r.order = append(r.order, d.ID())
	return nil
}

func (r *Registry) Lookup(id ID) (*Device, bool) {
	d, ok := r.devices[id]
	return d, ok
}

// IDs returns the registered IDs in insertion order.
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshot returns every device's state in insertion order.
func (r *Registry) Snapshot() []DeviceSnapshot {
	out := make([]DeviceSnapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id].Snapshot())
	}
	return out
}

// AxisSetLayout declares one axis set.
type AxisSetLayout struct {
	Name string   `yaml:"name" toml:"name"`
	Axes []string `yaml:"axes" toml:"axes"`
}

// Layout declares the sets and buttons of one output device. Scalars become
// axis sets with a single component of the same name.
type Layout struct {
	Name     string          `yaml:"name" toml:"name"`
	AxisSets []AxisSetLayout `yaml:"axis_sets" toml:"axis_sets"`
	Scalars  []string        `yaml:"scalars" toml:"scalars"`
	Buttons  []string        `yaml:"buttons" toml:"buttons"`
}

// NewDeviceFromLayout builds a device with everything l declares.
func NewDeviceFromLayout(l Layout, policy AxisDispatch) (*Device, error) {
	id, err := ParseID(l.Name)
	if err != nil {
		return nil, err
	}
	d := NewDevice(id, policy)
	for _, s := range l.AxisSets {
		if err := d.AddAxisSet(s.Name, s.Axes); err != nil {
			return nil, fmt.Errorf("output device %q: %w", id, err)
		}
	}
	for _, s := range l.Scalars {
		if err := d.AddAxisSet(s, []string{s}); err != nil {
			return nil, fmt.Errorf("output device %q: scalar: %w", id, err)
		}
	}
	for _, b := range l.Buttons {
		if err := d.AddButton(b); err != nil {
			return nil, fmt.Errorf("output device %q: %w", id, err)
		}
	}
	return d, nil
}

// Build creates a registry holding one device per mapped output device in
// resolved, in sorted name order. Layouts for devices no rule targets are
// skipped. It fails when a mapped device has no layout or when a rule targets
// a set, component or button the layout does not declare.
func Build(layouts []Layout, resolved *mapping.Resolved, policy AxisDispatch) (*Registry, error) {
	if resolved == nil {
		return nil, fmt.Errorf("build output registry: nil resolved mapping")
	}

	byName := make(map[string]Layout, len(layouts))
	for _, l := range layouts {
		if _, dup := byName[l.Name]; dup {
			return nil, fmt.Errorf("output layout %q: %w", l.Name, ErrDuplicate)
		}
		byName[l.Name] = l
	}

	reg := NewRegistry()
	for _, name := range resolved.Mapped() {
		l, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("output device %q is mapped but has no layout", name)
		}
		d, err := NewDeviceFromLayout(l, policy)
		if err != nil {
			return nil, err
		}
		if err := checkTargets(d, resolved.Targets[name]); err != nil {
			return nil, fmt.Errorf("output device %q: %w", name, err)
		}
		if err := reg.Add(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func checkTargets(d *Device, t *mapping.Targets) error {
	if t == nil {
		return nil
	}
	for set, comps := range t.Sets {
		for _, c := range comps {
			if d.HasComponent(set, c) {
				continue
			}
			if !d.hasSet(set) {
				return fmt.Errorf("%w %q", ErrUnknownSet, set)
			}
			return fmt.Errorf("set %q: %w %q", set, ErrUnknownComponent, c)
		}
	}
	for _, b := range t.Buttons {
		if !d.HasButton(b) {
			return fmt.Errorf("%w %q", ErrUnknownButton, b)
		}
	}
	return nil
}

func (d *Device) hasSet(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.setIndex[name]
	return ok
}
