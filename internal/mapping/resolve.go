package mapping

import (
	"fmt"
	"sort"
	"strings"

	"stickbridge/internal/convert"
)

// DeviceTable holds one physical device's rules keyed by input offset, one
// table per rule kind. It is not modified after Resolve returns.
type DeviceTable struct {
	axisVector   map[Offset]AxisToVectorComponent
	axisScalar   map[Offset]AxisToScalar
	buttonVector map[Offset]ButtonToVectorComponent
	buttonButton map[Offset]ButtonToButton
	buttonScalar map[Offset]ButtonToScalar
	povTouchpad  map[Offset]PovToTouchpad
}

func newDeviceTable() *DeviceTable {
	return &DeviceTable{
		axisVector:   make(map[Offset]AxisToVectorComponent),
		axisScalar:   make(map[Offset]AxisToScalar),
		buttonVector: make(map[Offset]ButtonToVectorComponent),
		buttonButton: make(map[Offset]ButtonToButton),
		buttonScalar: make(map[Offset]ButtonToScalar),
		povTouchpad:  make(map[Offset]PovToTouchpad),
	}
}

// AxisVector returns the axis-to-vector rule reading o.
func (t *DeviceTable) AxisVector(o Offset) (AxisToVectorComponent, bool) {
	r, ok := t.axisVector[o]
	return r, ok
}

// AxisScalar returns the axis-to-scalar rule reading o.
func (t *DeviceTable) AxisScalar(o Offset) (AxisToScalar, bool) {
	r, ok := t.axisScalar[o]
	return r, ok
}

// ButtonVector returns the button-to-vector rule reading o.
func (t *DeviceTable) ButtonVector(o Offset) (ButtonToVectorComponent, bool) {
	r, ok := t.buttonVector[o]
	return r, ok
}

// ButtonButton returns the button-to-button rule reading o.
func (t *DeviceTable) ButtonButton(o Offset) (ButtonToButton, bool) {
	r, ok := t.buttonButton[o]
	return r, ok
}

// ButtonScalar returns the button-to-scalar rule reading o.
func (t *DeviceTable) ButtonScalar(o Offset) (ButtonToScalar, bool) {
	r, ok := t.buttonScalar[o]
	return r, ok
}

// PovTouchpad returns the POV-to-touchpad rule reading o.
func (t *DeviceTable) PovTouchpad(o Offset) (PovToTouchpad, bool) {
	r, ok := t.povTouchpad[o]
	return r, ok
}

// Len returns the number of rules in the table across all kinds.
func (t *DeviceTable) Len() int {
	return len(t.axisVector) + len(t.axisScalar) + len(t.buttonVector) +
		len(t.buttonButton) + len(t.buttonScalar) + len(t.povTouchpad)
}

// Rules returns every rule in the table in kind order, then offset order.
func (t *DeviceTable) Rules() []Rule {
	out := make([]Rule, 0, t.Len())
	out = appendSorted(out, t.axisVector)
	out = appendSorted(out, t.axisScalar)
	out = appendSorted(out, t.buttonVector)
	out = appendSorted(out, t.buttonButton)
	out = appendSorted(out, t.buttonScalar)
	out = appendSorted(out, t.povTouchpad)
	return out
}

func appendSorted[R Rule](out []Rule, m map[Offset]R) []Rule {
	offs := make([]Offset, 0, len(m))
	for o := range m {
		offs = append(offs, o)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	for _, o := range offs {
		out = append(out, m[o])
	}
	return out
}

// Targets lists what rules reference on one output device.
type Targets struct {
	// Sets maps a set name to its referenced components, sorted.
	Sets map[string][]string
	// Buttons is sorted.
	Buttons []string
}

// Resolved is the compiled form of a RuleSet.
type Resolved struct {
	// Tables is keyed by physical device name.
	Tables map[string]*DeviceTable
	// Targets is keyed by output device name. A device is mapped if it has an entry.
	Targets map[string]*Targets
}

// Devices returns the physical device names in sorted order.
func (r *Resolved) Devices() []string {
	return sortedKeys(r.Tables)
}

// Mapped returns the output device names referenced by any rule, sorted.
func (r *Resolved) Mapped() []string {
	return sortedKeys(r.Targets)
}

// IsMapped reports whether any rule targets the named output device.
func (r *Resolved) IsMapped(device string) bool {
	_, ok := r.Targets[device]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve compiles rs into per-device offset tables and records which output
// devices, sets, components and buttons the rules reference.
//
// It fails with a *ConfigurationError when rs is missing or empty, when an
// input name does not resolve to a control of the right range, when a name is
// blank, or when two rules of the same kind on one device read the same offset.
func Resolve(rs *RuleSet) (*Resolved, error) {
	if rs == nil || len(rs.Devices) == 0 {
		return nil, &ConfigurationError{Err: ErrSourceMissing}
	}

	res := &Resolved{Tables: make(map[string]*DeviceTable)}
	tb := targetBuilder{}

	for _, dr := range rs.Devices {
		if err := checkName("device", dr.Device); err != nil {
			return nil, &ConfigurationError{Device: dr.Device, Err: err}
		}
		table, ok := res.Tables[dr.Device]
		if !ok {
			table = newDeviceTable()
			res.Tables[dr.Device] = table
		}
		for i, rule := range dr.Rules {
			if rule == nil {
				return nil, &ConfigurationError{Device: dr.Device, Err: fmt.Errorf("rule %d is nil", i)}
			}
			if err := table.add(rule, tb); err != nil {
				return nil, &ConfigurationError{
					Device: dr.Device,
					Kind:   rule.Kind().String(),
					Input:  rule.InputName(),
					Err:    err,
				}
			}
		}
	}

	res.Targets = tb.build()
	return res, nil
}

func (t *DeviceTable) add(rule Rule, tb targetBuilder) error {
	off, err := ResolveInput(rule.InputName(), rule.Kind().Class())
	if err != nil {
		return err
	}

	switch r := rule.(type) {
	case AxisToVectorComponent:
		if err := checkTarget(r.OutputDevice, r.OutputSet, r.OutputComponent); err != nil {
			return err
		}
		if err := claim(t.axisVector, off); err != nil {
			return err
		}
		t.axisVector[off] = r
		tb.component(r.OutputDevice, r.OutputSet, r.OutputComponent)

	case AxisToScalar:
		if r.OutputSet == "" {
			r.OutputSet = DefaultScalarSet
		}
		if err := checkTarget(r.OutputDevice, r.OutputSet, r.OutputSet); err != nil {
			return err
		}
		switch r.Range {
		case convert.RangeFull, convert.RangeHigh, convert.RangeLow:
		default:
			return fmt.Errorf("invalid mapping range %d", int(r.Range))
		}
		if err := claim(t.axisScalar, off); err != nil {
			return err
		}
		t.axisScalar[off] = r
		tb.component(r.OutputDevice, r.OutputSet, r.OutputSet)

	case ButtonToVectorComponent:
		if err := checkTarget(r.OutputDevice, r.OutputSet, r.OutputComponent); err != nil {
			return err
		}
		if err := claim(t.buttonVector, off); err != nil {
			return err
		}
		t.buttonVector[off] = r
		tb.component(r.OutputDevice, r.OutputSet, r.OutputComponent)

	case ButtonToButton:
		if err := checkName("output device", r.OutputDevice); err != nil {
			return err
		}
		if err := checkName("output button", r.OutputButton); err != nil {
			return err
		}
		if err := claim(t.buttonButton, off); err != nil {
			return err
		}
		t.buttonButton[off] = r
		tb.button(r.OutputDevice, r.OutputButton)

	case ButtonToScalar:
		if r.OutputSet == "" {
			r.OutputSet = DefaultScalarSet
		}
		if err := checkTarget(r.OutputDevice, r.OutputSet, r.OutputSet); err != nil {
			return err
		}
		if err := claim(t.buttonScalar, off); err != nil {
			return err
		}
		t.buttonScalar[off] = r
		tb.component(r.OutputDevice, r.OutputSet, r.OutputSet)

	case PovToTouchpad:
		if err := checkTarget(r.OutputDevice, r.OutputSet, TouchpadX); err != nil {
			return err
		}
		if err := claim(t.povTouchpad, off); err != nil {
			return err
		}
		t.povTouchpad[off] = r
		tb.component(r.OutputDevice, r.OutputSet, TouchpadX)
		tb.component(r.OutputDevice, r.OutputSet, TouchpadY)

	default:
		return fmt.Errorf("unsupported rule type %T", rule)
	}
	return nil
}

func claim[R any](m map[Offset]R, off Offset) error {
	if _, dup := m[off]; dup {
		return fmt.Errorf("%w %s", ErrDuplicateOffset, off)
	}
	return nil
}

func checkTarget(device, set, component string) error {
	if err := checkName("output device", device); err != nil {
		return err
	}
	if err := checkName("output set", set); err != nil {
		return err
	}
	return checkName("output component", component)
}

func checkName(what, name string) error {
	if name == "" {
		return fmt.Errorf("%s: %w", what, ErrEmptyName)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%s %q has surrounding whitespace", what, name)
	}
	return nil
}

// targetBuilder accumulates referenced output names: device -> set -> component.
type targetBuilder map[string]*pendingTargets

type pendingTargets struct {
	sets    map[string]map[string]struct{}
	buttons map[string]struct{}
}

func (tb targetBuilder) get(device string) *pendingTargets {
	p, ok := tb[device]
	if !ok {
		p = &pendingTargets{
			sets:    make(map[string]map[string]struct{}),
			buttons: make(map[string]struct{}),
		}
		tb[device] = p
	}
	return p
}

func (tb targetBuilder) component(device, set, component string) {
	p := tb.get(device)
	comps, ok := p.sets[set]
	if !ok {
		comps = make(map[string]struct{})
		p.sets[set] = comps
	}
	comps[component] = struct{}{}
}

func (tb targetBuilder) button(device, button string) {
	tb.get(device).buttons[button] = struct{}{}
}

func (tb targetBuilder) build() map[string]*Targets {
	out := make(map[string]*Targets, len(tb))
	for device, p := range tb {
		t := &Targets{Sets: make(map[string][]string, len(p.sets))}
		for set, comps := range p.sets {
			t.Sets[set] = sortedKeys(comps)
		}
		t.Buttons = sortedKeys(p.buttons)
		out[device] = t
	}
	return out
}
