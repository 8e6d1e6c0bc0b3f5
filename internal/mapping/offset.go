package mapping

import (
	"fmt"
	"strconv"
	"strings"
)

// Offset identifies one physical control on a device.
//
// Offsets follow the DirectInput joystick data layout:
//   - axes:    0..28 in steps of 4 (X, Y, Z, RotationX, RotationY, RotationZ, Sliders0, Sliders1)
//   - hats:    32..44 in steps of 4 (PointOfViewControllers0..3)
//   - buttons: 48..175 (Buttons0..Buttons127)
type Offset int

const (
	OffsetX         Offset = 0
	OffsetY         Offset = 4
	OffsetZ         Offset = 8
	OffsetRotationX Offset = 12
	OffsetRotationY Offset = 16
	OffsetRotationZ Offset = 20
	OffsetSliders0  Offset = 24
	OffsetSliders1  Offset = 28

	OffsetPOV0 Offset = 32

	OffsetButton0 Offset = 48

	// MaxAxisOffset is the last offset in the axis range.
	MaxAxisOffset Offset = 28
	// MaxHatOffset is the last offset in the POV hat range.
	MaxHatOffset Offset = 44
	// MaxButtonOffset is the last offset in the button range.
	MaxButtonOffset Offset = 175

	// MaxPOVs and MaxButtons bound the 1-based indices accepted in rules.
	MaxPOVs    = 4
	MaxButtons = 128
)

// Class is the offset range a control belongs to.
type Class int

const (
	ClassUnknown Class = iota
	ClassAxis
	ClassHat
	ClassButton
)

func (c Class) String() string {
	switch c {
	case ClassAxis:
		return "axis"
	case ClassHat:
		return "hat"
	case ClassButton:
		return "button"
	default:
		return "unknown"
	}
}

// Classify returns the range o falls into. The dispatch loop routes samples on this.
func (o Offset) Classify() Class {
	switch {
	case o < 0:
		return ClassUnknown
	case o <= MaxAxisOffset:
		return ClassAxis
	case o <= MaxHatOffset:
		return ClassHat
	case o <= MaxButtonOffset:
		return ClassButton
	default:
		return ClassUnknown
	}
}

var axisNames = []struct {
	name   string
	offset Offset
}{
	{"X", OffsetX},
	{"Y", OffsetY},
	{"Z", OffsetZ},
	{"RotationX", OffsetRotationX},
	{"RotationY", OffsetRotationY},
	{"RotationZ", OffsetRotationZ},
	{"Sliders0", OffsetSliders0},
	{"Sliders1", OffsetSliders1},
}

// String returns the canonical offset name, e.g. "RotationZ", "PointOfViewControllers1", "Buttons7".
func (o Offset) String() string {
	switch o.Classify() {
	case ClassAxis:
		for _, a := range axisNames {
			if a.offset == o {
				return a.name
			}
		}
	case ClassHat:
		if (o-OffsetPOV0)%4 == 0 {
			return "PointOfViewControllers" + strconv.Itoa(int(o-OffsetPOV0)/4)
		}
	case ClassButton:
		return "Buttons" + strconv.Itoa(int(o-OffsetButton0))
	}
	return fmt.Sprintf("Offset(%d)", int(o))
}

// ButtonOffset maps a 1-based button index to its offset.
func ButtonOffset(index int) (Offset, error) {
	if index < 1 || index > MaxButtons {
		return 0, fmt.Errorf("button index %d out of range 1..%d", index, MaxButtons)
	}
	return OffsetButton0 + Offset(index-1), nil
}

// POVOffset maps a 1-based POV hat index to its offset.
func POVOffset(index int) (Offset, error) {
	if index < 1 || index > MaxPOVs {
		return 0, fmt.Errorf("pov index %d out of range 1..%d", index, MaxPOVs)
	}
	return OffsetPOV0 + Offset(4*(index-1)), nil
}

// ParseOffset resolves a canonical offset name ("X", "Sliders1",
// "PointOfViewControllers0", "Buttons12"). Matching is case-insensitive.
func ParseOffset(name string) (Offset, error) {
	n := strings.TrimSpace(name)
	for _, a := range axisNames {
		if strings.EqualFold(a.name, n) {
			return a.offset, nil
		}
	}
	if idx, ok := indexSuffix(n, "PointOfViewControllers"); ok {
		return POVOffset(idx + 1)
	}
	if idx, ok := indexSuffix(n, "Buttons"); ok {
		return ButtonOffset(idx + 1)
	}
	return 0, fmt.Errorf("unknown offset name %q", name)
}

// indexSuffix parses "<prefix><n>" with n >= 0.
func indexSuffix(s, prefix string) (int, bool) {
	if len(s) <= len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(prefix):])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ResolveInput turns a symbolic rule input into an offset of the wanted class.
//
// Axis rules take axis names. Button and POV rules take 1-based indices
// ("1" is Buttons0). Canonical offset names are accepted for every class.
func ResolveInput(input string, want Class) (Offset, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("empty input")
	}

	var (
		off Offset
		err error
	)
	if n, convErr := strconv.Atoi(s); convErr == nil {
		switch want {
		case ClassButton:
			off, err = ButtonOffset(n)
		case ClassHat:
			off, err = POVOffset(n)
		default:
			return 0, fmt.Errorf("numeric input %q is not valid for %s rules", input, want)
		}
	} else {
		off, err = ParseOffset(s)
	}
	if err != nil {
		return 0, err
	}

	if got := off.Classify(); got != want {
		return 0, fmt.Errorf("input %q is a %s, expected a %s", input, got, want)
	}
	return off, nil
}
