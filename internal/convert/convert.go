// Package convert turns raw device samples into normalized output values.
package convert

import (
	"fmt"
	"math"
	"strings"
)

const (
	// AxisMax is the raw value devices report at full deflection.
	AxisMax = 65535
	// AxisCenter is the raw value that converts to 0 on a full-range axis.
	AxisCenter = 32767

	// ButtonPressed is the raw value of a held button.
	ButtonPressed = 128

	// PovCentered is the raw hat value when no direction is held.
	PovCentered = -1
)

// Range selects which part of [-1,1] an axis is remapped onto.
type Range int

const (
	RangeFull Range = iota // [-1, 1]
	RangeHigh              // [0, 1]
	RangeLow               // [-1, 0]
)

func (r Range) String() string {
	switch r {
	case RangeHigh:
		return "High"
	case RangeLow:
		return "Low"
	default:
		return "Full"
	}
}

// ParseRange accepts "Full", "High" or "Low" (case-insensitive). Empty means Full.
func ParseRange(s string) (Range, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return RangeFull, nil
	case "high":
		return RangeHigh, nil
	case "low":
		return RangeLow, nil
	default:
		return RangeFull, fmt.Errorf("invalid mapping range %q (must be Full, High or Low)", s)
	}
}

// Axis converts a raw axis reading.
//
// AxisMax maps to exactly 1.0; anything else is raw/32767 - 1. Inversion is
// applied before the range remap.
func Axis(raw int32, invert bool, r Range) float64 {
	var v float64
	if raw == AxisMax {
		v = 1
	} else {
		v = float64(raw)/AxisCenter - 1
	}
	if invert {
		v = -v
	}
	switch r {
	case RangeHigh:
		v = v/2 + 0.5
	case RangeLow:
		v = v/2 - 0.5
	}
	return v
}

// Pressed reports whether a raw button value means held.
func Pressed(raw int32) bool {
	return raw == ButtonPressed
}

// ButtonValue returns press when the raw button value is held, release otherwise.
func ButtonValue(raw int32, press, release float64) float64 {
	if Pressed(raw) {
		return press
	}
	return release
}

// Vector2 is a 2D direction. Y points up.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

var diag = math.Sqrt(0.5)

// Pov converts a hat reading (tenths of a degree clockwise from up) into a
// direction. Centered and any angle outside the eight 45 degree steps map to
// the zero vector.
func Pov(raw int32) Vector2 {
	switch raw {
	case 0:
		return Vector2{0, 1}
	case 4500:
		return Vector2{diag, diag}
	case 9000:
		return Vector2{1, 0}
	case 13500:
		return Vector2{diag, -diag}
	case 18000:
		return Vector2{0, -1}
	case 22500:
		return Vector2{-diag, -diag}
	case 27000:
		return Vector2{-1, 0}
	case 31500:
		return Vector2{-diag, diag}
	default:
		return Vector2{}
	}
}
