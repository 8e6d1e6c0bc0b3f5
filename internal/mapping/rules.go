package mapping

import "stickbridge/internal/convert"

// Sample is one buffered reading from a physical device.
type Sample struct {
	Offset Offset `json:"offset"`
	Value  int32  `json:"value"`
}

// Kind names a rule variant.
type Kind int

const (
	KindAxisVector Kind = iota
	KindAxisScalar
	KindButtonVector
	KindButtonButton
	KindButtonScalar
	KindPovTouchpad
)

func (k Kind) String() string {
	switch k {
	case KindAxisVector:
		return "AxisToVectorComponent"
	case KindAxisScalar:
		return "AxisToScalar"
	case KindButtonVector:
		return "ButtonToVectorComponent"
	case KindButtonButton:
		return "ButtonToButton"
	case KindButtonScalar:
		return "ButtonToScalar"
	case KindPovTouchpad:
		return "PovToTouchpad"
	default:
		return "UnknownRule"
	}
}

// Class is the offset range a rule of this kind reads from.
func (k Kind) Class() Class {
	switch k {
	case KindAxisVector, KindAxisScalar:
		return ClassAxis
	case KindButtonVector, KindButtonButton, KindButtonScalar:
		return ClassButton
	case KindPovTouchpad:
		return ClassHat
	default:
		return ClassUnknown
	}
}

// DefaultScalarSet is the set name scalar rules write to when none is given.
const DefaultScalarSet = "Value"

// Touchpad components written by PovToTouchpad rules.
const (
	TouchpadX = "X"
	TouchpadY = "Y"
)

// Rule is one input-to-output translation. The set of rule types is closed.
type Rule interface {
	Kind() Kind
	InputName() string
	ruleMarker()
}

// AxisToVectorComponent writes a converted axis into one component of an axis set.
type AxisToVectorComponent struct {
	Input           string
	Invert          bool
	OutputDevice    string
	OutputSet       string
	OutputComponent string
}

// AxisToScalar writes a converted axis into a single-value set, optionally
// remapped onto half of the range.
type AxisToScalar struct {
	Input        string
	Invert       bool
	OutputDevice string
	OutputSet    string
	Range        convert.Range
}

// ButtonToVectorComponent writes PressValue or ReleaseValue into one component.
type ButtonToVectorComponent struct {
	Input           string
	OutputDevice    string
	OutputSet       string
	OutputComponent string
	PressValue      float64
	ReleaseValue    float64
}

// ButtonToButton mirrors a physical button onto an output button.
type ButtonToButton struct {
	Input        string
	OutputDevice string
	OutputButton string
}

// ButtonToScalar writes PressValue or ReleaseValue into a single-value set.
type ButtonToScalar struct {
	Input        string
	OutputDevice string
	OutputSet    string
	PressValue   float64
	ReleaseValue float64
}

// PovToTouchpad writes the hat direction into the X and Y components of a set.
type PovToTouchpad struct {
	Input        string
	OutputDevice string
	OutputSet    string
}

func (AxisToVectorComponent) Kind() Kind   { return KindAxisVector }
func (AxisToScalar) Kind() Kind            { return KindAxisScalar }
func (ButtonToVectorComponent) Kind() Kind { return KindButtonVector }
func (ButtonToButton) Kind() Kind          { return KindButtonButton }
func (ButtonToScalar) Kind() Kind          { return KindButtonScalar }
func (PovToTouchpad) Kind() Kind           { return KindPovTouchpad }

func (r AxisToVectorComponent) InputName() string   { return r.Input }
func (r AxisToScalar) InputName() string            { return r.Input }
func (r ButtonToVectorComponent) InputName() string { return r.Input }
func (r ButtonToButton) InputName() string          { return r.Input }
func (r ButtonToScalar) InputName() string          { return r.Input }
func (r PovToTouchpad) InputName() string           { return r.Input }

func (AxisToVectorComponent) ruleMarker()   {}
func (AxisToScalar) ruleMarker()            {}
func (ButtonToVectorComponent) ruleMarker() {}
func (ButtonToButton) ruleMarker()          {}
func (ButtonToScalar) ruleMarker()          {}
func (PovToTouchpad) ruleMarker()           {}

// DeviceRules groups the rules read from one physical device.
type DeviceRules struct {
	Device string
	Rules  []Rule
}

// RuleSet is the whole declarative mapping, in configuration order.
// Entries naming the same device are merged.
type RuleSet struct {
	Devices []DeviceRules
}
