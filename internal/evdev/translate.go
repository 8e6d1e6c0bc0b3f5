// Package evdev reads joysticks through the Linux input event interface and
// presents them as poll sources.
package evdev

import (
	"stickbridge/internal/convert"
	"stickbridge/internal/mapping"
)

// Linux input event codes (linux/input-event-codes.h).
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0x00

	absX        = 0x00
	absRudder   = 0x07
	absHat0X    = 0x10
	absHat3Y    = 0x17
	absMax      = 0x3f
	absCount    = absMax + 1
	btnMisc     = 0x100
	btnJoystick = 0x120
	btnThumbR   = 0x13e
	keyMax      = 0x2ff
	keyCount    = keyMax + 1
)

// inputEvent is struct input_event on 64-bit kernels:
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// absInfo is struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// axisOffsets maps ABS_X..ABS_RUDDER onto the stick axis offsets.
var axisOffsets = [...]mapping.Offset{
	mapping.OffsetX,
	mapping.OffsetY,
	mapping.OffsetZ,
	mapping.OffsetRotationX,
	mapping.OffsetRotationY,
	mapping.OffsetRotationZ,
	mapping.OffsetSliders0, // ABS_THROTTLE
	mapping.OffsetSliders1, // ABS_RUDDER
}

func testBit(bits []byte, n int) bool {
	i := n / 8
	return i < len(bits) && bits[i]&(1<<(uint(n)%8)) != 0
}

// buttonIndices numbers the keys present in keyBits the way joydev does:
// BTN_JOYSTICK..KEY_MAX first, then BTN_MISC..BTN_JOYSTICK-1.
func buttonIndices(keyBits []byte) map[uint16]int {
	idx := make(map[uint16]int)
	n := 0
	add := func(from, to int) {
		for code := from; code <= to && n < mapping.MaxButtons; code++ {
			if testBit(keyBits, code) {
				idx[uint16(code)] = n
				n++
			}
		}
	}
	add(btnJoystick, keyMax)
	add(btnMisc, btnJoystick-1)
	return idx
}

// isStick reports whether the capability bits look like a joystick or gamepad.
func isStick(evBits, absBits, keyBits []byte) bool {
	if testBit(evBits, evKey) {
		for code := btnJoystick; code <= btnThumbR; code++ {
			if testBit(keyBits, code) {
				return true
			}
		}
	}
	if testBit(evBits, evAbs) {
		for code := absX; code <= absRudder; code++ {
			if testBit(absBits, code) {
				return true
			}
		}
	}
	return false
}

// scaleAxis rescales v from info's range onto 0..65535.
func scaleAxis(v int32, info absInfo) int32 {
	span := int64(info.Maximum) - int64(info.Minimum)
	if span <= 0 {
		return convert.AxisCenter
	}
	scaled := (int64(v) - int64(info.Minimum)) * convert.AxisMax / span
	switch {
	case scaled < 0:
		return 0
	case scaled > convert.AxisMax:
		return convert.AxisMax
	}
	return int32(scaled)
}

func sign(v int32) int32 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// hatAngle converts a hat's x/y direction (y negative is up) into tenths of a
// degree clockwise from up, or -1 when centered.
func hatAngle(x, y int32) int32 {
	switch [2]int32{sign(x), sign(y)} {
	case [2]int32{0, -1}:
		return 0
	case [2]int32{1, -1}:
		return 4500
	case [2]int32{1, 0}:
		return 9000
	case [2]int32{1, 1}:
		return 13500
	case [2]int32{0, 1}:
		return 18000
	case [2]int32{-1, 1}:
		return 22500
	case [2]int32{-1, 0}:
		return 27000
	case [2]int32{-1, -1}:
		return 31500
	}
	return convert.PovCentered
}

// translator turns one device's kernel events into samples.
type translator struct {
	abs     map[uint16]absInfo
	buttons map[uint16]int
	hats    [mapping.MaxPOVs][2]int32
	pending [mapping.MaxPOVs]bool
}

func newTranslator(abs map[uint16]absInfo, keyBits []byte) *translator {
	return &translator{abs: abs, buttons: buttonIndices(keyBits)}
}

// translate appends the samples produced by ev to out. Axis and button
// changes produce a sample immediately; hat changes are combined and
// produced on the next SYN_REPORT.
func (t *translator) translate(ev inputEvent, out []mapping.Sample) []mapping.Sample {
	switch ev.Type {
	case evKey:
		i, ok := t.buttons[ev.Code]
		if !ok {
			return out
		}
		var v int32
		if ev.Value != 0 {
			v = convert.ButtonPressed
		}
		return append(out, mapping.Sample{Offset: mapping.OffsetButton0 + mapping.Offset(i), Value: v})

	case evAbs:
		switch {
		case ev.Code <= absRudder:
			info, ok := t.abs[ev.Code]
			if !ok {
				return out
			}
			return append(out, mapping.Sample{Offset: axisOffsets[ev.Code], Value: scaleAxis(ev.Value, info)})
		case ev.Code >= absHat0X && ev.Code <= absHat3Y:
			hat := (ev.Code - absHat0X) / 2
			t.hats[hat][(ev.Code-absHat0X)%2] = ev.Value
			t.pending[hat] = true
		}

	case evSyn:
		if ev.Code != synReport {
			return out
		}
		for i := range t.pending {
			if !t.pending[i] {
				continue
			}
			t.pending[i] = false
			out = append(out, mapping.Sample{
				Offset: mapping.OffsetPOV0 + mapping.Offset(4*i),
				Value:  hatAngle(t.hats[i][0], t.hats[i][1]),
			})
		}
	}
	return out
}
