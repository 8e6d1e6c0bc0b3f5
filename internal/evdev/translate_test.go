package evdev

import (
	"reflect"
	"testing"

	"stickbridge/internal/mapping"
)

func bits(codes ...int) []byte {
	b := make([]byte, keyCount/8)
	for _, c := range codes {
		b[c/8] |= 1 << (uint(c) % 8)
	}
	return b
}

func TestButtonIndicesJoydevOrder(t *testing.T) {
	const btnA = 0x130 // BTN_SOUTH
	const btnB = 0x131
	const btn0 = 0x100 // BTN_0, in the misc range
	idx := buttonIndices(bits(btn0, btnB, btnJoystick, btnA))

	want := map[uint16]int{btnJoystick: 0, btnA: 1, btnB: 2, btn0: 3}
	if !reflect.DeepEqual(idx, want) {
		t.Fatalf("buttonIndices = %v, want %v", idx, want)
	}
}

func TestIsStick(t *testing.T) {
	ev := bits(evKey, evAbs)
	if !isStick(ev, nil, bits(btnJoystick)) {
		t.Fatalf("joystick trigger button should qualify")
	}
	if !isStick(ev, bits(absX), nil) {
		t.Fatalf("ABS_X should qualify")
	}
	// A keyboard: keys only, none in the joystick range.
	if isStick(bits(evKey), nil, bits(30, 31)) {
		t.Fatalf("keyboard should not qualify")
	}
}

func TestScaleAxis(t *testing.T) {
	info := absInfo{Minimum: -512, Maximum: 511}
	tests := []struct {
		in, want int32
	}{
		{-512, 0},
		{511, 65535},
		{-1000, 0},
		{1000, 65535},
	}
	for _, tt := range tests {
		if got := scaleAxis(tt.in, info); got != tt.want {
			t.Fatalf("scaleAxis(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := scaleAxis(5, absInfo{}); got != 32767 {
		t.Fatalf("degenerate range = %d, want center", got)
	}
}

func TestTranslateAxisAndButton(t *testing.T) {
	tr := newTranslator(map[uint16]absInfo{1: {Minimum: 0, Maximum: 255}}, bits(btnJoystick, btnJoystick+1))

	var out []mapping.Sample
	out = tr.translate(inputEvent{Type: evAbs, Code: 1, Value: 255}, out)
	out = tr.translate(inputEvent{Type: evAbs, Code: 0, Value: 10}, out) // no absinfo, ignored
	out = tr.translate(inputEvent{Type: evKey, Code: btnJoystick + 1, Value: 1}, out)
	out = tr.translate(inputEvent{Type: evKey, Code: btnJoystick + 1, Value: 0}, out)
	out = tr.translate(inputEvent{Type: evKey, Code: 0x2ff, Value: 1}, out) // not present

	want := []mapping.Sample{
		{Offset: mapping.OffsetY, Value: 65535},
		{Offset: mapping.OffsetButton0 + 1, Value: 128},
		{Offset: mapping.OffsetButton0 + 1, Value: 0},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("samples = %+v, want %+v", out, want)
	}
}

func TestTranslateHatOnSync(t *testing.T) {
	tr := newTranslator(nil, nil)

	var out []mapping.Sample
	out = tr.translate(inputEvent{Type: evAbs, Code: absHat0X, Value: 1}, out)
	out = tr.translate(inputEvent{Type: evAbs, Code: absHat0X + 1, Value: -1}, out)
	if len(out) != 0 {
		t.Fatalf("hat emitted before SYN_REPORT: %+v", out)
	}
	out = tr.translate(inputEvent{Type: evSyn, Code: synReport}, out)
	out = tr.translate(inputEvent{Type: evSyn, Code: synReport}, out)

	// Second hat, centered again.
	out = tr.translate(inputEvent{Type: evAbs, Code: absHat0X + 2, Value: 0}, out)
	out = tr.translate(inputEvent{Type: evSyn, Code: synReport}, out)

	want := []mapping.Sample{
		{Offset: mapping.OffsetPOV0, Value: 4500},
		{Offset: mapping.OffsetPOV0 + 4, Value: -1},
	}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("samples = %+v, want %+v", out, want)
	}
}

func TestHatAngle(t *testing.T) {
	tests := []struct {
		x, y, want int32
	}{
		{0, 0, -1},
		{0, -1, 0},
		{1, 0, 9000},
		{0, 1, 18000},
		{-1, 0, 27000},
		{-1, -1, 31500},
		{5, 7, 13500},
	}
	for _, tt := range tests {
		if got := hatAngle(tt.x, tt.y); got != tt.want {
			t.Fatalf("hatAngle(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestIOCEncoding(t *testing.T) {
	// Values from linux/input.h on x86_64.
	if got := eviocgname(256); got != 0x81004506 {
		t.Fatalf("EVIOCGNAME(256) = %#x", got)
	}
	if got := eviocgbit(evKey, keyCount/8); got != 0x80604521 {
		t.Fatalf("EVIOCGBIT(EV_KEY) = %#x", got)
	}
	if got := eviocgabs(absX); got != 0x80184540 {
		t.Fatalf("EVIOCGABS(ABS_X) = %#x", got)
	}
}
