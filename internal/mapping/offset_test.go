package mapping

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		off  Offset
		want Class
	}{
		{OffsetX, ClassAxis},
		{OffsetSliders1, ClassAxis},
		{OffsetPOV0, ClassHat},
		{MaxHatOffset, ClassHat},
		{OffsetButton0, ClassButton},
		{MaxButtonOffset, ClassButton},
		{MaxButtonOffset + 1, ClassUnknown},
		{-1, ClassUnknown},
	}
	for _, tt := range tests {
		if got := tt.off.Classify(); got != tt.want {
			t.Fatalf("Classify(%d) = %v, want %v", int(tt.off), got, tt.want)
		}
	}
}

func TestOffsetNamesRoundTrip(t *testing.T) {
	for _, name := range []string{"X", "RotationZ", "Sliders1", "PointOfViewControllers3", "Buttons0", "Buttons127"} {
		off, err := ParseOffset(name)
		if err != nil {
			t.Fatalf("ParseOffset(%q): %v", name, err)
		}
		if off.String() != name {
			t.Fatalf("ParseOffset(%q).String() = %q", name, off.String())
		}
	}
	if _, err := ParseOffset("Buttons128"); err == nil {
		t.Fatalf("Buttons128 should be out of range")
	}
	if _, err := ParseOffset("PointOfViewControllers4"); err == nil {
		t.Fatalf("PointOfViewControllers4 should be out of range")
	}
}

func TestResolveInput(t *testing.T) {
	tests := []struct {
		in      string
		class   Class
		want    Offset
		wantErr bool
	}{
		{"X", ClassAxis, OffsetX, false},
		{"sliders0", ClassAxis, OffsetSliders0, false},
		{"1", ClassButton, OffsetButton0, false},
		{"128", ClassButton, MaxButtonOffset, false},
		{"Buttons5", ClassButton, OffsetButton0 + 5, false},
		{"1", ClassHat, OffsetPOV0, false},
		{"4", ClassHat, MaxHatOffset, false},
		{"0", ClassButton, 0, true},
		{"3", ClassAxis, 0, true},
		{"X", ClassButton, 0, true},
		{"PointOfViewControllers0", ClassAxis, 0, true},
		{"", ClassAxis, 0, true},
	}
	for _, tt := range tests {
		got, err := ResolveInput(tt.in, tt.class)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ResolveInput(%q, %v) err = %v, wantErr %v", tt.in, tt.class, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ResolveInput(%q, %v) = %v, want %v", tt.in, tt.class, got, tt.want)
		}
	}
}
