package poll

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"stickbridge/internal/convert"
	"stickbridge/internal/mapping"
	"stickbridge/internal/output"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	src      *MemorySource
	registry *output.Registry
	poller   *Poller
}

func newFixture(t *testing.T, layouts []output.Layout, devices ...mapping.DeviceRules) *fixture {
	t.Helper()
	res, err := mapping.Resolve(&mapping.RuleSet{Devices: devices})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	reg, err := output.Build(layouts, res, output.AxisEveryTick)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	src := NewMemorySource(res.Devices()...)
	p, err := New(res, reg, src, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{src: src, registry: reg, poller: p}
}

func (f *fixture) device(t *testing.T, id output.ID) *output.Device {
	t.Helper()
	d, ok := f.registry.Lookup(id)
	if !ok {
		t.Fatalf("output device %q missing", id)
	}
	return d
}

func (f *fixture) inject(t *testing.T, device string, off mapping.Offset, v int32) {
	t.Helper()
	if err := f.src.Inject(device, mapping.Sample{Offset: off, Value: v}); err != nil {
		t.Fatalf("Inject: %v", err)
	}
}

func TestAxisToVectorEndToEnd(t *testing.T) {
	f := newFixture(t,
		[]output.Layout{{Name: "Joy", AxisSets: []output.AxisSetLayout{{Name: "XYZ", Axes: []string{"X", "Y", "Z"}}}}},
		mapping.DeviceRules{Device: "Stick1", Rules: []mapping.Rule{
			mapping.AxisToVectorComponent{Input: "X", OutputDevice: "Joy", OutputSet: "XYZ", OutputComponent: "X"},
		}},
	)

	var got []output.AxisSnapshot
	_ = f.device(t, "Joy").AddAxisSetCallback("XYZ", func(s output.AxisSnapshot) { got = append(got, s) })

	f.inject(t, "Stick1", mapping.OffsetX, 32767)
	if err := f.poller.PollOnce(); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(got))
	}
	x, _ := got[0].Value("X")
	if math.Abs(x) > 1e-9 {
		t.Fatalf("X = %v, want ~0", x)
	}
	if s := f.poller.Stats(); s.Samples != 1 || s.Applied != 1 || s.Ignored != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestUnmappedSampleIsIgnored(t *testing.T) {
	f := newFixture(t,
		[]output.Layout{{Name: "Joy", Buttons: []string{"Fire"}}},
		mapping.DeviceRules{Device: "Stick1", Rules: []mapping.Rule{
			mapping.ButtonToButton{Input: "1", OutputDevice: "Joy", OutputButton: "Fire"},
		}},
	)

	calls := 0
	joy := f.device(t, "Joy")
	_ = joy.AddButtonCallback("Fire", func(bool) { calls++ })
	before := joy.Snapshot()

	// Buttons5 exists on the device but no rule reads it.
	f.inject(t, "Stick1", mapping.OffsetButton0+5, 128)
	f.inject(t, "Stick1", mapping.OffsetY, 100)
	if err := f.poller.PollOnce(); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	if calls != 0 {
		t.Fatalf("callback invoked %d times for unmapped samples", calls)
	}
	after := joy.Snapshot()
	if after.Buttons[0] != before.Buttons[0] {
		t.Fatalf("output changed: %+v -> %+v", before, after)
	}
	if s := f.poller.Stats(); s.Ignored != 2 || s.Applied != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestButtonFiresEveryMatchingRule(t *testing.T) {
	f := newFixture(t,
		[]output.Layout{{
			Name:     "Throttle",
			AxisSets: []output.AxisSetLayout{{Name: "Thumb", Axes: []string{"X", "Y"}}},
			Scalars:  []string{"Trigger"},
			Buttons:  []string{"Fire"},
		}},
		mapping.DeviceRules{Device: "TWCS", Rules: []mapping.Rule{
			mapping.ButtonToVectorComponent{Input: "3", OutputDevice: "Throttle", OutputSet: "Thumb", OutputComponent: "Y", PressValue: 1},
			mapping.ButtonToButton{Input: "3", OutputDevice: "Throttle", OutputButton: "Fire"},
			mapping.ButtonToScalar{Input: "3", OutputDevice: "Throttle", OutputSet: "Trigger", PressValue: 0.8, ReleaseValue: 0.1},
		}},
	)

	th := f.device(t, "Throttle")
	var fire []bool
	_ = th.AddButtonCallback("Fire", func(v bool) { fire = append(fire, v) })

	btn, _ := mapping.ButtonOffset(3)
	f.inject(t, "TWCS", btn, 128)
	if err := f.poller.PollOnce(); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	snap := th.Snapshot()
	if y, _ := snap.Sets[0].Value("Y"); y != 1 {
		t.Fatalf("Thumb.Y = %v, want 1", y)
	}
	if v, _ := snap.Sets[1].Value("Trigger"); v != 0.8 {
		t.Fatalf("Trigger = %v, want 0.8", v)
	}
	if len(fire) != 1 || !fire[0] {
		t.Fatalf("Fire dispatches = %v", fire)
	}

	f.inject(t, "TWCS", btn, 0)
	_ = f.poller.PollOnce()
	snap = th.Snapshot()
	if y, _ := snap.Sets[0].Value("Y"); y != 0 {
		t.Fatalf("Thumb.Y after release = %v, want 0", y)
	}
	if v, _ := snap.Sets[1].Value("Trigger"); v != 0.1 {
		t.Fatalf("Trigger after release = %v, want 0.1", v)
	}
	if s := f.poller.Stats(); s.Applied != 6 {
		t.Fatalf("applied = %d, want 6", s.Applied)
	}
}

func TestAxisScalarAndPov(t *testing.T) {
	f := newFixture(t,
		[]output.Layout{{
			Name:     "Throttle",
			AxisSets: []output.AxisSetLayout{{Name: "Pad", Axes: []string{"X", "Y"}}},
			Scalars:  []string{"Value"},
		}},
		mapping.DeviceRules{Device: "TWCS", Rules: []mapping.Rule{
			mapping.AxisToScalar{Input: "Z", Invert: true, OutputDevice: "Throttle", Range: convert.RangeHigh},
			mapping.PovToTouchpad{Input: "1", OutputDevice: "Throttle", OutputSet: "Pad"},
		}},
	)

	f.inject(t, "TWCS", mapping.OffsetZ, 0)
	f.inject(t, "TWCS", mapping.OffsetPOV0, 9000)
	if err := f.poller.PollOnce(); err != nil {
		t.Fatalf("PollOnce: %v", err)
	}

	snap := f.device(t, "Throttle").Snapshot()
	pad := snap.Sets[0].Map()
	if pad["X"] != 1 || pad["Y"] != 0 {
		t.Fatalf("Pad = %v, want X=1 Y=0", pad)
	}
	// raw 0 -> -1, inverted -> 1, high half -> 1.
	if v, _ := snap.Sets[1].Value("Value"); v != 1 {
		t.Fatalf("Value = %v, want 1", v)
	}

	f.inject(t, "TWCS", mapping.OffsetPOV0, -1)
	_ = f.poller.PollOnce()
	pad = f.device(t, "Throttle").Snapshot().Sets[0].Map()
	if pad["X"] != 0 || pad["Y"] != 0 {
		t.Fatalf("centered Pad = %v", pad)
	}
}

func TestSamplesApplyInArrivalOrder(t *testing.T) {
	f := newFixture(t,
		[]output.Layout{{Name: "Joy", AxisSets: []output.AxisSetLayout{{Name: "XYZ", Axes: []string{"X", "Y", "Z"}}}}},
		mapping.DeviceRules{Device: "Stick1", Rules: []mapping.Rule{
			mapping.AxisToVectorComponent{Input: "X", OutputDevice: "Joy", OutputSet: "XYZ", OutputComponent: "X"},
		}},
	)
	f.inject(t, "Stick1", mapping.OffsetX, 0)
	f.inject(t, "Stick1", mapping.OffsetX, 65535)
	_ = f.poller.PollOnce()

	if x, _ := f.device(t, "Joy").Snapshot().Sets[0].Value("X"); x != 1 {
		t.Fatalf("X = %v, want last sample's value 1", x)
	}
}

func TestUnmappedOutputDeviceNeverFlushed(t *testing.T) {
	res, err := mapping.Resolve(&mapping.RuleSet{Devices: []mapping.DeviceRules{{Device: "Stick1", Rules: []mapping.Rule{
		mapping.AxisToVectorComponent{Input: "X", OutputDevice: "Joy", OutputSet: "XYZ", OutputComponent: "X"},
	}}}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	reg, err := output.Build([]output.Layout{{Name: "Joy", AxisSets: []output.AxisSetLayout{{Name: "XYZ", Axes: []string{"X"}}}}}, res, output.AxisEveryTick)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	extra := output.NewDevice("Spare", output.AxisEveryTick)
	_ = extra.AddAxisSet("S", []string{"V"})
	calls := 0
	_ = extra.AddAxisSetCallback("S", func(output.AxisSnapshot) { calls++ })
	_ = reg.Add(extra)

	p, err := New(res, reg, NewMemorySource("Stick1"), quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = p.PollOnce()
	if calls != 0 {
		t.Fatalf("unmapped output device flushed %d times", calls)
	}
}

func TestNewFailsOnMissingDevice(t *testing.T) {
	res, _ := mapping.Resolve(&mapping.RuleSet{Devices: []mapping.DeviceRules{{Device: "Stick1", Rules: []mapping.Rule{
		mapping.ButtonToButton{Input: "1", OutputDevice: "Joy", OutputButton: "Fire"},
	}}}})
	reg, err := output.Build([]output.Layout{{Name: "Joy", Buttons: []string{"Fire"}}}, res, output.AxisEveryTick)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	_, err = New(res, reg, NewMemorySource("Other"), quietLogger())
	var nf *DeviceNotFoundError
	if !errors.As(err, &nf) || nf.Name != "Stick1" {
		t.Fatalf("err = %v, want DeviceNotFoundError for Stick1", err)
	}
}

func TestNewFailsOnRegistryMismatch(t *testing.T) {
	res, _ := mapping.Resolve(&mapping.RuleSet{Devices: []mapping.DeviceRules{{Device: "Stick1", Rules: []mapping.Rule{
		mapping.AxisToVectorComponent{Input: "X", OutputDevice: "Joy", OutputSet: "XYZ", OutputComponent: "X"},
	}}}})

	// Registry built by hand, missing the component.
	reg := output.NewRegistry()
	d := output.NewDevice("Joy", output.AxisEveryTick)
	_ = d.AddAxisSet("XYZ", []string{"Y"})
	_ = reg.Add(d)

	_, err := New(res, reg, NewMemorySource("Stick1"), quietLogger())
	var mm *RegistryMismatchError
	if !errors.As(err, &mm) || mm.Device != "Joy" || mm.Set != "XYZ" || mm.Component != "X" {
		t.Fatalf("err = %v, want RegistryMismatchError for Joy/XYZ/X", err)
	}

	_, err = New(res, output.NewRegistry(), NewMemorySource("Stick1"), quietLogger())
	if !errors.As(err, &mm) || mm.Device != "Joy" {
		t.Fatalf("err = %v, want RegistryMismatchError for Joy", err)
	}
}

func TestGate(t *testing.T) {
	g := NewGate(false)
	if g.IsOpen() {
		t.Fatalf("gate should start closed")
	}
	if !g.Set(true) || !g.IsOpen() {
		t.Fatalf("opening should report a change")
	}
	if g.Set(true) {
		t.Fatalf("reopening should not report a change")
	}
}

type sizeRecorder struct {
	*MemorySource
	sizes map[string]int
}

func (s *sizeRecorder) Acquire(name string, bufferSize int) (Device, error) {
	s.sizes[name] = bufferSize
	return s.MemorySource.Acquire(name, bufferSize)
}

func TestNewBufferSize(t *testing.T) {
	res, _ := mapping.Resolve(&mapping.RuleSet{Devices: []mapping.DeviceRules{{Device: "Stick1", Rules: []mapping.Rule{
		mapping.ButtonToButton{Input: "1", OutputDevice: "Joy", OutputButton: "Fire"},
	}}}})
	reg, err := output.Build([]output.Layout{{Name: "Joy", Buttons: []string{"Fire"}}}, res, output.AxisEveryTick)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tests := []struct {
		opts []Option
		want int
	}{
		{nil, BufferSize},
		{[]Option{WithBufferSize(16)}, 16},
		{[]Option{WithBufferSize(0)}, BufferSize},
	}
	for _, tt := range tests {
		src := &sizeRecorder{MemorySource: NewMemorySource("Stick1"), sizes: map[string]int{}}
		if _, err := New(res, reg, src, quietLogger(), tt.opts...); err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := src.sizes["Stick1"]; got != tt.want {
			t.Fatalf("buffer size = %d, want %d", got, tt.want)
		}
	}
}
