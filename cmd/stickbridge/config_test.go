package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stickbridge/internal/mapping"
	"stickbridge/internal/output"
	"stickbridge/internal/settings"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
input:
  source: memory
  buffer_size: 64
devices:
  - name: Stick1
    rules:
      - type: axis_to_vector
        input: X
        device: Joystick
        set: StickXY
        component: X
      - type: button_to_button
        input: "1"
        device: Joystick
        button: Trigger
outputs:
  - name: Joystick
    axis_sets:
      - name: StickXY
        axes: [X, Y]
    buttons: [Trigger]
poll:
  update_hz: 60
  axis_dispatch: on_change
  start_enabled: false
state_ws:
  enabled: false
logging:
  level: debug
`

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.AxisDispatch() != output.AxisEveryTick {
		t.Fatalf("default axis dispatch = %v, want every_tick", cfg.AxisDispatch())
	}
}

func TestLoadConfigFile(t *testing.T) {
	cfg, err := LoadConfigFile(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Input.Source != inputSourceMemory || cfg.Input.BufferSize != 64 {
		t.Fatalf("input = %+v", cfg.Input)
	}
	// Unset keys keep their defaults.
	if cfg.Input.DeviceGlob == "" || cfg.IPC.SocketPath != defaultIPCSocket {
		t.Fatalf("defaults lost: glob=%q socket=%q", cfg.Input.DeviceGlob, cfg.IPC.SocketPath)
	}
	if cfg.Poll.UpdateHz != 60 || cfg.Poll.StartEnabled || cfg.AxisDispatch() != output.AxisOnChange {
		t.Fatalf("poll = %+v", cfg.Poll)
	}
	if len(cfg.Outputs) != 1 || cfg.Outputs[0].AxisSets[0].Axes[1] != "Y" {
		t.Fatalf("outputs = %+v", cfg.Outputs)
	}

	rs, err := cfg.RuleSet()
	if err != nil {
		t.Fatalf("RuleSet: %v", err)
	}
	resolved, err := mapping.Resolve(rs)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := resolved.Tables["Stick1"].ButtonButton(mapping.OffsetButton0); !ok {
		t.Fatalf("button rule not resolved")
	}
}

func TestLoadConfigFileRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown field", "poll:\n  update_hz: 30\n  bogus: 1\n", "bogus"},
		{"trailing document", "logging:\n  level: info\n---\nlogging:\n  level: debug\n", "trailing document"},
		{"bad yaml", "poll: [\n", "decode config yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}

	if _, err := LoadConfigFile(""); err == nil {
		t.Fatalf("empty path accepted")
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestFlagOverridesApply(t *testing.T) {
	cfg, err := LoadConfigFile(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	mappings := "rules.toml"
	hz := 30
	port := 0
	level := "warn"
	FlagOverrides{MappingsFile: &mappings, UpdateHz: &hz, WSPort: &port, LogLevel: &level}.Apply(&cfg)

	if cfg.MappingsFile != mappings || cfg.Devices != nil {
		t.Fatalf("mappings override: file=%q devices=%d", cfg.MappingsFile, len(cfg.Devices))
	}
	if cfg.Poll.UpdateHz != 30 || cfg.Logging.Level != "warn" {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Poll, cfg.Logging)
	}
	// Zero values are applied too.
	if cfg.StateWS.Port != 0 {
		t.Fatalf("ws port = %d, want 0", cfg.StateWS.Port)
	}
	// Nil pointers leave fields alone.
	if cfg.Input.Source != inputSourceMemory {
		t.Fatalf("input source changed to %q", cfg.Input.Source)
	}

	FlagOverrides{}.Apply(nil)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"source", func(c *Config) { c.Input.Source = "sdl" }, "input.source"},
		{"glob", func(c *Config) { c.Input.DeviceGlob = "[" }, "input.device_glob"},
		{"buffer", func(c *Config) { c.Input.BufferSize = 0 }, "input.buffer_size"},
		{"both rule sources", func(c *Config) {
			c.MappingsFile = "rules.yaml"
			c.Devices = make([]settings.DeviceEntry, 1)
		}, "mutually exclusive"},
		{"unnamed output", func(c *Config) { c.Outputs = []output.Layout{{}} }, "outputs[0].name"},
		{"duplicate output", func(c *Config) { c.Outputs = []output.Layout{{Name: "A"}, {Name: "A"}} }, "duplicate output"},
		{"update hz", func(c *Config) { c.Poll.UpdateHz = 0 }, "poll.update_hz"},
		{"update hz high", func(c *Config) { c.Poll.UpdateHz = maxUpdateHz + 1 }, "poll.update_hz"},
		{"dispatch", func(c *Config) { c.Poll.AxisDispatch = "sometimes" }, "poll.axis_dispatch"},
		{"socket", func(c *Config) { c.IPC.SocketPath = "" }, "ipc.socket_path"},
		{"ws port", func(c *Config) { c.StateWS.Port = 70000 }, "state_ws.port"},
		{"ws path", func(c *Config) { c.StateWS.Path = "ws" }, "state_ws.path"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}

	// A disabled websocket does not need a port.
	cfg := DefaultConfig()
	cfg.StateWS.Enabled = false
	cfg.StateWS.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled ws rejected: %v", err)
	}
}

func TestRuleSetFromMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MappingsFile = filepath.Join(t.TempDir(), "nope.xml")

	_, err := cfg.RuleSet()
	var cfgErr *mapping.ConfigurationError
	if !errors.As(err, &cfgErr) || !errors.Is(err, mapping.ErrSourceMissing) {
		t.Fatalf("err = %v, want ConfigurationError wrapping ErrSourceMissing", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"":           "",
		"/etc/x":     "/etc/x",
		"~":          home,
		"~/a/b.yaml": filepath.Join(home, "a/b.yaml"),
		"~other/x":   "~other/x",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Fatalf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"error", "WARN", "warning", "info", "debug"} {
		if _, err := parseLogLevel(s); err != nil {
			t.Fatalf("parseLogLevel(%q): %v", s, err)
		}
	}
	if _, err := parseLogLevel("verbose"); err == nil {
		t.Fatalf("parseLogLevel accepted verbose")
	}
}
