package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"stickbridge/internal/evdev"
	"stickbridge/internal/mapping"
	"stickbridge/internal/output"
	"stickbridge/internal/poll"
	"stickbridge/internal/settings"
)

// Config is the top-level YAML configuration for the stickbridge daemon.
//
// Rules come either from an external file (mappings_file) or inline under
// devices, never both. Output device layouts always live here.
type Config struct {
	Input InputConfig `yaml:"input"`

	// Optional external rule file (.yaml, .yml, .toml or .xml)
	MappingsFile string `yaml:"mappings_file,omitempty"`

	// Inline rules, used when mappings_file is empty
	Devices []settings.DeviceEntry `yaml:"devices,omitempty"`

	// Output device layouts
	Outputs []output.Layout `yaml:"outputs"`

	Poll    PollConfig    `yaml:"poll"`
	IPC     IPCConfig     `yaml:"ipc"`
	StateWS StateWSConfig `yaml:"state_ws"`
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	Source     string `yaml:"source"` // "evdev" or "memory"
	DeviceGlob string `yaml:"device_glob"`
	BufferSize int    `yaml:"buffer_size"`
}

type PollConfig struct {
	UpdateHz     int    `yaml:"update_hz"`
	AxisDispatch string `yaml:"axis_dispatch"` // "every_tick" or "on_change"
	StartEnabled bool   `yaml:"start_enabled"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go and the usage text.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Source:     inputSourceEvdev,
			DeviceGlob: evdev.DefaultGlob,
			BufferSize: poll.BufferSize,
		},
		Poll: PollConfig{
			UpdateHz:     defaultUpdateHz,
			AxisDispatch: output.AxisEveryTick.String(),
			StartEnabled: true,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		StateWS: StateWSConfig{
			Enabled: true,
			Port:    defaultStateWSPort,
			Path:    defaultStateWSPath,
		},
		Logging: LoggingConfig{
			Level: string(LogLevelInfo),
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
// Unknown fields are rejected, and so is a second YAML document.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document.
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	} else if !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	return cfg, nil
}

// FlagOverrides carries the command-line flags that were explicitly set.
// A nil pointer means "not given".
type FlagOverrides struct {
	MappingsFile  *string
	InputSource   *string
	UpdateHz      *int
	IPCSocketPath *string
	WSPort        *int
	LogLevel      *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even
// when it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.MappingsFile != nil {
		cfg.MappingsFile = *o.MappingsFile
		// A rule file on the command line replaces inline rules.
		if *o.MappingsFile != "" {
			cfg.Devices = nil
		}
	}
	if o.InputSource != nil {
		cfg.Input.Source = *o.InputSource
	}
	if o.UpdateHz != nil {
		cfg.Poll.UpdateHz = *o.UpdateHz
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSPort != nil {
		cfg.StateWS.Port = *o.WSPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Input
	switch c.Input.Source {
	case inputSourceEvdev:
		if c.Input.DeviceGlob == "" {
			return errors.New("input.device_glob must not be empty")
		}
		if _, err := filepath.Match(c.Input.DeviceGlob, ""); err != nil {
			return fmt.Errorf("input.device_glob: %w", err)
		}
	case inputSourceMemory:
	default:
		return fmt.Errorf("input.source must be %q or %q", inputSourceEvdev, inputSourceMemory)
	}
	if c.Input.BufferSize <= 0 || c.Input.BufferSize > maxBufferSize {
		return fmt.Errorf("input.buffer_size must be between 1 and %d", maxBufferSize)
	}

	// Rules
	if c.MappingsFile != "" && len(c.Devices) > 0 {
		return errors.New("mappings_file and devices are mutually exclusive")
	}

	// Outputs
	seen := make(map[string]bool, len(c.Outputs))
	for i, l := range c.Outputs {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("outputs[%d].name must not be empty", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("outputs[%d]: duplicate output device %q", i, l.Name)
		}
		seen[l.Name] = true
	}

	// Poll
	if c.Poll.UpdateHz <= 0 || c.Poll.UpdateHz > maxUpdateHz {
		return fmt.Errorf("poll.update_hz must be between 1 and %d", maxUpdateHz)
	}
	if _, err := output.ParseAxisDispatch(c.Poll.AxisDispatch); err != nil {
		return fmt.Errorf("poll.axis_dispatch: %w", err)
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// State websocket
	if c.StateWS.Enabled {
		if c.StateWS.Port <= 0 || c.StateWS.Port > 65535 {
			return errors.New("state_ws.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(c.StateWS.Path, "/") {
			return errors.New("state_ws.path must start with /")
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// AxisDispatch returns the validated axis dispatch policy.
func (c *Config) AxisDispatch() output.AxisDispatch {
	p, _ := output.ParseAxisDispatch(c.Poll.AxisDispatch)
	return p
}

// RuleSet loads the mapping rules from mappings_file or the inline devices.
func (c *Config) RuleSet() (*mapping.RuleSet, error) {
	if c.MappingsFile != "" {
		return settings.Load(ExpandPath(c.MappingsFile))
	}
	return settings.RuleSet(c.Devices)
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
