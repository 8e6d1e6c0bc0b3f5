// Package settings loads mapping rules from YAML, TOML or XML files.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"stickbridge/internal/convert"
	"stickbridge/internal/mapping"
)

// Rule types accepted in YAML and TOML rule files and in the daemon config.
const (
	TypeAxisToVector   = "axis_to_vector"
	TypeAxisToScalar   = "axis_to_scalar"
	TypeButtonToVector = "button_to_vector"
	TypeButtonToButton = "button_to_button"
	TypeButtonToScalar = "button_to_scalar"
	TypePovToTouchpad  = "pov_to_touchpad"
)

// File is the YAML/TOML rule file layout.
type File struct {
	Devices []DeviceEntry `yaml:"devices" toml:"devices"`
}

// DeviceEntry lists the rules for one physical device.
type DeviceEntry struct {
	Name  string      `yaml:"name" toml:"name"`
	Rules []RuleEntry `yaml:"rules" toml:"rules"`
}

// RuleEntry is the flat, typed form of one rule. Which fields apply depends on Type.
type RuleEntry struct {
	Type      string  `yaml:"type" toml:"type"`
	Input     Input   `yaml:"input" toml:"input"`
	Invert    bool    `yaml:"invert,omitempty" toml:"invert"`
	Device    string  `yaml:"device" toml:"device"`
	Set       string  `yaml:"set,omitempty" toml:"set"`
	Component string  `yaml:"component,omitempty" toml:"component"`
	Button    string  `yaml:"button,omitempty" toml:"button"`
	Range     string  `yaml:"range,omitempty" toml:"range"`
	Press     float64 `yaml:"press,omitempty" toml:"press"`
	Release   float64 `yaml:"release,omitempty" toml:"release"`
}

// Input names a control: an offset name like "X" or "Buttons0", or a 1-based
// button or hat index. TOML files may give the index as a bare integer.
type Input string

// UnmarshalTOML accepts a string or an integer.
func (in *Input) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		*in = Input(v)
	case int64:
		*in = Input(strconv.FormatInt(v, 10))
	default:
		return fmt.Errorf("input must be a string or integer, got %T", v)
	}
	return nil
}

// Rule converts e into its mapping rule variant.
func (e RuleEntry) Rule() (mapping.Rule, error) {
	input := string(e.Input)
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case TypeAxisToVector:
		return mapping.AxisToVectorComponent{
			Input: input, Invert: e.Invert,
			OutputDevice: e.Device, OutputSet: e.Set, OutputComponent: e.Component,
		}, nil
	case TypeAxisToScalar:
		r, err := convert.ParseRange(e.Range)
		if err != nil {
			return nil, err
		}
		return mapping.AxisToScalar{
			Input: input, Invert: e.Invert,
			OutputDevice: e.Device, OutputSet: e.Set, Range: r,
		}, nil
	case TypeButtonToVector:
		return mapping.ButtonToVectorComponent{
			Input:        input,
			OutputDevice: e.Device, OutputSet: e.Set, OutputComponent: e.Component,
			PressValue: e.Press, ReleaseValue: e.Release,
		}, nil
	case TypeButtonToButton:
		return mapping.ButtonToButton{Input: input, OutputDevice: e.Device, OutputButton: e.Button}, nil
	case TypeButtonToScalar:
		return mapping.ButtonToScalar{
			Input:        input,
			OutputDevice: e.Device, OutputSet: e.Set,
			PressValue: e.Press, ReleaseValue: e.Release,
		}, nil
	case TypePovToTouchpad:
		return mapping.PovToTouchpad{Input: input, OutputDevice: e.Device, OutputSet: e.Set}, nil
	default:
		return nil, fmt.Errorf("unknown rule type %q", e.Type)
	}
}

// RuleSet converts device entries into a mapping.RuleSet. An unknown rule
// type or range yields a *mapping.ConfigurationError.
func RuleSet(devices []DeviceEntry) (*mapping.RuleSet, error) {
	rs := &mapping.RuleSet{Devices: make([]mapping.DeviceRules, 0, len(devices))}
	for _, d := range devices {
		dr := mapping.DeviceRules{Device: d.Name, Rules: make([]mapping.Rule, 0, len(d.Rules))}
		for _, e := range d.Rules {
			r, err := e.Rule()
			if err != nil {
				return nil, &mapping.ConfigurationError{Device: d.Name, Kind: e.Type, Input: string(e.Input), Err: err}
			}
			dr.Rules = append(dr.Rules, r)
		}
		rs.Devices = append(rs.Devices, dr)
	}
	return rs, nil
}

// Load reads a rule file, choosing the format by extension: .yaml/.yml,
// .toml or .xml. A missing file is a *mapping.ConfigurationError wrapping
// mapping.ErrSourceMissing.
func Load(path string) (*mapping.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &mapping.ConfigurationError{Err: fmt.Errorf("%w: %s not found", mapping.ErrSourceMissing, path)}
		}
		return nil, fmt.Errorf("read mappings file: %w", err)
	}

	var rs *mapping.RuleSet
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		rs, err = parseYAML(data)
	case ".toml":
		rs, err = parseTOML(data)
	case ".xml":
		rs, err = parseXML(data)
	default:
		return nil, fmt.Errorf("mappings file %s: unsupported extension %q (want .yaml, .yml, .toml or .xml)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("mappings file %s: %w", path, err)
	}
	return rs, nil
}
