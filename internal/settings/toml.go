package settings

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"stickbridge/internal/mapping"
)

func parseTOML(data []byte) (*mapping.RuleSet, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse toml: unknown keys: %s", strings.Join(keys, ", "))
	}
	return RuleSet(f.Devices)
}
