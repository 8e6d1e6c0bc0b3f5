package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"stickbridge/internal/mapping"
)

func parseYAML(data []byte) (*mapping.RuleSet, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &mapping.ConfigurationError{Err: fmt.Errorf("%w: empty file", mapping.ErrSourceMissing)}
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	var extra any
	if err := dec.Decode(&extra); err == nil {
		return nil, fmt.Errorf("parse yaml: multiple YAML documents are not supported")
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	return RuleSet(f.Devices)
}
