package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyPipeline = "pipeline"
	keyLogging  = "logging"
	keyMetrics  = "metrics"
	keyRequires = "requires"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyPipeline: true,
	keyLogging:  true,
	keyMetrics:  true,
	keyRequires: true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Within a known section, fields present in the overlay
// replace the target's values and absent fields keep them. Sections absent
// in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", overlayPath, err)
	}

	// Discover which top-level keys are present in the overlay.
	var overlay map[string]interface{}
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("%w: parsing YAML from %s: %w", ErrInvalidConfig, overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, value := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}

		// Re-marshal the single section so we can unmarshal it onto the
		// strongly-typed target field.
		sectionBytes, marshalErr := yaml.Marshal(value)
		if marshalErr != nil {
			return fmt.Errorf("re-marshalling config section %q: %w", key, marshalErr)
		}

		if err = unmarshalSection(target, key, sectionBytes); err != nil {
			return fmt.Errorf("%w: section %q in %s: %w", ErrInvalidConfig, key, overlayPath, err)
		}
	}

	return nil
}

// unmarshalSection decodes one section onto the matching field of target.
// Sections are structs of scalars, so decoding onto the existing value keeps
// defaults for fields the overlay omits.
func unmarshalSection(target *Config, key string, data []byte) error {
	switch key {
	case keyPipeline:
		return yaml.Unmarshal(data, &target.Pipeline)
	case keyLogging:
		return yaml.Unmarshal(data, &target.Logging)
	case keyMetrics:
		return yaml.Unmarshal(data, &target.Metrics)
	case keyRequires:
		var v string
		if err := yaml.Unmarshal(data, &v); err != nil {
			return err
		}
		target.Requires = v
		return nil
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}
