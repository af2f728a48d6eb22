package config

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrIncompatibleVersion is returned when the running binary does not
// satisfy the config's requires constraint.
var ErrIncompatibleVersion = errors.New("incompatible corpusfork version")

func parseConstraint(raw string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: requires %q: %w", ErrInvalidConfig, raw, err)
	}
	return c, nil
}

// CheckCompatibility verifies version against the requires constraint.
// Development builds whose version does not parse are always accepted.
func (c *Config) CheckCompatibility(version string) error {
	if c.Requires == "" {
		return nil
	}
	constraint, err := parseConstraint(c.Requires)
	if err != nil {
		return err
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return nil //nolint:nilerr // unversioned dev builds skip the check
	}
	if ok, reasons := constraint.Validate(v); !ok {
		return fmt.Errorf("%w: %s does not satisfy %q: %w",
			ErrIncompatibleVersion, v, c.Requires, errors.Join(reasons...))
	}
	return nil
}
