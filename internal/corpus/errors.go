package corpus

import (
	"errors"
	"fmt"
)

// Configuration data errors.
var (
	ErrEmptyWhitelist        = errors.New("whitelist contains no characters")
	ErrMalformedSubstitution = errors.New("substitution line must have the form SOURCE:TARGET")
	ErrEmptySource           = errors.New("substitution source is empty")
)

// ConfigError reports a problem in a whitelist or substitution file.
// Line is 1-based; 0 means the error applies to the whole file.
type ConfigError struct {
	Path string
	Line int
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
