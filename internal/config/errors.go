package config

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConfigError reports missing or invalid configuration. It is always
// fatal and is raised before any pass or external process runs.
type ConfigError struct {
	// Key is the configuration key at fault, e.g. "IOType" or
	// "AcceleratorConfig.Board".
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
}

// IsConfigError reports whether err is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func newConfigError(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Message: fmt.Sprintf(format, args...)}
}
