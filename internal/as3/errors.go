package as3

import (
	"errors"
	"fmt"
)

// ErrUnknownClientAuthentication indicates a client authentication
// setting outside the supported mapping.
var ErrUnknownClientAuthentication = errors.New("as3: unknown client authentication setting")

// ConfigurationError indicates a domain object carried a value the
// appliance contract has no mapping for. It is fatal to the single
// document build and is not retried.
type ConfigurationError struct {
	Setting string
	Value   string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("as3: no mapping for %s value %q", e.Setting, e.Value)
}

// Is reports whether the error matches ErrUnknownClientAuthentication.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrUnknownClientAuthentication
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(setting, value string) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Value: value}
}
