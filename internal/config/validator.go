package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ValidateConfig validates an AgentConfig.
func ValidateConfig(cfg *AgentConfig) error {
	var errs ValidationErrors

	if cfg == nil {
		return ValidationErrors{{Message: "configuration is nil"}}
	}

	if len(cfg.Agent.DeviceURLs) == 0 {
		errs = append(errs, ValidationError{
			Path:    "agent.deviceUrls",
			Message: "at least one device URL is required",
		})
	}

	for i, raw := range cfg.Agent.DeviceURLs {
		path := fmt.Sprintf("agent.deviceUrls[%d]", i)
		u, err := url.Parse(raw)
		if err != nil {
			errs = append(errs, ValidationError{Path: path, Message: err.Error()})
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("unsupported scheme %q, must be http or https", u.Scheme),
			})
		}
		if u.Host == "" {
			errs = append(errs, ValidationError{Path: path, Message: "missing host"})
		}
	}

	if cfg.Agent.ExternalProcessorURL != "" {
		u, err := url.Parse(cfg.Agent.ExternalProcessorURL)
		if err != nil {
			errs = append(errs, ValidationError{
				Path:    "agent.externalProcessorUrl",
				Message: err.Error(),
			})
		} else if u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Path:    "agent.externalProcessorUrl",
				Message: "must be an absolute URL",
			})
		}
	}

	if cfg.Agent.TaskPollInterval < 0 {
		errs = append(errs, ValidationError{
			Path:    "agent.taskPollInterval",
			Message: "must not be negative",
		})
	}

	if cfg.Agent.AsyncTaskTimeout < 0 {
		errs = append(errs, ValidationError{
			Path:    "agent.asyncTaskTimeout",
			Message: "must not be negative",
		})
	}

	if cfg.Vault != nil && cfg.Vault.Enabled && cfg.Vault.Address == "" {
		errs = append(errs, ValidationError{
			Path:    "vault.address",
			Message: "required when vault is enabled",
		})
	}

	if cb := cfg.Agent.CircuitBreaker; cb != nil && cb.Enabled && cb.Threshold < 0 {
		errs = append(errs, ValidationError{
			Path:    "agent.circuitBreaker.threshold",
			Message: "must not be negative",
		})
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
