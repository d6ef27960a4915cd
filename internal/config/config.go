// Package config defines the agent configuration model and its loader.
package config

import "time"

// Default agent settings.
const (
	// DefaultTaskPollInterval is the interval between task status polls.
	DefaultTaskPollInterval = 5 * time.Second

	// DefaultAsyncTaskTimeout bounds the caller's wait for an async task.
	DefaultAsyncTaskTimeout = 90 * time.Second

	// DefaultMetricsListenAddress is the default admin/metrics listen address.
	DefaultMetricsListenAddress = ":8000"
)

// AgentConfig is the root configuration for the agent.
type AgentConfig struct {
	// Agent holds device and delivery settings.
	Agent AgentOptions `yaml:"agent" json:"agent"`

	// TLSServer holds defaults applied to server-side TLS profiles.
	TLSServer TLSServerOptions `yaml:"tlsServer,omitempty" json:"tlsServer,omitempty"`

	// TLSClient holds defaults applied to client-side TLS profiles.
	TLSClient TLSClientOptions `yaml:"tlsClient,omitempty" json:"tlsClient,omitempty"`

	// Logging configures the structured logger.
	Logging LoggingOptions `yaml:"logging,omitempty" json:"logging,omitempty"`

	// Tracing configures the OTLP trace exporter.
	Tracing TracingOptions `yaml:"tracing,omitempty" json:"tracing,omitempty"`

	// Vault configures the optional Vault credential source.
	Vault *VaultOptions `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// AgentOptions holds device and delivery settings.
type AgentOptions struct {
	// DeviceURLs lists the devices this agent delivers declarations to.
	// Basic-auth credentials may be embedded in the URL userinfo.
	DeviceURLs []string `yaml:"deviceUrls" json:"deviceUrls"`

	// VerifyTLS enables TLS certificate verification towards the device.
	VerifyTLS bool `yaml:"verifyTls" json:"verifyTls"`

	// TokenAuth enables token authentication against the device.
	// Defaults to true; set to false for plain basic auth.
	TokenAuth *bool `yaml:"tokenAuth,omitempty" json:"tokenAuth,omitempty"`

	// Async enables asynchronous declaration submission with task polling.
	Async bool `yaml:"async,omitempty" json:"async,omitempty"`

	// ExternalProcessorURL redirects declaration traffic to a separately
	// hosted processing service. Device-management traffic stays on-device.
	ExternalProcessorURL string `yaml:"externalProcessorUrl,omitempty" json:"externalProcessorUrl,omitempty"`

	// TaskPollInterval is the interval between task status polls.
	TaskPollInterval Duration `yaml:"taskPollInterval,omitempty" json:"taskPollInterval,omitempty"`

	// AsyncTaskTimeout bounds the caller's wait for an async task.
	AsyncTaskTimeout Duration `yaml:"asyncTaskTimeout,omitempty" json:"asyncTaskTimeout,omitempty"`

	// MetricsListenAddress is the admin/metrics server listen address.
	MetricsListenAddress string `yaml:"metricsListenAddress,omitempty" json:"metricsListenAddress,omitempty"`

	// Debug enables request/response debug logging on the delivery client.
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty"`

	// CircuitBreaker enables a circuit breaker around delivery operations.
	CircuitBreaker *CircuitBreakerOptions `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// GetTokenAuth returns the effective token-auth setting.
func (o *AgentOptions) GetTokenAuth() bool {
	if o.TokenAuth == nil {
		return true
	}
	return *o.TokenAuth
}

// GetTaskPollInterval returns the effective task poll interval.
func (o *AgentOptions) GetTaskPollInterval() time.Duration {
	if o.TaskPollInterval <= 0 {
		return DefaultTaskPollInterval
	}
	return time.Duration(o.TaskPollInterval)
}

// GetAsyncTaskTimeout returns the effective async task timeout.
func (o *AgentOptions) GetAsyncTaskTimeout() time.Duration {
	if o.AsyncTaskTimeout <= 0 {
		return DefaultAsyncTaskTimeout
	}
	return time.Duration(o.AsyncTaskTimeout)
}

// GetMetricsListenAddress returns the effective metrics listen address.
func (o *AgentOptions) GetMetricsListenAddress() string {
	if o.MetricsListenAddress == "" {
		return DefaultMetricsListenAddress
	}
	return o.MetricsListenAddress
}

// TLSOptions holds defaults shared by server and client TLS profiles.
//
// Optional booleans are pointers: nil means the option is not set and
// the corresponding field must be omitted from built profiles, which is
// not the same as false.
type TLSOptions struct {
	// DefaultCiphers is a cipher string applied when set.
	DefaultCiphers string `yaml:"defaultCiphers,omitempty" json:"defaultCiphers,omitempty"`

	// ForwardProxy enables SSL forward proxy.
	ForwardProxy *bool `yaml:"forwardProxy,omitempty" json:"forwardProxy,omitempty"`

	// ForwardProxyBypass enables SSL forward proxy bypass.
	ForwardProxyBypass *bool `yaml:"forwardProxyBypass,omitempty" json:"forwardProxyBypass,omitempty"`

	// InsertEmptyFragments enables the CBC cipher countermeasure for
	// SSL 3.0 / TLS 1.0.
	InsertEmptyFragments *bool `yaml:"insertEmptyFragments,omitempty" json:"insertEmptyFragments,omitempty"`

	// SingleUseDH creates a new key for each use of temporary or
	// ephemeral DH parameters.
	SingleUseDH *bool `yaml:"singleUseDh,omitempty" json:"singleUseDh,omitempty"`
}

// TLSServerOptions holds defaults for server-side TLS profiles.
type TLSServerOptions struct {
	TLSOptions `yaml:",inline" json:",inline"`

	// CacheCertificate enables caching certificates by address and port.
	CacheCertificate *bool `yaml:"cacheCertificate,omitempty" json:"cacheCertificate,omitempty"`

	// StaplerOCSP enables OCSP stapling.
	StaplerOCSP *bool `yaml:"staplerOcsp,omitempty" json:"staplerOcsp,omitempty"`
}

// TLSClientOptions holds defaults for client-side TLS profiles.
type TLSClientOptions struct {
	TLSOptions `yaml:",inline" json:",inline"`
}

// LoggingOptions configures the structured logger.
type LoggingOptions struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is the log output format (json, console).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Output is the output destination (stdout, stderr).
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingOptions configures the OTLP trace exporter.
type TracingOptions struct {
	// Enabled enables tracing.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// OTLPEndpoint is the OTLP/gRPC collector endpoint.
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`

	// SamplingRate is the trace sampling rate between 0 and 1.
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
}

// VaultOptions configures the Vault credential source.
type VaultOptions struct {
	// Enabled enables reading device passphrases from Vault.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Address is the Vault server address.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	// Token authenticates against Vault. Supports ${VAR} substitution.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`

	// Mount is the KV v2 mount point holding device secrets.
	Mount string `yaml:"mount,omitempty" json:"mount,omitempty"`

	// PathPrefix prefixes the device hostname to form the secret path.
	PathPrefix string `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty"`
}

// CircuitBreakerOptions configures the delivery circuit breaker.
type CircuitBreakerOptions struct {
	// Enabled enables the circuit breaker.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Threshold is the number of requests observed before the failure
	// ratio can trip the breaker.
	Threshold int `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Timeout is how long the breaker stays open before probing again.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DefaultConfig returns an AgentConfig with default values.
func DefaultConfig() *AgentConfig {
	return &AgentConfig{
		Agent: AgentOptions{
			TaskPollInterval:     Duration(DefaultTaskPollInterval),
			AsyncTaskTimeout:     Duration(DefaultAsyncTaskTimeout),
			MetricsListenAddress: DefaultMetricsListenAddress,
		},
		Logging: LoggingOptions{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
