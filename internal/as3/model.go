package as3

// Client authentication settings of a listener.
const (
	ClientAuthNone      = "NONE"
	ClientAuthOptional  = "OPTIONAL"
	ClientAuthMandatory = "MANDATORY"
)

// Protocol version identifiers used in TLS version allow-lists.
const (
	VersionSSL3   = "SSLv3"
	VersionTLS1_0 = "TLSv1"
	VersionTLS1_1 = "TLSv1.1"
	VersionTLS1_2 = "TLSv1.2"
	VersionTLS1_3 = "TLSv1.3"
)

// Listener is the read-only slice of the domain listener the TLS
// builder consumes. The broader object model is owned by the
// orchestration layer.
type Listener struct {
	ID                   string
	TLSCiphers           string
	TLSVersions          []string
	ClientAuthentication string
}

// Pool is the read-only slice of the domain pool the TLS builder
// consumes.
type Pool struct {
	ID          string
	TLSVersions []string
}

// Object name prefixes for TLS profiles.
const (
	prefixTLSListener = "tls_listener_"
	prefixTLSPool     = "tls_pool_"
)

// ListenerTLSName returns the object name for a listener's TLS profile.
func ListenerTLSName(listenerID string) string {
	return prefixTLSListener + listenerID
}

// PoolTLSName returns the object name for a pool's TLS profile.
func PoolTLSName(poolID string) string {
	return prefixTLSPool + poolID
}
