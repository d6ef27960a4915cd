package as3

import (
	"slices"

	"github.com/sapcc/f5agent/internal/config"
)

// authModeMap maps listener client-authentication settings to the
// appliance's authenticationMode values. The mapping is total only
// over these three settings.
var authModeMap = map[string]string{
	ClientAuthNone:      "ignore",
	ClientAuthOptional:  "request",
	ClientAuthMandatory: "require",
}

// TLSBuilder translates listeners and pools into TLS profile objects,
// applying the configured profile defaults.
type TLSBuilder struct {
	serverOpts config.TLSServerOptions
	clientOpts config.TLSClientOptions
}

// NewTLSBuilder creates a TLSBuilder with the given profile defaults.
func NewTLSBuilder(serverOpts config.TLSServerOptions, clientOpts config.TLSClientOptions) *TLSBuilder {
	return &TLSBuilder{
		serverOpts: serverOpts,
		clientOpts: clientOpts,
	}
}

// BuildServerTLS builds the server-side TLS profile for a listener.
//
// certificateIDs are de-duplicated. When trustCA is set, both trust
// and invite CA fields reference it and the authentication mode is
// derived from the listener's client authentication setting; a setting
// outside the mapping yields a ConfigurationError.
func (b *TLSBuilder) BuildServerTLS(certificateIDs []string, listener *Listener, trustCA string) (*ServerTLS, error) {
	profile := &ServerTLS{
		Class:        ClassTLSServer,
		Certificates: dedupeCertificates(certificateIDs),
		Ciphers:      listener.TLSCiphers,
	}

	if trustCA != "" {
		mode, ok := authModeMap[listener.ClientAuthentication]
		if !ok {
			return nil, NewConfigurationError("client authentication", listener.ClientAuthentication)
		}
		profile.AuthenticationTrustCA = trustCA
		profile.AuthenticationInviteCA = trustCA
		profile.AuthenticationMode = mode
	}

	profile.ForwardProxyEnabled = b.serverOpts.ForwardProxy
	profile.ForwardProxyBypassEnabled = b.serverOpts.ForwardProxyBypass
	profile.InsertEmptyFragmentsEnabled = b.serverOpts.InsertEmptyFragments
	profile.SingleUseDhEnabled = b.serverOpts.SingleUseDH
	profile.CacheCertificateEnabled = b.serverOpts.CacheCertificate
	profile.StaplerOCSPEnabled = b.serverOpts.StaplerOCSP

	// Version flags are independent per version; allow-listing happens
	// upstream in the API layer.
	profile.SSL3Enabled = slices.Contains(listener.TLSVersions, VersionSSL3)
	profile.TLS1_0Enabled = slices.Contains(listener.TLSVersions, VersionTLS1_0)
	profile.TLS1_1Enabled = slices.Contains(listener.TLSVersions, VersionTLS1_1)
	profile.TLS1_2Enabled = slices.Contains(listener.TLSVersions, VersionTLS1_2)
	profile.TLS1_3Enabled = slices.Contains(listener.TLSVersions, VersionTLS1_3)

	return profile, nil
}

// BuildClientTLS builds the client-side TLS profile for a pool.
//
// When trustCA is set the profile references it as an existing device
// object and enables certificate validation. A cipher override is
// emitted only when the configured defaults carry one.
func (b *TLSBuilder) BuildClientTLS(pool *Pool, trustCA, clientCert, crlFile string) (*ClientTLS, error) {
	profile := &ClientTLS{
		Class: ClassTLSClient,
	}

	if trustCA != "" {
		profile.TrustCA = &Pointer{BigIP: trustCA}
		validate := true
		profile.ValidateCertificate = &validate
	}
	if clientCert != "" {
		profile.ClientCertificate = clientCert
	}
	if crlFile != "" {
		profile.CRLFile = crlFile
	}

	if b.clientOpts.DefaultCiphers != "" {
		profile.Ciphers = b.clientOpts.DefaultCiphers
	}

	profile.ForwardProxyEnabled = b.clientOpts.ForwardProxy
	profile.ForwardProxyBypassEnabled = b.clientOpts.ForwardProxyBypass
	profile.InsertEmptyFragmentsEnabled = b.clientOpts.InsertEmptyFragments
	profile.SingleUseDhEnabled = b.clientOpts.SingleUseDH

	profile.SSL3Enabled = slices.Contains(pool.TLSVersions, VersionSSL3)
	profile.TLS1_0Enabled = slices.Contains(pool.TLSVersions, VersionTLS1_0)
	profile.TLS1_1Enabled = slices.Contains(pool.TLSVersions, VersionTLS1_1)
	profile.TLS1_2Enabled = slices.Contains(pool.TLSVersions, VersionTLS1_2)
	profile.TLS1_3Enabled = slices.Contains(pool.TLSVersions, VersionTLS1_3)

	return profile, nil
}

// dedupeCertificates turns certificate ids into references with set
// semantics, keeping first-seen order.
func dedupeCertificates(certificateIDs []string) []Certificate {
	seen := make(map[string]struct{}, len(certificateIDs))
	certs := make([]Certificate, 0, len(certificateIDs))
	for _, id := range certificateIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		certs = append(certs, Certificate{Certificate: id})
	}
	return certs
}
