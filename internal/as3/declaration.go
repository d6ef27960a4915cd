package as3

// Declaration actions understood by the appliance.
const (
	// ActionDeploy deploys the embedded declaration.
	ActionDeploy = "deploy"

	// ActionPatch applies the embedded patch body.
	ActionPatch = "patch"

	// ActionRemove removes the addressed tenants.
	ActionRemove = "remove"
)

// Document classes.
const (
	ClassAS3       = "AS3"
	ClassADC       = "ADC"
	ClassTenant    = "Tenant"
	ClassTLSServer = "TLS_Server"
	ClassTLSClient = "TLS_Client"
)

// Declaration is the outer AS3 document envelope.
//
// The target* fields are only populated when declarations are routed
// through an external processing service, which uses them to
// authenticate against the device on the caller's behalf.
type Declaration struct {
	Class   string `json:"class,omitempty"`
	Action  string `json:"action,omitempty"`
	Persist *bool  `json:"persist,omitempty"`

	// Declaration is the desired-state ADC document for deploy actions.
	Declaration ADC `json:"declaration,omitempty"`

	// PatchBody carries the operations for patch actions.
	PatchBody []PatchOperation `json:"patchBody,omitempty"`

	TargetHost       string            `json:"targetHost,omitempty"`
	TargetUsername   string            `json:"targetUsername,omitempty"`
	TargetPassphrase string            `json:"targetPassphrase,omitempty"`
	TargetTokens     map[string]string `json:"targetTokens,omitempty"`
}

// NewDeclaration returns a deploy declaration wrapping the given ADC
// document.
func NewDeclaration(adc ADC) *Declaration {
	return &Declaration{
		Class:       ClassAS3,
		Action:      ActionDeploy,
		Declaration: adc,
	}
}

// NewPatchDeclaration returns a patch declaration carrying the given
// operations.
func NewPatchDeclaration(patchBody []PatchOperation) *Declaration {
	return &Declaration{
		Class:     ClassAS3,
		Action:    ActionPatch,
		PatchBody: patchBody,
	}
}

// NewRemoveDeclaration returns a remove declaration. The tenants to
// remove are addressed through the request URL, not the document.
func NewRemoveDeclaration() *Declaration {
	return &Declaration{
		Class:  ClassAS3,
		Action: ActionRemove,
	}
}

// ADC is the desired-state configuration document. The full schema is
// out of scope; tenants and their applications are assembled by the
// orchestration layer and carried opaquely.
type ADC map[string]interface{}

// NewADC returns an ADC document envelope with the given id.
func NewADC(id string) ADC {
	return ADC{
		"class":         ClassADC,
		"schemaVersion": "3.19.0",
		"id":            id,
	}
}

// SetTenant embeds a tenant document under its scope name.
func (a ADC) SetTenant(name string, tenant interface{}) {
	a[name] = tenant
}

// PatchOperation is a single JSON-patch style operation of a patch
// declaration.
type PatchOperation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// Pointer references an object that already exists on the device.
type Pointer struct {
	BigIP string `json:"bigip"`
}

// Certificate references an AS3 certificate object by id.
type Certificate struct {
	Certificate string `json:"certificate"`
}

// ServerTLS is the server-side (inbound) TLS profile object.
//
// Optional toggles are pointers so an unset configuration value stays
// absent from the emitted JSON instead of degrading to false.
type ServerTLS struct {
	Class        string        `json:"class"`
	Certificates []Certificate `json:"certificates"`
	Ciphers      string        `json:"ciphers,omitempty"`

	AuthenticationTrustCA  string `json:"authenticationTrustCA,omitempty"`
	AuthenticationInviteCA string `json:"authenticationInviteCA,omitempty"`
	AuthenticationMode     string `json:"authenticationMode,omitempty"`

	ForwardProxyEnabled         *bool `json:"forwardProxyEnabled,omitempty"`
	ForwardProxyBypassEnabled   *bool `json:"forwardProxyBypassEnabled,omitempty"`
	InsertEmptyFragmentsEnabled *bool `json:"insertEmptyFragmentsEnabled,omitempty"`
	SingleUseDhEnabled          *bool `json:"singleUseDhEnabled,omitempty"`
	CacheCertificateEnabled     *bool `json:"cacheCertificateEnabled,omitempty"`
	StaplerOCSPEnabled          *bool `json:"staplerOCSPEnabled,omitempty"`

	SSL3Enabled   bool `json:"ssl3Enabled"`
	TLS1_0Enabled bool `json:"tls1_0Enabled"`
	TLS1_1Enabled bool `json:"tls1_1Enabled"`
	TLS1_2Enabled bool `json:"tls1_2Enabled"`
	TLS1_3Enabled bool `json:"tls1_3Enabled"`
}

// ClientTLS is the client-side (outbound) TLS profile object.
type ClientTLS struct {
	Class string `json:"class"`

	TrustCA             *Pointer `json:"trustCA,omitempty"`
	ValidateCertificate *bool    `json:"validateCertificate,omitempty"`
	ClientCertificate   string   `json:"clientCertificate,omitempty"`
	CRLFile             string   `json:"crlFile,omitempty"`
	Ciphers             string   `json:"ciphers,omitempty"`

	ForwardProxyEnabled         *bool `json:"forwardProxyEnabled,omitempty"`
	ForwardProxyBypassEnabled   *bool `json:"forwardProxyBypassEnabled,omitempty"`
	InsertEmptyFragmentsEnabled *bool `json:"insertEmptyFragmentsEnabled,omitempty"`
	SingleUseDhEnabled          *bool `json:"singleUseDhEnabled,omitempty"`

	SSL3Enabled   bool `json:"ssl3Enabled"`
	TLS1_0Enabled bool `json:"tls1_0Enabled"`
	TLS1_1Enabled bool `json:"tls1_1Enabled"`
	TLS1_2Enabled bool `json:"tls1_2Enabled"`
	TLS1_3Enabled bool `json:"tls1_3Enabled"`
}
