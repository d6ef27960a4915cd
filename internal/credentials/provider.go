// Package credentials supplies device authentication for the delivery
// client: either a basic-auth principal or a bearer token obtained
// from the device's login endpoint, optionally sourced from Vault.
package credentials

import (
	"context"
	"net/http"

	"github.com/sapcc/f5agent/internal/as3"
)

// Kind identifies the active credential mechanism.
type Kind string

const (
	// KindBasic authenticates every request with basic auth.
	KindBasic Kind = "basic"

	// KindToken authenticates with a device-issued auth token.
	KindToken Kind = "token"

	// KindNone performs no authentication.
	KindNone Kind = "none"
)

// Provider supplies credentials for a single device.
type Provider interface {
	// Kind returns the credential mechanism.
	Kind() Kind

	// Apply applies authentication to an outgoing HTTP request.
	Apply(ctx context.Context, req *http.Request) error

	// Embed stamps target credentials into a declaration so an
	// external processor can authenticate to the device on the
	// caller's behalf.
	Embed(ctx context.Context, decl *as3.Declaration) error

	// Refresh refreshes the credentials if the mechanism supports it.
	Refresh(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

// NopProvider is a provider that does nothing.
type NopProvider struct{}

// Kind returns KindNone.
func (p *NopProvider) Kind() Kind { return KindNone }

// Apply does nothing.
func (p *NopProvider) Apply(_ context.Context, _ *http.Request) error { return nil }

// Embed does nothing.
func (p *NopProvider) Embed(_ context.Context, _ *as3.Declaration) error { return nil }

// Refresh does nothing.
func (p *NopProvider) Refresh(_ context.Context) error { return nil }

// Close does nothing.
func (p *NopProvider) Close() error { return nil }

// Ensure NopProvider implements Provider.
var _ Provider = (*NopProvider)(nil)
