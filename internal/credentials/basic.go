package credentials

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/sapcc/f5agent/internal/as3"
	"github.com/sapcc/f5agent/internal/observability"
)

// BasicProvider authenticates every request with a username/passphrase
// pair.
type BasicProvider struct {
	username string
	password string
	logger   observability.Logger

	closed atomic.Bool
}

// BasicOption is a functional option for configuring the provider.
type BasicOption func(*BasicProvider)

// WithBasicLogger sets the logger for the provider.
func WithBasicLogger(logger observability.Logger) BasicOption {
	return func(p *BasicProvider) {
		p.logger = logger
	}
}

// NewBasicProvider creates a basic-auth provider.
func NewBasicProvider(username, password string, opts ...BasicOption) (*BasicProvider, error) {
	if username == "" {
		return nil, ErrNoCredentials
	}

	p := &BasicProvider{
		username: username,
		password: password,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Kind returns KindBasic.
func (p *BasicProvider) Kind() Kind { return KindBasic }

// Apply sets basic auth on the request.
func (p *BasicProvider) Apply(_ context.Context, req *http.Request) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}
	req.SetBasicAuth(p.username, p.password)
	return nil
}

// Embed stamps the username/passphrase pair into the declaration.
func (p *BasicProvider) Embed(_ context.Context, decl *as3.Declaration) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}
	decl.TargetUsername = p.username
	decl.TargetPassphrase = p.password
	return nil
}

// Refresh does nothing; basic credentials are static.
func (p *BasicProvider) Refresh(_ context.Context) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}
	return nil
}

// Close marks the provider closed.
func (p *BasicProvider) Close() error {
	p.closed.Store(true)
	return nil
}

// Ensure BasicProvider implements Provider.
var _ Provider = (*BasicProvider)(nil)
