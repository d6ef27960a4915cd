package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sapcc/f5agent/internal/as3"
	"github.com/sapcc/f5agent/internal/observability"
)

// Device authentication endpoints.
const (
	// LoginPath issues auth tokens.
	LoginPath = "/mgmt/shared/authn/login"

	// TokenPathFormat addresses a single issued token.
	TokenPathFormat = "/mgmt/shared/authz/tokens/%s"

	// TokenHeader carries the auth token on requests.
	TokenHeader = "X-F5-Auth-Token"

	// loginProviderName is the device-side login provider.
	loginProviderName = "tmos"

	// tokenLifetimeSeconds is requested for issued tokens; the device
	// default of 20 minutes is too short for long deployments.
	tokenLifetimeSeconds = "36000"
)

// TokenProvider authenticates with a device-issued auth token,
// obtaining and refreshing it through the device's login endpoint.
type TokenProvider struct {
	base     *url.URL
	username string
	password string
	http     *http.Client
	logger   observability.Logger

	mu    sync.RWMutex
	token string

	closed atomic.Bool
}

// TokenOption is a functional option for configuring the provider.
type TokenOption func(*TokenProvider)

// WithTokenLogger sets the logger for the provider.
func WithTokenLogger(logger observability.Logger) TokenOption {
	return func(p *TokenProvider) {
		p.logger = logger
	}
}

// WithTokenHTTPClient sets the HTTP client used for login requests.
func WithTokenHTTPClient(client *http.Client) TokenOption {
	return func(p *TokenProvider) {
		p.http = client
	}
}

// NewTokenProvider creates a token provider for the device at base.
func NewTokenProvider(base *url.URL, username, password string, opts ...TokenOption) (*TokenProvider, error) {
	if username == "" {
		return nil, ErrNoCredentials
	}

	p := &TokenProvider{
		base:     base,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = p.logger.With(observability.String("device", base.Hostname()))

	return p, nil
}

// Kind returns KindToken.
func (p *TokenProvider) Kind() Kind { return KindToken }

// Apply sets the auth token header, logging in first if no token is
// held yet.
func (p *TokenProvider) Apply(ctx context.Context, req *http.Request) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}

	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	if token == "" {
		if err := p.Refresh(ctx); err != nil {
			return err
		}
		p.mu.RLock()
		token = p.token
		p.mu.RUnlock()
	}

	req.Header.Set(TokenHeader, token)
	return nil
}

// Embed stamps the auth token into the declaration's target tokens.
func (p *TokenProvider) Embed(ctx context.Context, decl *as3.Declaration) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}

	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	if token == "" {
		if err := p.Refresh(ctx); err != nil {
			return err
		}
		p.mu.RLock()
		token = p.token
		p.mu.RUnlock()
	}

	decl.TargetTokens = map[string]string{TokenHeader: token}
	return nil
}

// Refresh logs in to the device, stores the issued token and extends
// its lifetime.
func (p *TokenProvider) Refresh(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProviderClosed
	}

	authorizationsTotal.Inc()
	start := time.Now()

	err := p.login(ctx)

	authorizationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		authorizationExceptions.Inc()
		return err
	}

	p.logger.Debug("reauthorized",
		observability.Duration("duration", time.Since(start)),
	)
	return nil
}

// login performs the login round trip and the token lifetime patch.
func (p *TokenProvider) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username":          p.username,
		"password":          p.password,
		"loginProviderName": loginProviderName,
	})
	if err != nil {
		return NewAuthError("login", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(LoginPath), bytes.NewReader(body))
	if err != nil {
		return NewAuthError("login", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.username, p.password)

	resp, err := p.http.Do(req)
	if err != nil {
		return NewAuthError("login", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewAuthError("login", resp.StatusCode, ErrLoginFailed)
	}

	var loginResp struct {
		Token struct {
			Token string `json:"token"`
		} `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return NewAuthError("login", resp.StatusCode, err)
	}
	if loginResp.Token.Token == "" {
		return NewAuthError("login", resp.StatusCode, ErrLoginFailed)
	}

	p.mu.Lock()
	p.token = loginResp.Token.Token
	p.mu.Unlock()

	return p.extendTokenLifetime(ctx, loginResp.Token.Token)
}

// extendTokenLifetime patches the issued token's timeout. A failure
// here is not fatal: the token stays valid at the default lifetime.
func (p *TokenProvider) extendTokenLifetime(ctx context.Context, token string) error {
	body, err := json.Marshal(map[string]string{"timeout": tokenLifetimeSeconds})
	if err != nil {
		return NewAuthError("extend_token", 0, err)
	}

	path := fmt.Sprintf(TokenPathFormat, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, p.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return NewAuthError("extend_token", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TokenHeader, token)

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Warn("failed to extend token lifetime", observability.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("device rejected token lifetime extension",
			observability.Int("status", resp.StatusCode),
		)
	}
	return nil
}

// endpoint joins a device-management path with the device authority.
func (p *TokenProvider) endpoint(path string) string {
	u := url.URL{
		Scheme: p.base.Scheme,
		Host:   p.base.Host,
		Path:   path,
	}
	return u.String()
}

// Close marks the provider closed. The held token is left to expire on
// the device.
func (p *TokenProvider) Close() error {
	p.closed.Store(true)
	return nil
}

// Ensure TokenProvider implements Provider.
var _ Provider = (*TokenProvider)(nil)
