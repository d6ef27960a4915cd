package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapcc/f5agent/internal/as3"
)

// loginDevice fakes the device's token endpoints.
type loginDevice struct {
	t        *testing.T
	token    string
	logins   atomic.Int32
	extends  atomic.Int32
	rejectAt int // reject the login with this status when non-zero
}

func (d *loginDevice) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == LoginPath:
			d.logins.Add(1)

			if d.rejectAt != 0 {
				w.WriteHeader(d.rejectAt)
				return
			}

			var body map[string]string
			require.NoError(d.t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(d.t, "admin", body["username"])
			assert.Equal(d.t, "tmos", body["loginProviderName"])

			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"token":{"token":%q}}`, d.token)

		case r.Method == http.MethodPatch && r.URL.Path == fmt.Sprintf(TokenPathFormat, d.token):
			d.extends.Add(1)
			assert.Equal(d.t, d.token, r.Header.Get(TokenHeader))

			var body map[string]string
			require.NoError(d.t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(d.t, "36000", body["timeout"])

			w.WriteHeader(http.StatusOK)

		default:
			d.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTokenProviderForTest(t *testing.T, device *loginDevice) (*TokenProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(device.handler())
	t.Cleanup(server.Close)

	base, err := url.Parse(server.URL)
	require.NoError(t, err)

	provider, err := NewTokenProvider(base, "admin", "secret")
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	return provider, server
}

func TestNewTokenProvider_RequiresUsername(t *testing.T) {
	base, _ := url.Parse("https://device.example")
	_, err := NewTokenProvider(base, "", "secret")
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestTokenProvider_ApplyLogsInLazily(t *testing.T) {
	device := &loginDevice{t: t, token: "tok-1"}
	provider, _ := newTokenProviderForTest(t, device)
	assert.Equal(t, KindToken, provider.Kind())

	req, err := http.NewRequest(http.MethodGet, "https://device.example", nil)
	require.NoError(t, err)

	require.NoError(t, provider.Apply(context.Background(), req))
	assert.Equal(t, "tok-1", req.Header.Get(TokenHeader))
	assert.Equal(t, int32(1), device.logins.Load())
	assert.Equal(t, int32(1), device.extends.Load())

	// The held token is reused; no second login.
	req2, err := http.NewRequest(http.MethodGet, "https://device.example", nil)
	require.NoError(t, err)
	require.NoError(t, provider.Apply(context.Background(), req2))
	assert.Equal(t, int32(1), device.logins.Load())
}

func TestTokenProvider_EmbedStampsTargetTokens(t *testing.T) {
	device := &loginDevice{t: t, token: "tok-2"}
	provider, _ := newTokenProviderForTest(t, device)

	decl := as3.NewDeclaration(as3.NewADC("test"))
	require.NoError(t, provider.Embed(context.Background(), decl))

	assert.Equal(t, map[string]string{TokenHeader: "tok-2"}, decl.TargetTokens)
	assert.Empty(t, decl.TargetUsername)
}

func TestTokenProvider_RefreshReplacesToken(t *testing.T) {
	device := &loginDevice{t: t, token: "tok-3"}
	provider, _ := newTokenProviderForTest(t, device)

	req, err := http.NewRequest(http.MethodGet, "https://device.example", nil)
	require.NoError(t, err)
	require.NoError(t, provider.Apply(context.Background(), req))

	device.token = "tok-4"
	require.NoError(t, provider.Refresh(context.Background()))

	req2, err := http.NewRequest(http.MethodGet, "https://device.example", nil)
	require.NoError(t, err)
	require.NoError(t, provider.Apply(context.Background(), req2))
	assert.Equal(t, "tok-4", req2.Header.Get(TokenHeader))
	assert.Equal(t, int32(2), device.logins.Load())
}

func TestTokenProvider_LoginRejected(t *testing.T) {
	device := &loginDevice{t: t, token: "tok-5", rejectAt: http.StatusUnauthorized}
	provider, _ := newTokenProviderForTest(t, device)

	req, err := http.NewRequest(http.MethodGet, "https://device.example", nil)
	require.NoError(t, err)

	err = provider.Apply(context.Background(), req)
	require.ErrorIs(t, err, ErrLoginFailed)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestTokenProvider_Closed(t *testing.T) {
	device := &loginDevice{t: t, token: "tok-6"}
	provider, _ := newTokenProviderForTest(t, device)
	require.NoError(t, provider.Close())

	assert.ErrorIs(t, provider.Refresh(context.Background()), ErrProviderClosed)
}
