package as3client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapcc/f5agent/internal/as3"
	"github.com/sapcc/f5agent/internal/credentials"
)

// externalFixture is a device plus an external processor in front of
// its declaration endpoints.
type externalFixture struct {
	client   *Client
	device   *httptest.Server
	external *httptest.Server
}

func newExternalFixture(t *testing.T, creds credentials.Provider, deviceHandler, externalHandler http.HandlerFunc) *externalFixture {
	t.Helper()

	device := httptest.NewServer(deviceHandler)
	t.Cleanup(device.Close)
	external := httptest.NewServer(externalHandler)
	t.Cleanup(external.Close)

	client, err := New(
		Target{URL: mustParseURL(t, device.URL)},
		creds,
		WithExternalProcessor(mustParseURL(t, external.URL)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &externalFixture{client: client, device: device, external: external}
}

func decodeDeclaration(t *testing.T, r *http.Request) *as3.Declaration {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var decl as3.Declaration
	require.NoError(t, json.Unmarshal(body, &decl))
	return &decl
}

func TestExternal_PostRoutedToProcessorWithTargetStamp(t *testing.T) {
	var deviceHits atomic.Int32
	var got atomic.Pointer[as3.Declaration]

	creds, err := credentials.NewBasicProvider("admin", "secret")
	require.NoError(t, err)

	fx := newExternalFixture(t, creds,
		func(w http.ResponseWriter, _ *http.Request) {
			deviceHits.Add(1)
			w.WriteHeader(http.StatusOK)
		},
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, DeclarePath+"/tenant-a", r.URL.Path)
			got.Store(decodeDeclaration(t, r))
			w.WriteHeader(http.StatusOK)
		},
	)

	_, err = fx.client.Post(context.Background(), []string{"tenant-a"}, as3.NewDeclaration(as3.NewADC("test")))
	require.NoError(t, err)
	assert.Zero(t, deviceHits.Load(), "declaration traffic must bypass the device")

	decl := got.Load()
	require.NotNil(t, decl)
	assert.Equal(t, mustParseURL(t, fx.device.URL).Hostname(), decl.TargetHost)
	assert.Equal(t, "admin", decl.TargetUsername)
	assert.Equal(t, "secret", decl.TargetPassphrase)
	assert.Equal(t, as3.ActionDeploy, decl.Action)
}

func TestExternal_PatchReexpressedAsPost(t *testing.T) {
	var got atomic.Pointer[as3.Declaration]

	fx := newExternalFixture(t, nil,
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, DeclarePath, r.URL.Path)
			got.Store(decodeDeclaration(t, r))
			w.WriteHeader(http.StatusOK)
		},
	)

	_, err := fx.client.Patch(context.Background(), []as3.PatchOperation{
		{Op: "remove", Path: "/tenant-a"},
	})
	require.NoError(t, err)

	decl := got.Load()
	require.NotNil(t, decl)
	assert.Equal(t, as3.ActionPatch, decl.Action)
	require.Len(t, decl.PatchBody, 1)
	assert.Equal(t, "/tenant-a", decl.PatchBody[0].Path)
}

func TestExternal_DeleteReexpressedAsPost(t *testing.T) {
	var got atomic.Pointer[as3.Declaration]

	fx := newExternalFixture(t, nil,
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, DeclarePath+"/tenant-a", r.URL.Path)
			got.Store(decodeDeclaration(t, r))
			w.WriteHeader(http.StatusOK)
		},
	)

	_, err := fx.client.Delete(context.Background(), []string{"tenant-a"})
	require.NoError(t, err)

	decl := got.Load()
	require.NotNil(t, decl)
	assert.Equal(t, as3.ActionRemove, decl.Action)
}

func TestExternal_DeleteEmptyTenantsStillRefused(t *testing.T) {
	var hits atomic.Int32
	counting := func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}

	fx := newExternalFixture(t, nil, counting, counting)

	_, err := fx.client.Delete(context.Background(), nil)
	require.ErrorIs(t, err, ErrDeleteAllTenants)
	assert.Zero(t, hits.Load())
}

func TestExternal_InfoStaysOnDevice(t *testing.T) {
	var externalHits atomic.Int32

	fx := newExternalFixture(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, InfoPath, r.URL.Path)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"version":"3.19.0"}`))
		},
		func(w http.ResponseWriter, _ *http.Request) {
			externalHits.Add(1)
			w.WriteHeader(http.StatusOK)
		},
	)

	info, err := fx.client.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.19.0", info.Version)
	assert.Zero(t, externalHits.Load(), "management traffic never touches the processor")
}

func TestDirectStrategy_Resolve(t *testing.T) {
	s := &directStrategy{device: mustParseURL(t, "https://device.example:443")}

	assert.Equal(t, "https://device.example:443"+DeclarePath, s.resolve(DeclarePath, classDeclaration))
	assert.Equal(t, "https://device.example:443"+InfoPath, s.resolve(InfoPath, classManagement))
	assert.False(t, s.reexpressVerbs())
}

func TestExternalStrategy_ResolveByClass(t *testing.T) {
	s := &externalStrategy{
		device:   mustParseURL(t, "https://device.example"),
		external: mustParseURL(t, "http://processor.example:8080"),
	}

	assert.Equal(t, "http://processor.example:8080"+DeclarePath, s.resolve(DeclarePath, classDeclaration))
	assert.Equal(t, "https://device.example"+InfoPath, s.resolve(InfoPath, classManagement))
	assert.True(t, s.reexpressVerbs())
}
