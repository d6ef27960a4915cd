package adminserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(":0")

	rec := doRequest(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestReadyz_WithoutProbe(t *testing.T) {
	s := New(":0")

	rec := doRequest(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_ProbeOutcome(t *testing.T) {
	probeErr := errors.New("device unreachable")
	var failing bool

	s := New(":0", WithReadyProbe(func(_ context.Context) error {
		if failing {
			return probeErr
		}
		return nil
	}))

	rec := doRequest(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")

	failing = true
	rec = doRequest(t, s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "device unreachable")
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(":0")

	rec := doRequest(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
