package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watcherConfigV1 = `
agent:
  deviceUrls: [https://bigip-1.example]
`

const watcherConfigV2 = `
agent:
  deviceUrls: [https://bigip-1.example]
tlsServer:
  defaultCiphers: "ECDHE+AESGCM"
`

const watcherConfigBroken = `
agent:
  deviceUrls: [ftp://bigip-1.example]
`

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeConfigFile(t, path, watcherConfigV1)

	reloaded := make(chan struct{}, 1)
	watcher, err := NewWatcher(path, func(cfg *AgentConfig) {
		assert.Equal(t, "ECDHE+AESGCM", cfg.TLSServer.DefaultCiphers)
		reloaded <- struct{}{}
	}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	require.NotNil(t, watcher.Config())
	assert.Empty(t, watcher.Config().TLSServer.DefaultCiphers)

	writeConfigFile(t, path, watcherConfigV2)
	waitFor(t, reloaded, "reload callback")

	assert.Equal(t, "ECDHE+AESGCM", watcher.Config().TLSServer.DefaultCiphers)
}

func TestWatcher_InvalidReloadKeepsLastConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeConfigFile(t, path, watcherConfigV1)

	failed := make(chan struct{}, 1)
	watcher, err := NewWatcher(path,
		func(*AgentConfig) { t.Error("reload callback must not fire for invalid config") },
		WithDebounceDelay(10*time.Millisecond),
		WithErrorCallback(func(err error) {
			assert.Error(t, err)
			failed <- struct{}{}
		}),
	)
	require.NoError(t, err)

	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	writeConfigFile(t, path, watcherConfigBroken)
	waitFor(t, failed, "error callback")

	assert.Equal(t, []string{"https://bigip-1.example"}, watcher.Config().Agent.DeviceURLs)
}

func TestWatcher_StartValidatesInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeConfigFile(t, path, watcherConfigBroken)

	watcher, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer watcher.watcher.Close()

	require.Error(t, watcher.Start(context.Background()))
}
