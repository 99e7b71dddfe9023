package main

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/faultline/internal/config"
	"github.com/scrypster/faultline/internal/notify"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Storage.DataPath = t.TempDir()
	return cfg
}

func startTest(t *testing.T, cfg *config.Config) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	addr, cleanup, err := start(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
		cleanup()
	})
	return addr
}

func TestStart_Routes(t *testing.T) {
	addr := startTest(t, testConfig(t))

	resp, err := http.Get("http://" + addr + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// WebSocket upgrade fails via GET, but route exists (400 not 404)
	resp, err = http.Get("http://" + addr + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "go_goroutines")
	assert.Contains(t, string(data), "faultline_storage_breaker_state 0")
}

// TestStart_ForwardsEventFiles simulates a faultline-mcp process writing an
// event file and expects it on the live feed.
func TestStart_ForwardsEventFiles(t *testing.T) {
	cfg := testConfig(t)
	addr := startTest(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws", nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	// Registration is asynchronous.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, notify.NewEventWriter(cfg.Storage.DataPath).Notify(notify.Event{
		Type:        notify.EventKnownErrorSaved,
		Fingerprint: "8b3a8ba4fcb3fa2fd262cff1298ba0c2e70900c8",
		Service:     "auth-service",
	}))

	_, data, err := conn.Read(ctx) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	assert.Contains(t, string(data), `"known_error_saved"`)
	assert.Contains(t, string(data), "auth-service")
}

func TestStart_BadEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Engine = "mongodb"

	_, _, err := start(context.Background(), cfg)
	assert.Error(t, err)
}
