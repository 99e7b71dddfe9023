// Package server_test exercises the assembled HTTP server.
package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	"github.com/scrypster/faultline/internal/api/mcp"
	"github.com/scrypster/faultline/internal/config"
	"github.com/scrypster/faultline/internal/metrics"
	"github.com/scrypster/faultline/internal/server"
	"github.com/scrypster/faultline/internal/storage/sqlite"
	"github.com/scrypster/faultline/internal/triage"
	"github.com/scrypster/faultline/web/handlers"
)

const authEvent = `{"service":"auth-service","error_type":"AuthenticationError","timestamp":"2025-03-01T10:00:00Z","stack_trace":"line1\nline2\nAuthenticationError: bad token"}`

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

// startTestServer starts a server over an in-memory SQLite store and returns
// its base URL. The hub is wired as the service notifier, as in faultline-web.
func startTestServer(t *testing.T, cfg *config.Config) (string, context.CancelFunc) {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err, "failed to create in-memory SQLite store")

	reg := prometheus.NewRegistry()
	hub := handlers.NewWebSocketHub(cfg.Server.CORSOrigins)
	svc := triage.NewService(store, store,
		triage.WithNotifier(hub),
		triage.WithMetrics(metrics.New(reg)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	addr, gotHub, err := server.Start(ctx, cfg, server.Options{
		Service:  svc,
		Store:    store,
		MCP:      mcp.NewServer(svc, mcp.WithLogger(log.New(io.Discard, "", 0))),
		Hub:      hub,
		Gatherer: reg,
	})
	require.NoError(t, err)
	require.Same(t, hub, gotHub)

	t.Cleanup(func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
		_ = store.Close()
	})
	return "http://" + addr, cancel
}

func TestServer_StartsOnRandomPort(t *testing.T) {
	baseURL, _ := startTestServer(t, testConfig())

	_, port, err := net.SplitHostPort(strings.TrimPrefix(baseURL, "http://"))
	require.NoError(t, err)
	assert.NotEqual(t, "0", port, "port should not be 0 in actual address")
}

func TestServer_ListenError(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "256.0.0.1"

	_, _, err := server.Start(context.Background(), cfg, server.Options{})
	assert.Error(t, err)
}

func TestServer_HealthAndSecurityHeaders(t *testing.T) {
	baseURL, _ := startTestServer(t, testConfig())

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "1.0.0", health.Version)
}

// TestServer_WebhookReachesLiveFeed posts an event to the webhook and reads
// the resulting incident_recorded event from /ws.
func TestServer_WebhookReachesLiveFeed(t *testing.T) {
	baseURL, _ := startTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(baseURL, "http")+"/ws", nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket

	// Registration is asynchronous.
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Post(baseURL+"/api/incidents", "application/json", strings.NewReader(authEvent))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, data, err := conn.Read(ctx) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"incident_recorded"`)
	assert.Contains(t, string(data), "8b3a8ba4fcb3fa2fd262cff1298ba0c2e70900c8")
}

func TestServer_MCPOverHTTP(t *testing.T) {
	baseURL, _ := startTestServer(t, testConfig())

	body := `{"jsonrpc":"2.0","method":"lookup_known_error","params":{"fingerprint":"nope"},"id":1}`
	resp, err := http.Post(baseURL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"summary":"NOT_FOUND"`)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	baseURL, _ := startTestServer(t, testConfig())

	resp, err := http.Post(baseURL+"/api/incidents", "application/json", strings.NewReader(authEvent))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `faultline_incidents_recorded_total{service="auth-service"} 1`)
}

func TestServer_ProductionMode_RequiresAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Security.Mode = "production"
	cfg.Security.APIToken = "s3cret"
	baseURL, _ := startTestServer(t, cfg)

	resp, err := http.Get(baseURL + "/api/incidents")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(baseURL+"/mcp", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", baseURL+"/api/incidents", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(baseURL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays public")
}

func TestServer_NotFoundAndMethods(t *testing.T) {
	baseURL, _ := startTestServer(t, testConfig())

	resp, err := http.Get(baseURL + "/api/nonexistent")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ := http.NewRequest("DELETE", baseURL+"/api/incidents", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "incidents are append-only")
}

func TestServer_GracefulShutdown(t *testing.T) {
	baseURL, cancel := startTestServer(t, testConfig())

	resp, err := http.Get(baseURL + "/api/health")
	require.NoError(t, err, "server should be responding before shutdown")
	resp.Body.Close()

	cancel()

	require.Eventually(t, func() bool {
		client := &http.Client{Timeout: 200 * time.Millisecond}
		resp, err := client.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 3*time.Second, 50*time.Millisecond, "server should stop responding after shutdown")
}
