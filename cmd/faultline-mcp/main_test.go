package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/faultline/internal/config"
)

const authLog = `{"service":"auth-service","environment":"production","timestamp":"2025-03-01T10:00:00Z","level":"ERROR","message":"User authentication failed","error_type":"AuthenticationError","severity":"medium","stack_trace":"line1\nline2\nAuthenticationError: bad token","request_id":"req_1a2b3c4d"}`

const authFingerprint = "8b3a8ba4fcb3fa2fd262cff1298ba0c2e70900c8"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.DataPath = t.TempDir()
	return cfg
}

// serveLines runs the binary's main loop over the given request lines and
// returns the decoded response frames.
func serveLines(t *testing.T, cfg *config.Config, lines ...string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out))

	var frames []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var frame map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame), "stdout must carry only JSON-RPC frames")
		frames = append(frames, frame)
	}
	return frames
}

func TestRun_PersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)

	frames := serveLines(t, cfg,
		`{"jsonrpc":"2.0","method":"record_incident","params":{"log":`+authLog+`},"id":1}`,
		`{"jsonrpc":"2.0","method":"save_known_error","params":{"fingerprint":"`+authFingerprint+`","description":"token expired","suggested_fix":"refresh the signing key"},"id":2}`,
	)
	require.Len(t, frames, 2)
	assert.Nil(t, frames[0]["error"])
	assert.Nil(t, frames[1]["error"])

	assert.FileExists(t, filepath.Join(cfg.Storage.DataPath, "faultline.db"))

	frames = serveLines(t, cfg,
		`{"jsonrpc":"2.0","method":"lookup_known_error","params":{"fingerprint":"`+authFingerprint+`"},"id":3}`,
	)
	require.Len(t, frames, 1)
	result, ok := frames[0]["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, result["found"])
	assert.Contains(t, result["summary"], "refresh the signing key")
}

func TestRun_WritesEventFiles(t *testing.T) {
	cfg := testConfig(t)

	serveLines(t, cfg, `{"jsonrpc":"2.0","method":"record_incident","params":{"log":`+authLog+`},"id":1}`)

	entries, err := os.ReadDir(filepath.Join(cfg.Storage.DataPath, "events"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".event"))
}

func TestRun_EventFilesDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.EventFiles = false

	serveLines(t, cfg, `{"jsonrpc":"2.0","method":"record_incident","params":{"log":`+authLog+`},"id":1}`)

	assert.NoDirExists(t, filepath.Join(cfg.Storage.DataPath, "events"))
}

func TestRun_UnsupportedEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Engine = "mongodb"

	err := run(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorContains(t, err, "unsupported storage engine")
}
