package mcp_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/faultline/internal/api/mcp"
)

func TestStdioTransport_OneResponsePerLine(t *testing.T) {
	srv, _ := newTestServer(t)

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","method":"initialize","params":{},"id":1}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","method":"analyze_log","params":{"log":` + authLog + `},"id":2}`,
		`garbage`,
	}, "\n") + "\n")
	var out bytes.Buffer

	err := mcp.NewStdioTransport(srv, in, &out).Serve(context.Background())
	require.NoError(t, err)

	var responses []mcp.JSONRPCResponse
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp mcp.JSONRPCResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp), "every stdout line must be a JSON-RPC frame")
		responses = append(responses, resp)
	}
	require.Len(t, responses, 3, "blank lines and notifications get no response")
	assert.Equal(t, float64(1), responses[0].ID)
	assert.Nil(t, responses[1].Error)
	assert.Contains(t, mustJSON(t, responses[1].Result), authFingerprint)
	require.NotNil(t, responses[2].Error)
	assert.Equal(t, mcp.ErrCodeParseError, responses[2].Error.Code)
}

func TestStdioTransport_CancelledContext(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mcp.NewStdioTransport(srv, strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}`+"\n"), &bytes.Buffer{}).Serve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServeHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"record_incident","arguments":{"log":` + authLog + `}},"id":"a"}`
	resp, err := http.Post(ts.URL, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, srv.SessionID(), resp.Header.Get("Mcp-Session-Id"))

	var rpc mcp.JSONRPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	assert.Equal(t, "a", rpc.ID)
	assert.Contains(t, mustJSON(t, rpc.Result), "Recorded incident #1")

	note, err := http.Post(ts.URL, "application/json", strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	require.NoError(t, err)
	defer note.Body.Close()
	assert.Equal(t, http.StatusAccepted, note.StatusCode)
	noteBody, err := io.ReadAll(note.Body)
	require.NoError(t, err)
	assert.Empty(t, noteBody)

	get, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
