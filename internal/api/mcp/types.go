package mcp

import (
	"github.com/scrypster/faultline/pkg/types"
)

// AnalyzeLogArgs contains arguments for the analyze_log tool.
type AnalyzeLogArgs struct {
	Log types.RawErrorEvent `json:"log"` // Raw event as received from the webhook
}

// LookupKnownErrorArgs contains arguments for the lookup_known_error tool.
type LookupKnownErrorArgs struct {
	Fingerprint string `json:"fingerprint"` // Fingerprint to look up (required)
}

// LookupKnownErrorResult is the result of lookup_known_error.
//
// Summary is "NOT_FOUND" on a miss so that workflow branches written against
// the plain-text contract keep working.
type LookupKnownErrorResult struct {
	Found      bool              `json:"found"`
	Summary    string            `json:"summary"`
	KnownError *types.KnownError `json:"known_error,omitempty"`
}

// NotFoundSummary is the lookup summary for an unknown fingerprint.
const NotFoundSummary = "NOT_FOUND"

// SaveKnownErrorArgs contains arguments for the save_known_error tool.
type SaveKnownErrorArgs struct {
	Fingerprint  string `json:"fingerprint"`          // Required
	Description  string `json:"description"`          // What the error means
	SuggestedFix string `json:"suggested_fix"`        // How to fix it
	Service      string `json:"service,omitempty"`    // Defaults to "unknown"
	ErrorType    string `json:"error_type,omitempty"` // Defaults to "unknown"
	Timestamp    string `json:"timestamp,omitempty"`  // ISO-8601, defaults to now
	Overwrite    bool   `json:"overwrite,omitempty"`  // Replace stored description/fix
}

// SaveKnownErrorResult is the result of save_known_error.
type SaveKnownErrorResult struct {
	Message    string            `json:"message"`
	KnownError *types.KnownError `json:"known_error"`
}

// RecordIncidentArgs contains arguments for the record_incident tool.
type RecordIncidentArgs struct {
	Log types.RawErrorEvent `json:"log"`
}

// RecordIncidentResult is the result of record_incident.
type RecordIncidentResult struct {
	Message  string          `json:"message"`
	Incident *types.Incident `json:"incident"`
}

// ListIncidentsArgs contains arguments for the list_incidents tool.
type ListIncidentsArgs struct {
	Fingerprint string `json:"fingerprint,omitempty"`
	Service     string `json:"service,omitempty"`
	Page        int    `json:"page,omitempty"`  // 1-based (default 1)
	Limit       int    `json:"limit,omitempty"` // default 10, max 100
}

// ListKnownErrorsArgs contains arguments for the list_known_errors tool.
type ListKnownErrorsArgs struct {
	Service   string `json:"service,omitempty"`
	Page      int    `json:"page,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`    // last_seen_at, first_seen_at, occurrences, id
	SortOrder string `json:"sort_order,omitempty"` // asc or desc
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via tools/list.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
