package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/faultline/internal/storage"
	"github.com/scrypster/faultline/internal/triage"
	"github.com/scrypster/faultline/pkg/types"
)

// ProtocolVersion is the MCP revision this server speaks.
const ProtocolVersion = "2024-11-05"

// errInvalidParams marks arguments that could not be decoded.
var errInvalidParams = errors.New("invalid params")

// Server implements the Model Context Protocol (MCP) for faultline.
// It exposes the triage operations as JSON-RPC 2.0 tools for agents and
// workflow engines.
type Server struct {
	svc       *triage.Service
	name      string
	version   string
	sessionID string // unique ID generated once per server lifetime
	logger    *log.Logger
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the diagnostic logger. It must not write to stdout when
// the stdio transport is used.
func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServerInfo overrides the name and version reported by initialize.
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// NewServer creates a new MCP server over the triage service.
//
//	srv := mcp.NewServer(svc)
//	srv := mcp.NewServer(svc, mcp.WithLogger(logger))
func NewServer(svc *triage.Service, opts ...ServerOption) *Server {
	s := &Server{
		svc:       svc,
		name:      "faultline",
		version:   "1.0.0",
		sessionID: uuid.New().String(),
		logger:    log.New(os.Stderr, "faultline-mcp: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Printf("session ID: %s", s.sessionID)
	return s
}

// SessionID returns the ID generated for this server instance.
func (s *Server) SessionID() string {
	return s.sessionID
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// This is the main entry point for MCP protocol handling.
//
// Notifications (requests without an "id" member) are executed but produce
// no response: the returned slice is nil.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}

	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	if isNotification(requestJSON) {
		if _, err := s.dispatch(ctx, req); err != nil {
			s.logger.Printf("notification %s failed: %v", req.Method, err)
		}
		return nil, nil
	}

	result, err := s.dispatch(ctx, req)
	if err != nil {
		code, data := errorCode(err)
		return s.errorResponse(req.ID, code, err.Error(), data)
	}

	return s.successResponse(req.ID, result)
}

// isNotification reports whether the request object has no "id" member.
// An explicit "id": null is still a request.
func isNotification(requestJSON []byte) bool {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(requestJSON, &members); err != nil {
		return false
	}
	_, ok := members["id"]
	return !ok
}

// dispatch routes req to the protocol method or tool it names.
func (s *Server) dispatch(ctx context.Context, req JSONRPCRequest) (interface{}, error) {
	switch req.Method {
	// Standard MCP protocol methods
	case "initialize":
		return s.handleInitialize(ctx, req.Params)
	case "initialized", "notifications/initialized":
		return map[string]interface{}{}, nil
	case "ping":
		return map[string]interface{}{}, nil
	case "tools/list":
		return s.handleToolsList(ctx, req.Params)
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	}

	handler, ok := s.tools()[req.Method]
	if !ok {
		return nil, &methodNotFoundError{method: req.Method}
	}
	return handler(ctx, req.Params)
}

// methodNotFoundError is returned by dispatch for unknown methods.
type methodNotFoundError struct {
	method string
}

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("Method not found: %s", e.method)
}

// errorCode maps a handler error to a JSON-RPC code and optional data.
func errorCode(err error) (int, interface{}) {
	var ve *types.ValidationError
	var mnf *methodNotFoundError
	switch {
	case errors.As(err, &mnf):
		return ErrCodeMethodNotFound, nil
	case errors.As(err, &ve):
		return ErrCodeInvalidParams, ve.Fields
	case errors.Is(err, errInvalidParams):
		return ErrCodeInvalidParams, nil
	case storage.IsStorageError(err):
		return ErrCodeServerError, map[string]string{"kind": "storage"}
	default:
		return ErrCodeServerError, nil
	}
}

type toolHandler func(ctx context.Context, params interface{}) (interface{}, error)

// tools maps each tool name to its handler. Every tool is also callable as a
// direct JSON-RPC method.
func (s *Server) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"analyze_log":        s.handleAnalyzeLog,
		"lookup_known_error": s.handleLookupKnownError,
		"save_known_error":   s.handleSaveKnownError,
		"record_incident":    s.handleRecordIncident,
		"list_incidents":     s.handleListIncidents,
		"list_known_errors":  s.handleListKnownErrors,
	}
}

// AnalyzeLog normalizes a raw event and computes its fingerprint. Nothing is
// persisted.
func (s *Server) AnalyzeLog(ctx context.Context, args AnalyzeLogArgs) (*types.CanonicalRecord, error) {
	rec, err := s.svc.Normalize(args.Log)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LookupKnownError reports whether a fingerprint has been saved before.
func (s *Server) LookupKnownError(ctx context.Context, args LookupKnownErrorArgs) (*LookupKnownErrorResult, error) {
	ke, found, err := s.svc.LookupKnownError(ctx, strings.TrimSpace(args.Fingerprint))
	if err != nil {
		return nil, err
	}
	if !found {
		return &LookupKnownErrorResult{Found: false, Summary: NotFoundSummary}, nil
	}
	return &LookupKnownErrorResult{
		Found:      true,
		Summary:    summarizeKnownError(ke),
		KnownError: ke,
	}, nil
}

func summarizeKnownError(ke *types.KnownError) string {
	return fmt.Sprintf("Known error #%d (service=%s, error_type=%s): %s | suggested fix: %s | occurrences=%d, last_seen_at=%s",
		ke.ID, ke.Service, ke.ErrorType, ke.Description, ke.SuggestedFix,
		ke.Occurrences, ke.LastSeenAt.UTC().Format(time.RFC3339))
}

// SaveKnownError creates or increments the known error for a fingerprint.
// Empty service and error_type are stored as "unknown"; an empty timestamp
// means now.
func (s *Server) SaveKnownError(ctx context.Context, args SaveKnownErrorArgs) (*SaveKnownErrorResult, error) {
	in := types.KnownErrorUpsert{
		Fingerprint:  strings.TrimSpace(args.Fingerprint),
		Service:      orUnknown(args.Service),
		ErrorType:    orUnknown(args.ErrorType),
		Description:  args.Description,
		SuggestedFix: args.SuggestedFix,
		Overwrite:    args.Overwrite,
	}
	if args.Timestamp != "" {
		ts, err := types.ParseTimestamp(args.Timestamp)
		if err != nil {
			ve := &types.ValidationError{}
			ve.Add("timestamp", err.Error())
			return nil, ve
		}
		in.Timestamp = ts
	}

	ke, err := s.svc.UpsertKnownError(ctx, in)
	if err != nil {
		return nil, err
	}
	return &SaveKnownErrorResult{
		Message:    fmt.Sprintf("Saved known error #%d (fingerprint=%s)", ke.ID, ke.Fingerprint),
		KnownError: ke,
	}, nil
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

// RecordIncident appends one occurrence to the incident log.
func (s *Server) RecordIncident(ctx context.Context, args RecordIncidentArgs) (*RecordIncidentResult, error) {
	inc, err := s.svc.RecordIncident(ctx, args.Log)
	if err != nil {
		return nil, err
	}
	return &RecordIncidentResult{
		Message: fmt.Sprintf("Recorded incident #%d for fingerprint=%s (service=%s, error_type=%s)",
			inc.ID, inc.Fingerprint, inc.Service, inc.ErrorType),
		Incident: inc,
	}, nil
}

// ListIncidents returns recorded incidents, newest first.
func (s *Server) ListIncidents(ctx context.Context, args ListIncidentsArgs) (*storage.PaginatedResult[types.Incident], error) {
	return s.svc.ListIncidents(ctx, storage.IncidentFilter{
		Fingerprint: args.Fingerprint,
		Service:     args.Service,
		Page:        args.Page,
		Limit:       args.Limit,
	})
}

// ListKnownErrors returns a page of the known-error ledger.
func (s *Server) ListKnownErrors(ctx context.Context, args ListKnownErrorsArgs) (*storage.PaginatedResult[types.KnownError], error) {
	return s.svc.ListKnownErrors(ctx, storage.ListOptions{
		Page:      args.Page,
		Limit:     args.Limit,
		SortBy:    args.SortBy,
		SortOrder: args.SortOrder,
		Service:   args.Service,
	})
}

// handleAnalyzeLog handles the analyze_log JSON-RPC method.
func (s *Server) handleAnalyzeLog(ctx context.Context, params interface{}) (interface{}, error) {
	var args AnalyzeLogArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.AnalyzeLog(ctx, args)
}

// handleLookupKnownError handles the lookup_known_error JSON-RPC method.
func (s *Server) handleLookupKnownError(ctx context.Context, params interface{}) (interface{}, error) {
	var args LookupKnownErrorArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.LookupKnownError(ctx, args)
}

// handleSaveKnownError handles the save_known_error JSON-RPC method.
func (s *Server) handleSaveKnownError(ctx context.Context, params interface{}) (interface{}, error) {
	var args SaveKnownErrorArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.SaveKnownError(ctx, args)
}

// handleRecordIncident handles the record_incident JSON-RPC method.
func (s *Server) handleRecordIncident(ctx context.Context, params interface{}) (interface{}, error) {
	var args RecordIncidentArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.RecordIncident(ctx, args)
}

func (s *Server) handleListIncidents(ctx context.Context, params interface{}) (interface{}, error) {
	var args ListIncidentsArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.ListIncidents(ctx, args)
}

func (s *Server) handleListKnownErrors(ctx context.Context, params interface{}) (interface{}, error) {
	var args ListKnownErrorsArgs
	if err := s.unmarshalParams(params, &args); err != nil {
		return nil, err
	}
	return s.ListKnownErrors(ctx, args)
}

// ---------------------------------------------------------------------------
// Standard MCP protocol handlers
// ---------------------------------------------------------------------------

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    s.name,
			Version: s.version,
		},
	}, nil
}

// handleToolsList returns the list of all tools this server exposes.
func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request to the appropriate handler
// and wraps the result in the MCP content envelope. Tool failures are
// reported in the envelope, not as JSON-RPC errors.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	handler, ok := s.tools()[p.Name]
	if !ok {
		return toolError(fmt.Sprintf("unknown tool: %s", p.Name)), nil
	}

	var args interface{} = p.Arguments
	if p.Arguments == nil {
		args = map[string]interface{}{}
	}

	result, err := handler(ctx, args)
	if err != nil {
		s.logger.Printf("tool %s failed: %v", p.Name, err)
		return toolError(err.Error()), nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

func toolError(msg string) *MCPToolCallResult {
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: msg}},
		IsError: true,
	}
}

// eventSchema is the input schema of a raw error event.
func eventSchema() map[string]interface{} {
	str := func(desc string) map[string]interface{} {
		return map[string]interface{}{"type": "string", "description": desc}
	}
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"service", "error_type"},
		"properties": map[string]interface{}{
			"service":     str("Emitting service"),
			"environment": map[string]interface{}{"type": "string", "enum": types.ValidEnvironments},
			"timestamp":   str("ISO-8601 UTC timestamp"),
			"level":       map[string]interface{}{"type": "string", "enum": types.ValidLevels},
			"message":     str("Human readable message"),
			"error_type":  str("Exception or error class name"),
			"severity":    str("Severity label"),
			"stack_trace": str("Multi-line stack trace"),
			"request_id":  str("Request correlation ID"),
		},
	}
}

// buildToolsList returns the canonical list of MCP tool definitions.
func (s *Server) buildToolsList() []MCPTool {
	return []MCPTool{
		{
			Name:        "analyze_log",
			Description: "Normalize a raw error log and compute its fingerprint. Returns the canonical record; nothing is stored.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"required":   []string{"log"},
				"properties": map[string]interface{}{"log": eventSchema()},
			},
		},
		{
			Name:        "lookup_known_error",
			Description: "Check whether this fingerprint has been seen and saved before. Returns found=false and summary NOT_FOUND when unknown.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"fingerprint"},
				"properties": map[string]interface{}{
					"fingerprint": map[string]interface{}{"type": "string", "description": "Fingerprint returned by analyze_log"},
				},
			},
		},
		{
			Name: "save_known_error",
			Description: "Save a known error for a fingerprint, or count another occurrence of it. " +
				"The first description and suggested fix are kept unless overwrite is true.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"fingerprint", "description", "suggested_fix"},
				"properties": map[string]interface{}{
					"fingerprint":   map[string]interface{}{"type": "string"},
					"description":   map[string]interface{}{"type": "string", "description": "What the error means"},
					"suggested_fix": map[string]interface{}{"type": "string", "description": "How to fix it"},
					"service":       map[string]interface{}{"type": "string", "description": "Defaults to unknown"},
					"error_type":    map[string]interface{}{"type": "string", "description": "Defaults to unknown"},
					"timestamp":     map[string]interface{}{"type": "string", "description": "ISO-8601 time of the occurrence, defaults to now"},
					"overwrite":     map[string]interface{}{"type": "boolean", "description": "Replace the stored description and fix"},
				},
			},
		},
		{
			Name:        "record_incident",
			Description: "Store one occurrence of an error in the incident log. Every call creates a new incident.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"required":   []string{"log"},
				"properties": map[string]interface{}{"log": eventSchema()},
			},
		},
		{
			Name:        "list_incidents",
			Description: "List recorded incidents, newest first, optionally filtered by fingerprint or service.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fingerprint": map[string]interface{}{"type": "string"},
					"service":     map[string]interface{}{"type": "string"},
					"page":        map[string]interface{}{"type": "integer", "description": "1-based page (default 1)"},
					"limit":       map[string]interface{}{"type": "integer", "description": "Max results (default 10, max 100)"},
				},
			},
		},
		{
			Name:        "list_known_errors",
			Description: "List known errors, most recently seen first by default.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"service":    map[string]interface{}{"type": "string"},
					"page":       map[string]interface{}{"type": "integer"},
					"limit":      map[string]interface{}{"type": "integer"},
					"sort_by":    map[string]interface{}{"type": "string", "enum": []string{"last_seen_at", "first_seen_at", "occurrences", "id"}},
					"sort_order": map[string]interface{}{"type": "string", "enum": []string{"asc", "desc"}},
				},
			},
		},
	}
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
