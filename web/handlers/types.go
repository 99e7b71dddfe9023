package handlers

import "github.com/scrypster/faultline/pkg/types"

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthResponse is the response format for GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`            // healthy or degraded
	Version string `json:"version"`           // server version
	Storage string `json:"storage"`           // ok or the ping error
	Breaker string `json:"breaker,omitempty"` // closed, open or half-open
}

// LookupResponse is the response format for GET /api/known-errors/{fingerprint}.
type LookupResponse struct {
	Found      bool              `json:"found"`
	KnownError *types.KnownError `json:"known_error,omitempty"`
}
