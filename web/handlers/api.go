package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/scrypster/faultline/internal/storage"
	"github.com/scrypster/faultline/internal/triage"
	"github.com/scrypster/faultline/pkg/types"
)

// maxEventBytes bounds a webhook body.
const maxEventBytes = 1 << 20

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// breakerState is implemented by stores wrapped in a circuit breaker.
type breakerState interface {
	State() string
}

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	svc     *triage.Service
	store   Pinger
	version string
}

// NewAPIHandlers creates a new APIHandlers instance. store is used only for
// health checks and may be nil.
func NewAPIHandlers(svc *triage.Service, store Pinger, version string) *APIHandlers {
	return &APIHandlers{
		svc:     svc,
		store:   store,
		version: version,
	}
}

// Health handles GET /api/health.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Version: h.version, Storage: "ok"}
	status := http.StatusOK

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Storage = err.Error()
			status = http.StatusServiceUnavailable
		}
		if b, ok := h.store.(breakerState); ok {
			resp.Breaker = b.State()
		}
	}

	respondJSON(w, status, resp)
}

// PostIncident handles POST /api/incidents: webhook ingestion of one raw
// error event. The event is fingerprinted and appended to the incident log.
func (h *APIHandlers) PostIncident(w http.ResponseWriter, r *http.Request) {
	var ev types.RawErrorEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err := dec.Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event body", err)
		return
	}

	inc, err := h.svc.RecordIncident(r.Context(), ev)
	if err != nil {
		respondServiceError(w, "failed to record incident", err)
		return
	}

	respondJSON(w, http.StatusCreated, inc)
}

// ListIncidents handles GET /api/incidents.
// Query: fingerprint, service, page, limit.
func (h *APIHandlers) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.IncidentFilter{
		Fingerprint: q.Get("fingerprint"),
		Service:     q.Get("service"),
		Page:        parseInt(q.Get("page"), 1),
		Limit:       parseInt(q.Get("limit"), 10),
	}

	result, err := h.svc.ListIncidents(r.Context(), filter)
	if err != nil {
		respondServiceError(w, "failed to list incidents", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListKnownErrors handles GET /api/known-errors.
// Query: service, page, limit, sort_by, sort_order.
func (h *APIHandlers) ListKnownErrors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		Page:      parseInt(q.Get("page"), 1),
		Limit:     parseInt(q.Get("limit"), 10),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Service:   q.Get("service"),
	}

	result, err := h.svc.ListKnownErrors(r.Context(), opts)
	if err != nil {
		respondServiceError(w, "failed to list known errors", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetKnownError handles GET /api/known-errors/{fingerprint}.
func (h *APIHandlers) GetKnownError(w http.ResponseWriter, r *http.Request) {
	ke, found, err := h.svc.LookupKnownError(r.Context(), r.PathValue("fingerprint"))
	if err != nil {
		respondServiceError(w, "failed to look up known error", err)
		return
	}
	if !found {
		respondJSON(w, http.StatusNotFound, LookupResponse{Found: false})
		return
	}

	respondJSON(w, http.StatusOK, LookupResponse{Found: true, KnownError: ke})
}

// parseInt parses s as an integer, returning defaultValue when s is empty or invalid.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondServiceError maps triage errors to HTTP statuses: validation
// failures are 400, storage failures 503, anything else 500.
func respondServiceError(w http.ResponseWriter, message string, err error) {
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Code:    http.StatusText(http.StatusBadRequest),
			Details: map[string]interface{}{"error": ve.Error(), "fields": ve.Fields},
		})
	case storage.IsStorageError(err):
		respondError(w, http.StatusServiceUnavailable, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent.
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
