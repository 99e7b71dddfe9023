// Package notify carries triage events to live subscribers: in process to the
// WebSocket hub, and across processes from faultline-mcp to faultline-web
// through event files in a shared directory.
package notify

import "encoding/json"

// Event types.
const (
	EventIncidentRecorded = "incident_recorded"
	EventKnownErrorSaved  = "known_error_saved"
)

// Event is the payload delivered to subscribers and written to event files.
type Event struct {
	Type        string          `json:"type"`
	Fingerprint string          `json:"fingerprint"`
	Service     string          `json:"service,omitempty"`
	Time        int64           `json:"time"`
	Payload     json.RawMessage `json:"payload,omitempty"` // The incident or known error as JSON
}

// Notifier receives events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(evt Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(evt Event) error

func (f NotifierFunc) Notify(evt Event) error { return f(evt) }
