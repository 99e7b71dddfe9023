package types

import "time"

// Incident is one recorded occurrence of an error event. Incidents are
// append-only: they are never updated or merged, even when many of them share
// a fingerprint.
type Incident struct {
	ID           int64     `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	Service      string    `json:"service"`
	Environment  string    `json:"environment"`
	ErrorType    string    `json:"error_type"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	StackSummary string    `json:"stack_summary"`
	RawLog       string    `json:"raw_log"`    // JSON serialization of the original event
	CreatedAt    time.Time `json:"created_at"` // Event time of the occurrence
}
