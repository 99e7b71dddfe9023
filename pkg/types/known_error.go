package types

import "time"

// KnownError is the deduplicated record for one fingerprint. It aggregates
// every occurrence that has been saved for the fingerprint and carries the
// human or LLM authored triage text.
type KnownError struct {
	ID           int64     `json:"id"`            // Surrogate key assigned on creation
	Fingerprint  string    `json:"fingerprint"`   // Unique identity key
	ErrorType    string    `json:"error_type"`    // Error class at first save
	Service      string    `json:"service"`       // Service at first save
	Description  string    `json:"description"`   // What the error means
	SuggestedFix string    `json:"suggested_fix"` // How to remediate it
	FirstSeenAt  time.Time `json:"first_seen_at"` // Timestamp of the first save
	LastSeenAt   time.Time `json:"last_seen_at"`  // Latest timestamp seen
	Occurrences  int64     `json:"occurrences"`   // Number of saves, starts at 1
}

// KnownErrorUpsert is the input to a known-error upsert.
//
// On the first upsert for a fingerprint a row is created from these values.
// Later upserts increment the occurrence counter and advance LastSeenAt;
// Description and SuggestedFix only replace the stored text when Overwrite
// is set.
type KnownErrorUpsert struct {
	Fingerprint  string
	Service      string
	ErrorType    string
	Timestamp    time.Time
	Description  string
	SuggestedFix string
	Overwrite    bool
}
