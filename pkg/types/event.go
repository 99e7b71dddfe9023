package types

import (
	"fmt"
	"strings"
	"time"
)

// Environment constants for the deployment an event came from.
const (
	EnvironmentProduction  = "production"
	EnvironmentStaging     = "staging"
	EnvironmentDevelopment = "development"
)

// ValidEnvironments contains all valid environment values.
var ValidEnvironments = []string{
	EnvironmentProduction,
	EnvironmentStaging,
	EnvironmentDevelopment,
}

// Log level constants.
const (
	LevelError = "ERROR"
	LevelWarn  = "WARN"
	LevelInfo  = "INFO"
)

// ValidLevels contains all valid log level values.
var ValidLevels = []string{
	LevelError,
	LevelWarn,
	LevelInfo,
}

// RawErrorEvent is an error log event as emitted by an application or the
// simulator. It is never modified after it is received.
type RawErrorEvent struct {
	Service     string `json:"service"`     // Emitting service (required)
	Environment string `json:"environment"` // production, staging or development
	Timestamp   string `json:"timestamp"`   // ISO-8601 UTC timestamp
	Level       string `json:"level"`       // ERROR, WARN or INFO
	Message     string `json:"message"`     // Human readable message
	ErrorType   string `json:"error_type"`  // Exception/error class name (required)
	Severity    string `json:"severity"`    // Free-form severity label
	StackTrace  string `json:"stack_trace"` // Multi-line stack trace, may be empty
	RequestID   string `json:"request_id"`  // Correlation ID of the failing request
}

// CanonicalRecord is the normalized form of a RawErrorEvent, carrying the
// fingerprint used to group repeated occurrences of the same failure.
type CanonicalRecord struct {
	Service      string `json:"service"`
	Environment  string `json:"environment"`
	ErrorType    string `json:"error_type"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	Fingerprint  string `json:"fingerprint"`   // Hex SHA-1 of service|error_type|last stack line
	StackSummary string `json:"stack_summary"` // First lines of the stack trace
	Timestamp    string `json:"timestamp"`
	RequestID    string `json:"request_id"`
}

// IsValidEnvironment reports whether env is a known environment.
// Empty string is considered valid (not set).
func IsValidEnvironment(env string) bool {
	if env == "" {
		return true
	}
	for _, v := range ValidEnvironments {
		if v == env {
			return true
		}
	}
	return false
}

// IsValidLevel reports whether level is a known log level.
// Empty string is considered valid (not set).
func IsValidLevel(level string) bool {
	if level == "" {
		return true
	}
	for _, v := range ValidLevels {
		if v == level {
			return true
		}
	}
	return false
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an event timestamp and returns it in UTC.
// RFC 3339 is the canonical form; zone-less timestamps are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", s)
}
