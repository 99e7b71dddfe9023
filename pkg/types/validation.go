package types

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when an event or request is missing required
// fields or carries values outside their allowed set. It lists every failing
// field, not just the first.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failing field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when at least one field failed, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateEvent checks the fields an event needs before it can be
// fingerprinted: service and error_type must be non-empty, environment and
// level must come from their enums when set, and a non-empty timestamp must
// parse.
func ValidateEvent(ev RawErrorEvent) error {
	ve := &ValidationError{}
	if strings.TrimSpace(ev.Service) == "" {
		ve.Add("service", "is required")
	}
	if strings.TrimSpace(ev.ErrorType) == "" {
		ve.Add("error_type", "is required")
	}
	if !IsValidEnvironment(ev.Environment) {
		ve.Add("environment", fmt.Sprintf("must be one of %s", strings.Join(ValidEnvironments, ", ")))
	}
	if !IsValidLevel(ev.Level) {
		ve.Add("level", fmt.Sprintf("must be one of %s", strings.Join(ValidLevels, ", ")))
	}
	if ev.Timestamp != "" {
		if _, err := ParseTimestamp(ev.Timestamp); err != nil {
			ve.Add("timestamp", err.Error())
		}
	}
	return ve.OrNil()
}

// ValidateUpsert checks a known-error upsert. Only the fingerprint is
// required; description and suggested fix accept any text, including empty.
func ValidateUpsert(in KnownErrorUpsert) error {
	ve := &ValidationError{}
	if strings.TrimSpace(in.Fingerprint) == "" {
		ve.Add("fingerprint", "is required")
	}
	return ve.OrNil()
}
