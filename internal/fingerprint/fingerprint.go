// Package fingerprint turns raw error events into canonical records.
//
// The fingerprint of an event is the hex SHA-1 of
//
//	service + "|" + error_type + "|" + last line of the stack trace
//
// Message, timestamp, request ID and severity do not contribute, so repeated
// occurrences of one failure share a key. A different final stack line is a
// different identity.
package fingerprint

import (
	"crypto/sha1" //nolint:gosec // identity key, not a security boundary
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/scrypster/faultline/pkg/types"
)

// SummaryLines is the number of leading stack trace lines kept in a summary.
const SummaryLines = 3

// Normalizer converts events into canonical records. The zero value is a
// lenient normalizer; use New to choose the validation mode.
type Normalizer struct {
	strict bool
}

// New returns a Normalizer. In strict mode Normalize rejects events that fail
// types.ValidateEvent instead of hashing empty or malformed keys.
func New(strict bool) *Normalizer {
	return &Normalizer{strict: strict}
}

// Strict reports whether the normalizer validates events.
func (n *Normalizer) Strict() bool {
	return n.strict
}

// Normalize validates ev (strict mode only) and returns its canonical record.
// The only possible error is a *types.ValidationError.
func (n *Normalizer) Normalize(ev types.RawErrorEvent) (types.CanonicalRecord, error) {
	if n.strict {
		if err := types.ValidateEvent(ev); err != nil {
			return types.CanonicalRecord{}, err
		}
	}
	return Normalize(ev), nil
}

// Normalize is the pure, total normalization function.
func Normalize(ev types.RawErrorEvent) types.CanonicalRecord {
	return types.CanonicalRecord{
		Service:      ev.Service,
		Environment:  ev.Environment,
		ErrorType:    ev.ErrorType,
		Severity:     ev.Severity,
		Message:      ev.Message,
		Fingerprint:  Fingerprint(ev.Service, ev.ErrorType, LastStackLine(ev.StackTrace)),
		StackSummary: StackSummary(ev.StackTrace),
		Timestamp:    ev.Timestamp,
		RequestID:    ev.RequestID,
	}
}

// Fingerprint hashes the identity tuple.
func Fingerprint(service, errorType, lastLine string) string {
	sum := sha1.Sum([]byte(service + "|" + errorType + "|" + lastLine))
	return hex.EncodeToString(sum[:])
}

// LastStackLine returns the final line of trace, or "" for an empty trace.
func LastStackLine(trace string) string {
	lines := splitLines(trace)
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

// StackSummary returns the first SummaryLines lines of trace joined by "\n".
func StackSummary(trace string) string {
	lines := splitLines(trace)
	if len(lines) > SummaryLines {
		lines = lines[:SummaryLines]
	}
	return strings.Join(lines, "\n")
}

// splitLines splits on the Unicode line boundaries: "\n", "\r\n", "\r",
// "\v", "\f", the separators \x1c to \x1e, NEL (U+0085), U+2028 and
// U+2029. A trailing line break ends the last line rather than starting an
// empty one.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i, r := range s {
		if i < start {
			continue // "\n" of a "\r\n" pair
		}
		switch r {
		case '\r':
			lines = append(lines, s[start:i])
			start = i + 1
			if strings.HasPrefix(s[start:], "\n") {
				start++
			}
		case '\n', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, s[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
