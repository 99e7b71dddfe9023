package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/faultline/internal/fingerprint"
	"github.com/scrypster/faultline/pkg/types"
)

func authEvent() types.RawErrorEvent {
	return types.RawErrorEvent{
		Service:     "auth-service",
		Environment: types.EnvironmentProduction,
		Timestamp:   "2025-03-01T10:00:00Z",
		Level:       types.LevelError,
		Message:     "User authentication failed",
		ErrorType:   "AuthenticationError",
		Severity:    "medium",
		StackTrace:  "line1\nline2\nAuthenticationError: bad token",
		RequestID:   "req_0001",
	}
}

func TestFingerprint_KnownValue(t *testing.T) {
	rec := fingerprint.Normalize(authEvent())
	assert.Equal(t, "8b3a8ba4fcb3fa2fd262cff1298ba0c2e70900c8", rec.Fingerprint)
	assert.Len(t, rec.Fingerprint, 40)
}

func TestNormalize_Deterministic(t *testing.T) {
	ev := authEvent()
	first := fingerprint.Normalize(ev)
	second := fingerprint.Normalize(ev)
	assert.Equal(t, first, second)
	assert.Equal(t,
		fingerprint.Fingerprint(ev.Service, ev.ErrorType, "AuthenticationError: bad token"),
		first.Fingerprint)
}

// TestNormalize_IgnoresVolatileFields verifies that message, timestamp,
// request ID, severity and the non-final stack lines do not affect identity.
func TestNormalize_IgnoresVolatileFields(t *testing.T) {
	base := fingerprint.Normalize(authEvent())

	ev := authEvent()
	ev.Message = "something else entirely"
	ev.Timestamp = "2030-01-01T00:00:00Z"
	ev.RequestID = "req_ffff"
	ev.Severity = "critical"
	ev.Environment = types.EnvironmentStaging
	ev.StackTrace = "other\nframes\nhere\nAuthenticationError: bad token"

	assert.Equal(t, base.Fingerprint, fingerprint.Normalize(ev).Fingerprint)
}

func TestNormalize_SensitiveToIdentityFields(t *testing.T) {
	base := fingerprint.Normalize(authEvent()).Fingerprint

	ev := authEvent()
	ev.ErrorType = "TokenExpiredError"
	assert.NotEqual(t, base, fingerprint.Normalize(ev).Fingerprint)

	ev = authEvent()
	ev.StackTrace = "line1\nline2\nAuthenticationError: expired token"
	assert.NotEqual(t, base, fingerprint.Normalize(ev).Fingerprint)

	ev = authEvent()
	ev.Service = "billing-api"
	assert.NotEqual(t, base, fingerprint.Normalize(ev).Fingerprint)
}

func TestNormalize_EmptyTrace(t *testing.T) {
	ev := authEvent()
	ev.StackTrace = ""

	rec := fingerprint.Normalize(ev)
	assert.Equal(t, "", rec.StackSummary)
	assert.Equal(t, "2cd11df99972a71451daa12556159519edafb8e8", rec.Fingerprint)
	assert.Equal(t, fingerprint.Fingerprint("auth-service", "AuthenticationError", ""), rec.Fingerprint)
}

func TestNormalize_CopiesFieldsThrough(t *testing.T) {
	ev := authEvent()
	rec := fingerprint.Normalize(ev)

	assert.Equal(t, ev.Service, rec.Service)
	assert.Equal(t, ev.Environment, rec.Environment)
	assert.Equal(t, ev.ErrorType, rec.ErrorType)
	assert.Equal(t, ev.Severity, rec.Severity)
	assert.Equal(t, ev.Message, rec.Message)
	assert.Equal(t, ev.Timestamp, rec.Timestamp)
	assert.Equal(t, ev.RequestID, rec.RequestID)
}

func TestLastStackLine(t *testing.T) {
	tests := []struct {
		name  string
		trace string
		want  string
	}{
		{"empty", "", ""},
		{"single line", "ValueError: x", "ValueError: x"},
		{"multi line", "a\nb\nc", "c"},
		{"trailing newline", "a\nb\nc\n", "c"},
		{"crlf", "a\r\nb\r\nc", "c"},
		{"bare cr", "a\rb", "b"},
		{"cr then lf run", "a\r\n\nb", "b"},
		{"vertical tab", "a\vb", "b"},
		{"form feed", "a\fb\f", "b"},
		{"record separator", "a\x1eb", "b"},
		{"next line", "a\u0085b", "b"},
		{"line separator", "a\u2028b", "b"},
		{"paragraph separator", "a\u2029b\u2029", "b"},
		{"multibyte text", "é\nüß", "üß"},
		{"only newline", "\n", ""},
		{"blank final line", "a\n\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fingerprint.LastStackLine(tt.trace))
		})
	}
}

func TestStackSummary(t *testing.T) {
	assert.Equal(t, "", fingerprint.StackSummary(""))
	assert.Equal(t, "only", fingerprint.StackSummary("only"))
	assert.Equal(t, "a\nb", fingerprint.StackSummary("a\nb\n"))
	assert.Equal(t, "a\nb\nc", fingerprint.StackSummary("a\nb\nc\nd\ne"))
	assert.Equal(t, "a\nb\nc", fingerprint.StackSummary("a\r\nb\r\nc\r\nd"))
	assert.Equal(t, "a\nb\nc", fingerprint.StackSummary("a\fb\u2028c\x1cd"))
}

func TestNormalizer_Strict(t *testing.T) {
	n := fingerprint.New(true)
	require.True(t, n.Strict())

	rec, err := n.Normalize(authEvent())
	require.NoError(t, err)
	assert.Equal(t, fingerprint.Normalize(authEvent()), rec)

	ev := authEvent()
	ev.Service = ""
	_, err = n.Normalize(ev)
	require.Error(t, err)
	assert.True(t, types.IsValidationError(err))
}

func TestNormalizer_LenientHashesEmptyKey(t *testing.T) {
	n := fingerprint.New(false)

	rec, err := n.Normalize(types.RawErrorEvent{})
	require.NoError(t, err)
	assert.Equal(t, "c65f37b2cb1ae26c89e9b4f26e2ca9e9cde4ae5b", rec.Fingerprint)

	var zero fingerprint.Normalizer
	_, err = zero.Normalize(types.RawErrorEvent{})
	assert.NoError(t, err)
}
