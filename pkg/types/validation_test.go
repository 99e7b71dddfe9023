package types_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/faultline/pkg/types"
)

func validEvent() types.RawErrorEvent {
	return types.RawErrorEvent{
		Service:     "billing-api",
		Environment: types.EnvironmentProduction,
		Timestamp:   "2025-03-01T10:00:00Z",
		Level:       types.LevelError,
		Message:     "Payment gateway timeout",
		ErrorType:   "TimeoutError",
		Severity:    "high",
		StackTrace:  "Traceback (most recent call last):\nTimeoutError: Payment gateway timeout",
		RequestID:   "req_1234abcd",
	}
}

func TestValidateEvent_Valid(t *testing.T) {
	assert.NoError(t, types.ValidateEvent(validEvent()))
}

func TestValidateEvent_OptionalFieldsMayBeEmpty(t *testing.T) {
	ev := types.RawErrorEvent{Service: "auth-service", ErrorType: "AuthenticationError"}
	assert.NoError(t, types.ValidateEvent(ev))
}

func TestValidateEvent_MissingRequiredFields(t *testing.T) {
	ev := validEvent()
	ev.Service = ""
	ev.ErrorType = "   "

	err := types.ValidateEvent(ev)
	require.Error(t, err)

	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 2)
	assert.Equal(t, "service", ve.Fields[0].Field)
	assert.Equal(t, "error_type", ve.Fields[1].Field)
	assert.Contains(t, err.Error(), "service: is required")
}

func TestValidateEvent_EnumsAndTimestamp(t *testing.T) {
	ev := validEvent()
	ev.Environment = "qa"
	ev.Level = "FATAL"
	ev.Timestamp = "yesterday"

	err := types.ValidateEvent(ev)
	require.Error(t, err)

	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"environment", "level", "timestamp"}, fields)
}

func TestIsValidationError_Wrapped(t *testing.T) {
	err := fmt.Errorf("record incident: %w", types.ValidateEvent(types.RawErrorEvent{}))
	assert.True(t, types.IsValidationError(err))
	assert.False(t, types.IsValidationError(errors.New("boom")))
}

func TestValidateUpsert(t *testing.T) {
	assert.NoError(t, types.ValidateUpsert(types.KnownErrorUpsert{Fingerprint: "abc"}))
	assert.True(t, types.IsValidationError(types.ValidateUpsert(types.KnownErrorUpsert{})))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-01T10:00:00Z", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2025-03-01T12:00:00+02:00", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2025-03-01T10:00:00.250Z", time.Date(2025, 3, 1, 10, 0, 0, 250_000_000, time.UTC)},
		{"2025-03-01T10:00:00", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := types.ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %v", tt.in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, err := types.ParseTimestamp("")
	assert.Error(t, err)
	_, err = types.ParseTimestamp("01/03/2025")
	assert.Error(t, err)
}

func TestIsValidEnvironmentAndLevel(t *testing.T) {
	for _, env := range types.ValidEnvironments {
		assert.True(t, types.IsValidEnvironment(env))
	}
	assert.True(t, types.IsValidEnvironment(""))
	assert.False(t, types.IsValidEnvironment("Production"))

	for _, lvl := range types.ValidLevels {
		assert.True(t, types.IsValidLevel(lvl))
	}
	assert.False(t, types.IsValidLevel("error"))
}
