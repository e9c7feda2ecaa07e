package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceErrorCodesAndStatus(t *testing.T) {
	tests := []struct {
		err        error
		code       string
		statusCode int
	}{
		{NewValidationError("bad input"), ErrCodeValidation, http.StatusBadRequest},
		{NewNotFoundError("Emergency"), ErrCodeNotFound, http.StatusNotFound},
		{NewNotAuthorizedError("nope"), ErrCodeNotAuthorized, http.StatusForbidden},
		{NewInvalidTransitionError("pending", "completed"), ErrCodeInvalidTransition, http.StatusConflict},
		{NewAlreadyClaimedError("abc", "AMB-1"), ErrCodeAlreadyClaimed, http.StatusConflict},
		{NewAlreadyResolvedError("expired"), ErrCodeAlreadyResolved, http.StatusConflict},
		{NewAmbulanceBusyError(), ErrCodeAmbulanceBusy, http.StatusConflict},
		{NewStoreUnavailableError("claim", errors.New("timeout")), ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{NewInternalError("boom"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		serviceErr, ok := GetServiceError(tt.err)
		require.True(t, ok, "%v", tt.err)
		assert.Equal(t, tt.code, serviceErr.Code)
		assert.Equal(t, tt.statusCode, serviceErr.StatusCode)
		assert.True(t, HasErrorCode(tt.err, tt.code))
	}
}

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("accept failed: %w", NewAmbulanceBusyError())

	serviceErr, ok := GetServiceError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeAmbulanceBusy, serviceErr.Code)

	_, ok = GetServiceError(errors.New("plain"))
	assert.False(t, ok)
}

func TestAlreadyClaimedDetailsNameHolder(t *testing.T) {
	serviceErr, _ := GetServiceError(NewAlreadyClaimedError("64f0c2", "AMB-7"))
	assert.Contains(t, serviceErr.Details, "AMB-7")
	assert.Contains(t, serviceErr.Details, "64f0c2")

	// Holder unknown: no details rather than an empty pair.
	serviceErr, _ = GetServiceError(NewAlreadyClaimedError("", ""))
	assert.Empty(t, serviceErr.Details)
}

func TestAsStaleState(t *testing.T) {
	stale := StaleStateError{ID: "abc", Expected: "pending", Actual: "assigned"}
	wrapped := fmt.Errorf("claim: %w", stale)

	got, ok := AsStaleState(wrapped)
	require.True(t, ok)
	assert.Equal(t, "assigned", got.Actual)

	_, ok = AsStaleState(NewAmbulanceBusyError())
	assert.False(t, ok)
}

func TestStoreUnavailableUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreUnavailableError("claim emergency", cause)
	assert.True(t, errors.Is(err, cause))
}
