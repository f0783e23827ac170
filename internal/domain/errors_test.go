package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIError(t *testing.T) {
	err := NewAPIError(ErrCodeInvalidInput, "Invalid message type", "expected ADT^A01 form", "req-123")

	assert.Equal(t, ErrCodeInvalidInput, err.Code)
	assert.Equal(t, "Invalid message type", err.Message)
	assert.Equal(t, "req-123", err.RequestID)
	assert.WithinDuration(t, time.Now().UTC(), err.Timestamp, time.Second)
	assert.Equal(t, "INVALID_INPUT: Invalid message type", err.Error())
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("count", "must be positive", -1)

	assert.Equal(t, "count", err.Field)
	assert.Equal(t, -1, err.Value)
	assert.Contains(t, err.Error(), "validation error for field 'count'")
}

func TestResolutionError(t *testing.T) {
	cause := errors.New("table lookup failed")
	rc := NewResolutionContext(NewGenerationContext(ADT_A01), "PID", 8, FieldMetadata{Name: "Administrative Sex", DataType: TypeIS})

	err := NewResolutionError("table", rc, cause)

	assert.Equal(t, "PID.8", err.Path)
	assert.Equal(t, TypeIS, err.DataType)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "resolver table failed on PID.8")

	bare := NewResolutionError("fallback", nil, cause)
	assert.Empty(t, bare.Path)
}
