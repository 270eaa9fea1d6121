package dbservice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avolkov/docgraph/internal/apperrors"
)

func TestDatabaseError_ToAppError(t *testing.T) {
	tests := []struct {
		name string
		kind ErrorKind
		want apperrors.Kind
	}{
		{"not found maps to not found", ErrNotFound, apperrors.KindNotFound},
		{"validation maps to invalid input", ErrValidation, apperrors.KindInvalidInput},
		{"timeout maps to service unavailable", ErrTimeout, apperrors.KindServiceUnavailable},
		{"connection maps to service unavailable", ErrConnection, apperrors.KindServiceUnavailable},
		{"query maps to internal", ErrQuery, apperrors.KindInternal},
		{"version maps to internal", ErrVersion, apperrors.KindInternal},
		{"configuration maps to internal", ErrConfiguration, apperrors.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbErr := NewDatabaseError(tt.kind, "boom", nil)
			appErr := dbErr.ToAppError()
			assert.Equal(t, tt.want, appErr.Kind)
		})
	}
}

func TestDatabaseError_Unwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	dbErr := NewDatabaseError(ErrQuery, "query failed", cause)
	assert.ErrorIs(t, dbErr, cause)
}

func TestDatabaseError_ErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	dbErr := NewDatabaseError(ErrConnection, "dial failed", cause)
	assert.Contains(t, dbErr.Error(), "connection refused")
	assert.Contains(t, dbErr.Error(), "dial failed")
}
