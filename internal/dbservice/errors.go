package dbservice

import (
	"fmt"

	"github.com/avolkov/docgraph/internal/apperrors"
)

// ErrorKind is the closed set of failure modes a Service implementation
// may report; every variant has a fixed mapping onto apperrors.Kind.
type ErrorKind int

const (
	ErrConnection ErrorKind = iota
	ErrQuery
	ErrTimeout
	ErrVersion
	ErrNotFound
	ErrValidation
	ErrConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConnection:
		return "connection"
	case ErrQuery:
		return "query"
	case ErrTimeout:
		return "timeout"
	case ErrVersion:
		return "version"
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	case ErrConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// DatabaseError is the error type every Service method returns on failure.
type DatabaseError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dbservice: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("dbservice: %s: %s", e.Kind, e.Message)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

func NewDatabaseError(kind ErrorKind, message string, cause error) *DatabaseError {
	return &DatabaseError{Kind: kind, Message: message, Cause: cause}
}

// ToAppError converts a DatabaseError into the outward-facing AppError per
// the fixed mapping: NotFound→NotFound, Validation→InvalidInput,
// Timeout/Connection→ServiceUnavailable, everything else→Internal.
func (e *DatabaseError) ToAppError() *apperrors.AppError {
	switch e.Kind {
	case ErrNotFound:
		return apperrors.NotFound(e.Message)
	case ErrValidation:
		return apperrors.InvalidInput(e.Message)
	case ErrTimeout, ErrConnection:
		return apperrors.ServiceUnavailable(30)
	default:
		return apperrors.Internal(e)
	}
}
