// Package apperrors implements the closed error taxonomy (C4): every
// failure the gateway surfaces to a client maps deterministically to one
// Kind, an HTTP status, and a client-safe message. Internal detail (stack,
// query text, remote address) stays in logs and never reaches the wire.
package apperrors

import (
	"fmt"
	"net/http"
)

// Kind is a closed set — any switch over Kind without a default is meant
// to be exhaustive; adding a variant here is a deliberate taxonomy change,
// not something resolvers should do ad hoc.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindTimeout
	KindRateLimited
	KindBadGateway
	KindServiceUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindTimeout:
		return "TIMEOUT"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindBadGateway:
		return "BAD_GATEWAY"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatus returns the status code this Kind always maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBadGateway:
		return http.StatusBadGateway
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

const genericMessage = "An internal error occurred"

var genericByKind = map[Kind]string{
	KindUnauthenticated:    "authentication required",
	KindTimeout:             "the request timed out",
	KindRateLimited:         "too many requests",
	KindBadGateway:          "upstream dependency returned an invalid response",
	KindServiceUnavailable:  "the service is temporarily unavailable",
	KindInternal:            genericMessage,
}

// AppError is the single error type every outward-facing layer (HTTP, the
// GraphQL error mapper) understands. Message is safe to show a client
// verbatim for Kind in {InvalidInput, Forbidden, NotFound}; every other
// Kind replaces it with a generic surface regardless of what Message holds,
// so resolvers are free to pass through internal detail in Message without
// a leak — New rejects that combination being relied upon by always
// deriving the client-visible text from ClientMessage(), never Message.
type AppError struct {
	Kind          Kind
	Message       string
	RetryAfterSec int
	TraceID       string
	Cause         error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// ClientMessage returns the text safe to serialize back to a caller.
func (e *AppError) ClientMessage() string {
	switch e.Kind {
	case KindInvalidInput, KindForbidden, KindNotFound:
		return e.Message
	default:
		if msg, ok := genericByKind[e.Kind]; ok {
			return msg
		}
		return genericMessage
	}
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func InvalidInput(message string) *AppError  { return New(KindInvalidInput, message) }
func Unauthenticated() *AppError             { return New(KindUnauthenticated, "unauthenticated") }
func Forbidden(message string) *AppError     { return New(KindForbidden, message) }
func NotFound(message string) *AppError      { return New(KindNotFound, message) }
func Timeout() *AppError                     { return New(KindTimeout, "operation timed out") }
func RateLimited() *AppError                 { return New(KindRateLimited, "rate limited") }
func BadGateway(cause error) *AppError        { return Wrap(KindBadGateway, "upstream error", cause) }
func Internal(cause error) *AppError          { return Wrap(KindInternal, "internal error", cause) }

// ServiceUnavailable carries the Retry-After duration (seconds) callers
// must echo in the HTTP header per spec.
func ServiceUnavailable(retryAfterSec int) *AppError {
	return &AppError{Kind: KindServiceUnavailable, Message: "service unavailable", RetryAfterSec: retryAfterSec}
}

// WithTraceID attaches a trace id, returning e for chaining.
func (e *AppError) WithTraceID(traceID string) *AppError {
	e.TraceID = traceID
	return e
}

// As reports whether err is (or wraps) an *AppError, returning it.
func As(err error) (*AppError, bool) {
	type wrapper interface{ Unwrap() error }
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			return ae, true
		}
		w, ok := err.(wrapper)
		if !ok {
			return nil, false
		}
		err = w.Unwrap()
	}
	return nil, false
}

// FromError converts any error into an AppError, defaulting to Internal
// when err is not already one (or wrapping one).
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return Internal(err)
}
