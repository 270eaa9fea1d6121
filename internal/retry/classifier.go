package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Classifier decides whether an error returned by an attempted operation
// warrants another attempt.
type Classifier interface {
	IsRetryable(err error) bool
}

// AlwaysRetryable retries every non-nil error. Used where the operation
// itself (a health probe, a best-effort cache refresh) has no notion of a
// permanent failure.
type AlwaysRetryable struct{}

func (AlwaysRetryable) IsRetryable(err error) bool { return err != nil }

// NeverRetryable never retries; useful for composing with ChainClassifier
// during tests.
type NeverRetryable struct{}

func (NeverRetryable) IsRetryable(err error) bool { return false }

// ChainClassifier retries if any member classifier says the error is
// retryable.
type ChainClassifier struct {
	Classifiers []Classifier
}

func (c ChainClassifier) IsRetryable(err error) bool {
	for _, classifier := range c.Classifiers {
		if classifier.IsRetryable(err) {
			return true
		}
	}
	return false
}

// postgresRetryableCodes lists SQLSTATE classes the pool treats as
// transient: connection exceptions, the "cannot connect now" class raised
// during restarts, and a handful of serialization/deadlock conditions that
// clear on their own.
var postgresRetryableCodes = map[string]struct{}{
	"08000": {}, "08003": {}, "08006": {}, "08001": {}, "08004": {}, // connection_exception family
	"57P03": {}, // cannot_connect_now
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53300": {}, // too_many_connections
}

// PostgresClassifier treats Postgres connection failures and a bounded set
// of retryable SQLSTATE codes as transient, network errors as transient,
// and anything else (constraint violations, syntax errors, permission
// errors) as permanent.
type PostgresClassifier struct{}

func (PostgresClassifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := postgresRetryableCodes[pgErr.Code]
		return ok
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH)
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "i/o timeout")
}

// classifyErrorType buckets an error into a small, stable metrics label so
// it can't blow up cardinality the way err.Error() would.
func classifyErrorType(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.Canceled) {
		return "context_cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "context_deadline"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "postgres_" + pgErr.Code
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "network"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "network"
	default:
		return "unknown"
	}
}
