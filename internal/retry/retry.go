// Package retry implements exponential backoff with jitter, used by the
// pooled database connection (C6) to retry its initial connect. The
// durable write queue (C7) schedules its replays with its own backoff and
// does not use this package.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/avolkov/docgraph/pkg/metrics"
)

// Policy configures exponential backoff with jitter:
//
//	delay(n) = min(BaseDelay * Multiplier^n, MaxDelay) + jitter * rand()
type Policy struct {
	// MaxAttempts is the maximum number of attempts including the first
	// (0 means retry forever, bounded only by ctx).
	MaxAttempts int

	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// JitterFraction adds up to this fraction of the computed delay as
	// random jitter, to avoid synchronized retry storms across clients.
	JitterFraction float64

	// Classifier decides whether a given error warrants another attempt.
	// Defaults to AlwaysRetryable when nil.
	Classifier Classifier

	Logger *slog.Logger

	// Metrics, when set, records attempt/backoff/outcome observations.
	Metrics *metrics.RetryMetrics

	// OperationName labels metrics and log lines ("db_query", "write_queue_replay").
	OperationName string
}

// DefaultPolicy returns the backoff shape used across the service unless a
// component has a reason to diverge (e.g. the write queue's longer horizon).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		Classifier:     AlwaysRetryable{},
	}
}

// ErrAttemptsExhausted wraps the last error once MaxAttempts is reached.
var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")

// Do executes operation, retrying according to policy until it succeeds,
// the error is classified as non-retryable, ctx is cancelled, or
// MaxAttempts is reached. It returns the last error (wrapped with
// ErrAttemptsExhausted) on exhaustion.
func Do(ctx context.Context, policy Policy, operation func(ctx context.Context) error) error {
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := policy.Classifier
	if classifier == nil {
		classifier = AlwaysRetryable{}
	}
	opName := policy.OperationName
	if opName == "" {
		opName = "unknown"
	}

	delay := policy.BaseDelay
	var lastErr error

	for attempt := 1; policy.MaxAttempts == 0 || attempt <= policy.MaxAttempts; attempt++ {
		attemptStart := time.Now()
		err := operation(ctx)
		elapsed := time.Since(attemptStart).Seconds()

		if err == nil {
			if policy.Metrics != nil {
				policy.Metrics.RecordAttempt(opName, "success", "none", elapsed)
				policy.Metrics.RecordFinalAttempt(opName, "success", attempt)
			}
			if attempt > 1 {
				logger.Info("operation succeeded after retry", "operation", opName, "attempt", attempt)
			}
			return nil
		}

		lastErr = err
		errType := classifyErrorType(err)
		if policy.Metrics != nil {
			policy.Metrics.RecordAttempt(opName, "failure", errType, elapsed)
		}

		if !classifier.IsRetryable(err) {
			logger.Debug("non-retryable error, stopping", "operation", opName, "attempt", attempt, "error", err)
			if policy.Metrics != nil {
				policy.Metrics.RecordFinalAttempt(opName, "non_retryable", attempt)
			}
			return err
		}

		if policy.MaxAttempts != 0 && attempt >= policy.MaxAttempts {
			break
		}

		logger.Warn("operation failed, retrying", "operation", opName, "attempt", attempt, "delay", delay, "error", err)
		if policy.Metrics != nil {
			policy.Metrics.RecordBackoff(opName, delay.Seconds())
		}

		if !sleepWithContext(ctx, delay) {
			if policy.Metrics != nil {
				policy.Metrics.RecordFinalAttempt(opName, "cancelled", attempt)
			}
			return ctx.Err()
		}

		delay = nextDelay(delay, policy)
	}

	if policy.Metrics != nil {
		policy.Metrics.RecordFinalAttempt(opName, "exhausted", policy.MaxAttempts)
	}
	logger.Error("operation failed after all attempts", "operation", opName, "max_attempts", policy.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, policy.MaxAttempts, lastErr)
}

// DoValue is Do for operations that produce a result.
func DoValue[T any](ctx context.Context, policy Policy, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})
	return result, err
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextDelay(current time.Duration, policy Policy) time.Duration {
	next := time.Duration(float64(current) * policy.Multiplier)
	if next > policy.MaxDelay {
		next = policy.MaxDelay
	}
	if policy.JitterFraction > 0 {
		next += time.Duration(float64(next) * policy.JitterFraction * rand.Float64())
	}
	return next
}
