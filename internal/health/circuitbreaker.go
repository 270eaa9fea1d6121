package health

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by CircuitBreaker.Check while the breaker is
// open and the reset timeout has not yet elapsed, so the underlying
// dependency isn't probed again until it has had a chance to recover.
var ErrCircuitOpen = errors.New("health: circuit breaker open")

// BreakerState mirrors the classic three-state circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// CircuitBreaker wraps a Checker so that once it has failed MaxFailures
// consecutive times, further checks short-circuit to ErrCircuitOpen
// instead of re-probing a dependency that is known to be down, until
// ResetTimeout has passed and a single half-open probe is allowed through.
type CircuitBreaker struct {
	checker      Checker
	maxFailures  int
	resetTimeout time.Duration

	mu           sync.Mutex
	failureCount int
	lastFailure  time.Time
	state        BreakerState
}

// NewCircuitBreaker wraps checker with breaker behavior.
func NewCircuitBreaker(checker Checker, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &CircuitBreaker{checker: checker, maxFailures: maxFailures, resetTimeout: resetTimeout}
}

func (c *CircuitBreaker) Name() string { return c.checker.Name() }

// Check runs the underlying checker unless the breaker is open and the
// reset timeout hasn't elapsed.
func (c *CircuitBreaker) Check(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case BreakerOpen:
		if time.Since(c.lastFailure) > c.resetTimeout {
			c.state = BreakerHalfOpen
		} else {
			c.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	c.mu.Unlock()

	err := c.checker.Check(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failureCount++
		c.lastFailure = time.Now()
		if c.failureCount >= c.maxFailures {
			c.state = BreakerOpen
		}
		return err
	}
	c.failureCount = 0
	c.state = BreakerClosed
	return nil
}

// State returns the breaker's current state.
func (c *CircuitBreaker) State() BreakerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
