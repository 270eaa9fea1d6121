package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_AllUp(t *testing.T) {
	checkerA := NewCheckerFunc("store", func(ctx context.Context) error { return nil })
	checkerB := NewCheckerFunc("authz", func(ctx context.Context) error { return nil })

	sup := NewSupervisor([]Checker{checkerA, checkerB}, Config{
		Interval: time.Hour, StaleAfter: time.Hour, MaxStale: time.Hour, CheckTimeout: time.Second,
	}, nil, nil)

	sup.Start(context.Background())
	defer sup.Stop()

	snap := sup.Snapshot(context.Background())
	assert.True(t, snap.IsReady())
	assert.Equal(t, StatusUp, snap.Dependencies["store"].Status)
	assert.Equal(t, StatusUp, snap.Dependencies["authz"].Status)
}

func TestSupervisor_OneDownMakesOverallDown(t *testing.T) {
	checkerA := NewCheckerFunc("store", func(ctx context.Context) error { return nil })
	checkerB := NewCheckerFunc("authz", func(ctx context.Context) error { return errors.New("unreachable") })

	sup := NewSupervisor([]Checker{checkerA, checkerB}, Config{
		Interval: time.Hour, StaleAfter: time.Hour, MaxStale: time.Hour, CheckTimeout: time.Second,
	}, nil, nil)

	sup.Start(context.Background())
	defer sup.Stop()

	snap := sup.Snapshot(context.Background())
	require.False(t, snap.IsReady())
	assert.Equal(t, StatusDown, snap.Dependencies["authz"].Status)
	assert.Equal(t, StatusUp, snap.Dependencies["store"].Status)
}

func TestSupervisor_StaleWhileRevalidate(t *testing.T) {
	var calls int32
	checker := NewCheckerFunc("store", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	sup := NewSupervisor([]Checker{checker}, Config{
		Interval: time.Hour, StaleAfter: 10 * time.Millisecond, MaxStale: time.Hour, CheckTimeout: time.Second,
	}, nil, nil)

	sup.Start(context.Background())
	defer sup.Stop()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	time.Sleep(20 * time.Millisecond)

	snap := sup.Snapshot(context.Background())
	assert.True(t, snap.IsReady(), "stale snapshot should still be served immediately")

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, 5*time.Millisecond, "background refresh should have run")
}

func TestSupervisor_BeyondMaxStaleBlocksForFreshCheck(t *testing.T) {
	var calls int32
	checker := NewCheckerFunc("store", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	sup := NewSupervisor([]Checker{checker}, Config{
		Interval: time.Hour, StaleAfter: time.Hour, MaxStale: 5 * time.Millisecond, CheckTimeout: time.Second,
	}, nil, nil)

	sup.Start(context.Background())
	defer sup.Stop()

	time.Sleep(10 * time.Millisecond)

	before := atomic.LoadInt32(&calls)
	_ = sup.Snapshot(context.Background())
	assert.Greater(t, atomic.LoadInt32(&calls), before)
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	checker := NewCheckerFunc("store", func(ctx context.Context) error { return errors.New("down") })
	cb := NewCircuitBreaker(checker, 2, time.Hour)

	require.Error(t, cb.Check(context.Background()))
	require.Error(t, cb.Check(context.Background()))
	assert.Equal(t, BreakerOpen, cb.State())

	err := cb.Check(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_ClosesAfterResetTimeoutAndSuccess(t *testing.T) {
	failing := true
	checker := NewCheckerFunc("store", func(ctx context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	cb := NewCircuitBreaker(checker, 1, 5*time.Millisecond)

	require.Error(t, cb.Check(context.Background()))
	assert.Equal(t, BreakerOpen, cb.State())

	time.Sleep(10 * time.Millisecond)
	failing = false

	require.NoError(t, cb.Check(context.Background()))
	assert.Equal(t, BreakerClosed, cb.State())
}
