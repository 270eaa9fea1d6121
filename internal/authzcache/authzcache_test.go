package authzcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/docgraph/internal/apperrors"
)

type fakeAuthorizer struct {
	calls   atomic.Int32
	allowed bool
	err     error
	delay   time.Duration
}

func (f *fakeAuthorizer) Check(ctx context.Context, subject, resource, action string) (bool, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return f.allowed, f.err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OutageBudget = 50 * time.Millisecond
	return cfg
}

func TestCache_CachesDecisionAcrossCalls(t *testing.T) {
	authorizer := &fakeAuthorizer{allowed: true}
	c := New(testConfig(), authorizer, nil, nil, nil)

	allowed, err := c.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = c.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.Equal(t, int32(1), authorizer.calls.Load(), "second lookup should be served from cache")
}

func TestCache_IsolatedPerSubject(t *testing.T) {
	authorizer := &fakeAuthorizer{allowed: true}
	c := New(testConfig(), authorizer, nil, nil, nil)

	_, err := c.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)

	authorizer.allowed = false
	allowed, err := c.Authorize(context.Background(), "user-2", "notes", "read", false)
	require.NoError(t, err)
	assert.False(t, allowed, "a different subject must not reuse user-1's cached decision")
	assert.Equal(t, int32(2), authorizer.calls.Load())
}

func TestCache_EmptySubjectIsUnauthenticated(t *testing.T) {
	c := New(testConfig(), &fakeAuthorizer{allowed: true}, nil, nil, nil)
	_, err := c.Authorize(context.Background(), "", "notes", "read", false)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindUnauthenticated, appErr.Kind)
}

func TestCache_MutationFailsClosedOnOutage(t *testing.T) {
	authorizer := &fakeAuthorizer{err: errors.New("authorization service unreachable")}
	cfg := testConfig()
	cfg.FailOpenReads = true // even with reads fail-open, mutations must still fail closed
	c := New(cfg, authorizer, nil, nil, nil)

	allowed, err := c.Authorize(context.Background(), "user-1", "notes", "write", true)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCache_ReadsFailOpenWhenConfigured(t *testing.T) {
	authorizer := &fakeAuthorizer{err: errors.New("authorization service unreachable")}
	cfg := testConfig()
	cfg.FailOpenReads = true
	c := New(cfg, authorizer, nil, nil, nil)

	allowed, err := c.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCache_ReadsFailClosedByDefault(t *testing.T) {
	authorizer := &fakeAuthorizer{err: errors.New("authorization service unreachable")}
	c := New(testConfig(), authorizer, nil, nil, nil)

	allowed, err := c.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRequireAuth_DeniedReturnsForbidden(t *testing.T) {
	c := New(testConfig(), &fakeAuthorizer{allowed: false}, nil, nil, nil)
	err := c.RequireAuth(context.Background(), "user-1", "notes", "delete", true)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindForbidden, appErr.Kind)
}

func TestRequireAuth_AllowedReturnsNil(t *testing.T) {
	c := New(testConfig(), &fakeAuthorizer{allowed: true}, nil, nil, nil)
	err := c.RequireAuth(context.Background(), "user-1", "notes", "read", false)
	assert.NoError(t, err)
}

func TestCache_SharedTierServesAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	cfg.UseSharedTier = true

	authorizer := &fakeAuthorizer{allowed: true}
	producer := New(cfg, authorizer, client, nil, nil)

	allowed, err := producer.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int32(1), authorizer.calls.Load())

	// A second, distinct Cache instance (as another gateway replica would
	// construct) must find the decision in the shared tier without
	// calling the authorizer again; its own local shard cache is empty, so
	// the lookup falls through to the shared tier.
	consumer := New(cfg, authorizer, client, nil, nil)
	allowed, err = consumer.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int32(1), authorizer.calls.Load(), "shared tier hit must not re-invoke the authorizer")
}

func TestCache_TTLExpiryTriggersRecheck(t *testing.T) {
	authorizer := &fakeAuthorizer{allowed: true}
	cfg := testConfig()
	cfg.TTL = 10 * time.Millisecond
	c := New(cfg, authorizer, nil, nil, nil)

	_, err := c.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = c.Authorize(context.Background(), "user-1", "notes", "read", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), authorizer.calls.Load())
}
