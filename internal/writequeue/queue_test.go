package writequeue

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, maxSize, maxAttempts int) *Queue {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		SnapshotPath:   filepath.Join(dir, "queue.json"),
		DeadLetterPath: filepath.Join(dir, "deadletter.json"),
		MaxSize:        maxSize,
		MaxAttempts:    maxAttempts,
		FlushInterval:  time.Second,
	}
	return New(cfg, nil, nil)
}

func TestQueue_EnqueueAndNextReady(t *testing.T) {
	q := newTestQueue(t, 10, 3)
	id, err := q.Enqueue("notes", OpCreate, "", json.RawMessage(`{"title":"a"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entry, ok := q.NextReady(time.Now())
	require.True(t, ok)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, OpCreate, entry.Operation)
}

func TestQueue_EnqueueRejectsWhenFull(t *testing.T) {
	q := newTestQueue(t, 1, 3)
	_, err := q.Enqueue("notes", OpCreate, "", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = q.Enqueue("notes", OpCreate, "", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueue_NextReadyRespectsFutureSchedule(t *testing.T) {
	q := newTestQueue(t, 10, 3)
	id, err := q.Enqueue("notes", OpUpdate, "notes:1", json.RawMessage(`{}`))
	require.NoError(t, err)

	_, err = q.Fail(id, errors.New("transient"))
	require.NoError(t, err)

	_, ok := q.NextReady(time.Now())
	assert.False(t, ok, "entry rescheduled into the future should not be ready yet")
}

func TestQueue_CompleteRemovesEntry(t *testing.T) {
	q := newTestQueue(t, 10, 3)
	id, err := q.Enqueue("notes", OpDelete, "notes:1", nil)
	require.NoError(t, err)

	require.NoError(t, q.Complete(id))
	assert.Equal(t, 0, q.Depth())

	err = q.Complete(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueue_FailDeadLettersAfterMaxAttempts(t *testing.T) {
	q := newTestQueue(t, 10, 2)
	id, err := q.Enqueue("notes", OpCreate, "", json.RawMessage(`{}`))
	require.NoError(t, err)

	outcome, err := q.Fail(id, errors.New("fail 1"))
	require.NoError(t, err)
	assert.Equal(t, RetryScheduled, outcome)

	outcome, err = q.Fail(id, errors.New("fail 2"))
	require.NoError(t, err)
	assert.Equal(t, RetryScheduled, outcome)

	outcome, err = q.Fail(id, errors.New("fail 3"))
	require.NoError(t, err)
	assert.Equal(t, PermanentFailure, outcome)
	assert.Equal(t, 0, q.Depth())
}

func TestBackoffFor_CapsAt64SecondsThenClampsTo60(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffFor(1))
	assert.Equal(t, 4*time.Second, backoffFor(2))
	assert.Equal(t, 60*time.Second, backoffFor(6))
	assert.Equal(t, 60*time.Second, backoffFor(7))
	assert.Equal(t, 60*time.Second, backoffFor(100))
}

func TestQueue_PersistAndLoadRoundTrip(t *testing.T) {
	q := newTestQueue(t, 10, 3)
	id, err := q.Enqueue("notes", OpCreate, "", json.RawMessage(`{"title":"durable"}`))
	require.NoError(t, err)
	require.NoError(t, q.Persist())

	reloaded := New(q.cfg, nil, nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 1, reloaded.Depth())

	entry, ok := reloaded.NextReady(time.Now())
	require.True(t, ok)
	assert.Equal(t, id, entry.ID)
}

func TestQueue_LoadMissingSnapshotIsNotAnError(t *testing.T) {
	q := newTestQueue(t, 10, 3)
	assert.NoError(t, q.Load())
	assert.Equal(t, 0, q.Depth())
}

func TestQueue_FailUnknownIDReturnsNotFound(t *testing.T) {
	q := newTestQueue(t, 10, 3)
	_, err := q.Fail("wq_does-not-exist", errors.New("boom"))
	assert.ErrorIs(t, err, ErrNotFound)
}
