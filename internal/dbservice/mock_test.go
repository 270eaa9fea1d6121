package dbservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockService_CreateReadUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService(FailureInjection{})
	require.NoError(t, svc.Connect(ctx))

	id, err := svc.Create(ctx, "notes", json.RawMessage(`{"title":"hello"}`))
	require.NoError(t, err)
	assert.Contains(t, id, "notes:")

	body, found, err := svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"title":"hello"}`, string(body))

	require.NoError(t, svc.Update(ctx, "notes", id, json.RawMessage(`{"title":"updated"}`)))
	body, found, err = svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"title":"updated"}`, string(body))

	require.NoError(t, svc.Delete(ctx, "notes", id))
	_, found, err = svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMockService_ReadMissingReturnsNotFoundFalseNoError(t *testing.T) {
	svc := NewMockService(FailureInjection{})
	_, found, err := svc.Read(context.Background(), "notes", "notes:does-not-exist")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMockService_UpdateMissingReturnsNotFound(t *testing.T) {
	svc := NewMockService(FailureInjection{})
	err := svc.Update(context.Background(), "notes", "notes:missing", json.RawMessage(`{}`))
	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, ErrNotFound, dbErr.Kind)
}

func TestMockService_DeleteMissingReturnsNotFound(t *testing.T) {
	svc := NewMockService(FailureInjection{})
	err := svc.Delete(context.Background(), "notes", "notes:missing")
	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, ErrNotFound, dbErr.Kind)
}

func TestMockService_FailureInjection(t *testing.T) {
	svc := NewMockService(FailureInjection{FailConnect: true})
	err := svc.Connect(context.Background())
	require.Error(t, err)

	svc2 := NewMockService(FailureInjection{FailHealth: true})
	require.NoError(t, svc2.Connect(context.Background()))
	require.Error(t, svc2.Health(context.Background()))

	injectedErr := errors.New("simulated outage")
	svc3 := NewMockService(FailureInjection{FailOperations: map[string]error{"create": injectedErr}})
	_, err = svc3.Create(context.Background(), "notes", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, injectedErr)
}

func TestMockService_QueryListsByCollection(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService(FailureInjection{})
	_, err := svc.Create(ctx, "notes", json.RawMessage(`{"title":"a"}`))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "notes", json.RawMessage(`{"title":"b"}`))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "other", json.RawMessage(`{"title":"c"}`))
	require.NoError(t, err)

	results, err := svc.Query(ctx, "all", map[string]interface{}{"collection": "notes"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMockService_IsConnectedReflectsLifecycle(t *testing.T) {
	svc := NewMockService(FailureInjection{})
	assert.False(t, svc.IsConnected())
	require.NoError(t, svc.Connect(context.Background()))
	assert.True(t, svc.IsConnected())
	require.NoError(t, svc.Close())
	assert.False(t, svc.IsConnected())
}
