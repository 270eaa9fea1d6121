package dbservice

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteService(t *testing.T) *SQLiteService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docgraph.db")
	svc, err := NewSQLiteService(path, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Connect(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestNewSQLiteService_RejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteService("", nil)
	require.Error(t, err)
	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, ErrConfiguration, dbErr.Kind)
}

func TestNewSQLiteService_RejectsPathTraversal(t *testing.T) {
	_, err := NewSQLiteService("../escape.db", nil)
	require.Error(t, err)
}

func TestSQLiteService_CreateReadUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestSQLiteService(t)

	id, err := svc.Create(ctx, "notes", json.RawMessage(`{"title":"hello"}`))
	require.NoError(t, err)
	assert.Contains(t, id, "notes:")

	body, found, err := svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"title":"hello"}`, string(body))

	require.NoError(t, svc.Update(ctx, "notes", id, json.RawMessage(`{"title":"updated"}`)))
	body, _, err = svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"updated"}`, string(body))

	require.NoError(t, svc.Delete(ctx, "notes", id))
	_, found, err = svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteService_UpdateMissingReturnsNotFound(t *testing.T) {
	svc := newTestSQLiteService(t)
	err := svc.Update(context.Background(), "notes", "notes:missing", json.RawMessage(`{}`))
	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, ErrNotFound, dbErr.Kind)
}

func TestSQLiteService_QueryRejectsUnknownStatement(t *testing.T) {
	svc := newTestSQLiteService(t)
	_, err := svc.Query(context.Background(), "unsupported", nil)
	require.Error(t, err)
	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, ErrValidation, dbErr.Kind)
}

func TestSQLiteService_QueryListsByCollectionInOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestSQLiteService(t)

	_, err := svc.Create(ctx, "notes", json.RawMessage(`{"title":"first"}`))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "notes", json.RawMessage(`{"title":"second"}`))
	require.NoError(t, err)

	results, err := svc.Query(ctx, "list_by_collection", map[string]interface{}{"collection": "notes"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSQLiteService_Version(t *testing.T) {
	svc := newTestSQLiteService(t)
	version, err := svc.Version(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestSQLiteService_Health(t *testing.T) {
	svc := newTestSQLiteService(t)
	assert.NoError(t, svc.Health(context.Background()))
}
