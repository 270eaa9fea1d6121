//go:build integration

package dbservice

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/avolkov/docgraph/internal/pool"
)

// newTestPostgresService starts a disposable Postgres container, points
// internal/pool at it, and returns a connected *PostgresService. Connect
// applies the documents-table schema itself, so the test never needs a
// migration step.
func newTestPostgresService(t *testing.T) *PostgresService {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("docgraph_test"),
		postgres.WithUsername("docgraph"),
		postgres.WithPassword("docgraph"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	poolCfg := pool.DefaultConfig()
	poolCfg.Host = host
	poolCfg.Port = mappedPort.Int()
	poolCfg.Database = "docgraph_test"
	poolCfg.User = "docgraph"
	poolCfg.Password = "docgraph"

	p := pool.New(poolCfg, nil, nil)
	svc := NewPostgresService(p)
	require.NoError(t, svc.Connect(ctx))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestPostgresService_CreateReadUpdateDelete(t *testing.T) {
	svc := newTestPostgresService(t)
	ctx := context.Background()

	body, err := json.Marshal(map[string]any{"title": "first note", "author": "ada"})
	require.NoError(t, err)

	id, err := svc.Create(ctx, "notes", body)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	read, ok, err := svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(body), string(read))

	patch, err := json.Marshal(map[string]any{"title": "updated note", "author": "ada"})
	require.NoError(t, err)
	require.NoError(t, svc.Update(ctx, "notes", id, patch))

	read, ok, err = svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(patch), string(read))

	require.NoError(t, svc.Delete(ctx, "notes", id))
	_, ok, err = svc.Read(ctx, "notes", id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresService_HealthAndVersion(t *testing.T) {
	svc := newTestPostgresService(t)
	ctx := context.Background()

	require.NoError(t, svc.Health(ctx))

	version, err := svc.Version(ctx)
	require.NoError(t, err)
	assert.Contains(t, version, "PostgreSQL")
}
