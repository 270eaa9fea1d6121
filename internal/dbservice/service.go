// Package dbservice implements the database service abstraction (C5): a
// capability interface the rest of the gateway depends on, independent of
// the concrete store behind it. Three backends exist: MockService for
// tests and demo mode, SQLiteService for the embedded "lite" deployment
// profile, and PostgresService as the production adapter storing documents
// as JSONB rows.
package dbservice

import (
	"context"
	"encoding/json"
)

// Service is the capability interface resolvers and the write queue
// depend on. Every method is fallible with a *DatabaseError.
type Service interface {
	// Connect establishes the backend connection and runs the version
	// gate. Must be called once before any other method.
	Connect(ctx context.Context) error

	// Health reports whether the backend is currently reachable.
	Health(ctx context.Context) error

	// Version returns the backend's reported version string.
	Version(ctx context.Context) (string, error)

	// Create inserts value into collection and returns the generated id.
	Create(ctx context.Context, collection string, value json.RawMessage) (string, error)

	// Read fetches the document with id in collection. The bool return
	// is false (with a nil error) when the document does not exist —
	// callers that want a DatabaseError for a missing document should
	// check ErrNotFound semantics explicitly at the resolver layer.
	Read(ctx context.Context, collection, id string) (json.RawMessage, bool, error)

	// Update applies patch over the existing document. Returns
	// ErrNotFound if id does not exist in collection.
	Update(ctx context.Context, collection, id string, patch json.RawMessage) error

	// Delete removes the document. Returns ErrNotFound if it does not
	// exist.
	Delete(ctx context.Context, collection, id string) error

	// Query runs a backend-specific statement with named bindings and
	// returns the matching documents. statement is never built from raw
	// user input by callers in this codebase — it is always one of a
	// fixed set of resolver-owned query templates.
	Query(ctx context.Context, statement string, bindings map[string]interface{}) ([]json.RawMessage, error)

	// Close releases backend resources.
	Close() error
}

// VersionRange declares the inclusive version bounds a Service
// implementation is known to work with, and a wider "untested but
// probably fine" range that only warns.
type VersionRange struct {
	MinCompatible string
	MaxCompatible string
	MinTested     string
	MaxTested     string
}
