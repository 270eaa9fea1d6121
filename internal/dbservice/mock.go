package dbservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FailureInjection configures deterministic failures for MockService, used
// by the MockService tests.
type FailureInjection struct {
	FailConnect bool
	FailHealth  bool
	// FailOperations, when non-empty, causes the named operation
	// ("create", "read", "update", "delete", "query") to fail.
	FailOperations map[string]error
}

// MockService is a deterministic, in-memory Service used for tests and
// demo mode. It is selected by the "mock" profile, which the config layer
// accepts in every environment.
type MockService struct {
	mu        sync.RWMutex
	documents map[string]map[string]json.RawMessage // collection -> id -> body
	connected bool
	inject    FailureInjection
	version   string
}

// NewMockService creates a MockService with the given failure injection
// (pass a zero-value FailureInjection for no injected failures).
func NewMockService(inject FailureInjection) *MockService {
	return &MockService{
		documents: make(map[string]map[string]json.RawMessage),
		inject:    inject,
		version:   "mock-1.0",
	}
}

func (m *MockService) Connect(ctx context.Context) error {
	if m.inject.FailConnect {
		return NewDatabaseError(ErrConnection, "mock: injected connect failure", nil)
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *MockService) Health(ctx context.Context) error {
	if m.inject.FailHealth {
		return NewDatabaseError(ErrConnection, "mock: injected health failure", nil)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return NewDatabaseError(ErrConnection, "mock: not connected", nil)
	}
	return nil
}

func (m *MockService) Version(ctx context.Context) (string, error) {
	return m.version, nil
}

func (m *MockService) Create(ctx context.Context, collection string, value json.RawMessage) (string, error) {
	if err, ok := m.inject.FailOperations["create"]; ok {
		return "", NewDatabaseError(ErrQuery, "mock: injected create failure", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.documents[collection] == nil {
		m.documents[collection] = make(map[string]json.RawMessage)
	}
	id := fmt.Sprintf("%s:%s", collection, uuid.NewString())
	m.documents[collection][id] = append(json.RawMessage(nil), value...)
	return id, nil
}

func (m *MockService) Read(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	if err, ok := m.inject.FailOperations["read"]; ok {
		return nil, false, NewDatabaseError(ErrQuery, "mock: injected read failure", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.documents[collection][id]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), body...), true, nil
}

func (m *MockService) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	if err, ok := m.inject.FailOperations["update"]; ok {
		return NewDatabaseError(ErrQuery, "mock: injected update failure", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[collection][id]; !ok {
		return NewDatabaseError(ErrNotFound, fmt.Sprintf("document %s/%s not found", collection, id), nil)
	}
	m.documents[collection][id] = append(json.RawMessage(nil), patch...)
	return nil
}

func (m *MockService) Delete(ctx context.Context, collection, id string) error {
	if err, ok := m.inject.FailOperations["delete"]; ok {
		return NewDatabaseError(ErrQuery, "mock: injected delete failure", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[collection][id]; !ok {
		return NewDatabaseError(ErrNotFound, fmt.Sprintf("document %s/%s not found", collection, id), nil)
	}
	delete(m.documents[collection], id)
	return nil
}

// Query on MockService ignores statement and returns every document in the
// collection named by bindings["collection"]; no other binding filters the
// result.
func (m *MockService) Query(ctx context.Context, statement string, bindings map[string]interface{}) ([]json.RawMessage, error) {
	if err, ok := m.inject.FailOperations["query"]; ok {
		return nil, NewDatabaseError(ErrQuery, "mock: injected query failure", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	collection, _ := bindings["collection"].(string)
	results := make([]json.RawMessage, 0, len(m.documents[collection]))
	for _, body := range m.documents[collection] {
		results = append(results, append(json.RawMessage(nil), body...))
	}
	return results, nil
}

func (m *MockService) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected reports connection state, used by the health checker
// wrapping this backend in tests.
func (m *MockService) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}
