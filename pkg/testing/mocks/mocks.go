package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/fitglue/polar-ingest/pkg/types"
)

// --- Mock Database ---
type MockDatabase struct {
	SetExecutionFunc    func(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecutionFunc func(ctx context.Context, id string, data map[string]interface{}) error
}

func (m *MockDatabase) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	if m.SetExecutionFunc != nil {
		return m.SetExecutionFunc(ctx, record)
	}
	return nil
}
func (m *MockDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateExecutionFunc != nil {
		return m.UpdateExecutionFunc(ctx, id, data)
	}
	return nil
}

// --- Mock Publisher ---
type PublishedMessage struct {
	Topic string
	Data  []byte
}

type MockPublisher struct {
	PublishFunc func(ctx context.Context, topic string, data []byte) (string, error)

	mu        sync.Mutex
	Published []PublishedMessage
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	m.mu.Lock()
	m.Published = append(m.Published, PublishedMessage{Topic: topic, Data: append([]byte(nil), data...)})
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	return "msg-id", nil
}

// Calls returns the number of Publish calls so far.
func (m *MockPublisher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}

// --- Mock Storage ---
type MockBlobStore struct {
	WriteFunc func(ctx context.Context, bucket, object, contentType string, data []byte) error
	ReadFunc  func(ctx context.Context, bucket, object string) ([]byte, error)

	mu      sync.Mutex
	Objects map[string][]byte
	Writes  int
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object, contentType string, data []byte) error {
	m.mu.Lock()
	m.Writes++
	m.mu.Unlock()
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, bucket, object, contentType, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = map[string][]byte{}
	}
	m.Objects[bucket+"/"+object] = append([]byte(nil), data...)
	return nil
}
func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[bucket+"/"+object]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, object)
	}
	return data, nil
}

// --- Mock Warehouse ---
type MockWarehouse struct {
	RowCountFunc    func(ctx context.Context, table types.TableRef) (uint64, error)
	LoadFromURIFunc func(ctx context.Context, uri string, table types.TableRef) error

	mu    sync.Mutex
	Loads []string
}

func (m *MockWarehouse) RowCount(ctx context.Context, table types.TableRef) (uint64, error) {
	if m.RowCountFunc != nil {
		return m.RowCountFunc(ctx, table)
	}
	return 0, nil
}
func (m *MockWarehouse) LoadFromURI(ctx context.Context, uri string, table types.TableRef) error {
	m.mu.Lock()
	m.Loads = append(m.Loads, uri)
	m.mu.Unlock()
	if m.LoadFromURIFunc != nil {
		return m.LoadFromURIFunc(ctx, uri, table)
	}
	return nil
}
