package shared

import (
	"context"

	"github.com/fitglue/polar-ingest/pkg/types"
)

// --- Persistence Interfaces ---

type Database interface {
	SetExecution(ctx context.Context, record *types.ExecutionRecord) error
	UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error
}

// --- Messaging Interfaces ---

// Publisher blocks until the bus acknowledges the message.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object, contentType string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}

// --- Warehouse Interfaces ---

type Warehouse interface {
	RowCount(ctx context.Context, table types.TableRef) (uint64, error)
	LoadFromURI(ctx context.Context, uri string, table types.TableRef) error
}
