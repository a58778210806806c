// Package warehouse loads stored exercise objects into BigQuery.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	shared "github.com/fitglue/polar-ingest/pkg"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/storage"
	"github.com/fitglue/polar-ingest/pkg/types"
)

var (
	ErrLoadJobFailed = errors.New("load job failed")
	ErrNotJSON       = errors.New("object is not a json export")
)

// Result reports one load.
type Result struct {
	URI        string `json:"uri"`
	Table      string `json:"table"`
	RowsBefore uint64 `json:"rows_before"`
	RowsAfter  uint64 `json:"rows_after"`
	RowsAdded  int64  `json:"rows_added"`
}

// Source is the first path segment of an object name, e.g. "polar" for
// "polar/polar_1_2024-01-01.json".
func Source(objectName string) string {
	source, _, _ := strings.Cut(objectName, "/")
	return source
}

// TableFor returns the table an object is appended to: {project}.{dataset}.{source}_training.
func TableFor(projectID, dataset, objectName string) types.TableRef {
	return types.TableRef{
		ProjectID: projectID,
		DatasetID: dataset,
		TableID:   Source(objectName) + shared.TableSuffix,
	}
}

// Loader appends finalized objects to their source table.
type Loader struct {
	Warehouse shared.Warehouse
	ProjectID string
	Dataset   string
	Logger    *slog.Logger
}

// Load appends obj to its table and diffs the row count around the job.
func (l *Loader) Load(ctx context.Context, obj types.StorageObjectData) (Result, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if obj.Bucket == "" || obj.Name == "" {
		return Result{}, fmt.Errorf("%w: event has no bucket or object name", ErrLoadJobFailed)
	}
	if !strings.HasSuffix(obj.Name, ".json") {
		return Result{}, fmt.Errorf("%w: %s", ErrNotJSON, obj.Name)
	}

	table := TableFor(l.ProjectID, l.Dataset, obj.Name)
	res := Result{URI: storage.URI(obj.Bucket, obj.Name), Table: table.String()}
	logger.Info("Starting to load data to BigQuery", "bucket", obj.Bucket, "object", obj.Name, "table", res.Table)

	before, err := l.Warehouse.RowCount(ctx, table)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrLoadJobFailed, err)
	}
	res.RowsBefore = before

	if err := l.Warehouse.LoadFromURI(ctx, res.URI, table); err != nil {
		return res, fmt.Errorf("%w: loading %s into %s: %w", ErrLoadJobFailed, res.URI, res.Table, err)
	}

	after, err := l.Warehouse.RowCount(ctx, table)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrLoadJobFailed, err)
	}
	res.RowsAfter = after
	res.RowsAdded = int64(after) - int64(before)

	logger.Info("Loaded rows", "rows_added", res.RowsAdded, "uri", res.URI)
	return res, nil
}
