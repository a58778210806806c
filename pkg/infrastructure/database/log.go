package database

import (
	"context"
	"log/slog"

	"github.com/fitglue/polar-ingest/pkg/types"
)

// LogDatabase writes execution records to the log instead of Firestore.
// Used when ENABLE_EXECUTION_LOG is not set.
type LogDatabase struct {
	Logger *slog.Logger
}

func (d *LogDatabase) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *LogDatabase) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	d.logger().Debug("execution record", "component", "execution-log",
		"execution_id", record.ExecutionID, "service", record.Service, "status", string(record.Status))
	return nil
}

func (d *LogDatabase) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	d.logger().Debug("execution update", "component", "execution-log", "execution_id", id, "fields", data)
	return nil
}
