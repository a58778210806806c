// Package execution records the lifecycle of each function invocation.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	shared "github.com/fitglue/polar-ingest/pkg"
	"github.com/fitglue/polar-ingest/pkg/types"
)

type ExecutionOptions struct {
	UserID      string
	TriggerType string
}

// LogStart creates the execution record and returns its id.
func LogStart(ctx context.Context, db shared.Database, service string, opts ExecutionOptions) (string, error) {
	id := uuid.NewString()
	record := &types.ExecutionRecord{
		ExecutionID: id,
		Service:     service,
		TriggerType: opts.TriggerType,
		UserID:      opts.UserID,
		Status:      types.ExecutionStatusStarted,
		StartTime:   time.Now().UTC(),
	}
	if err := db.SetExecution(ctx, record); err != nil {
		return id, fmt.Errorf("set execution: %w", err)
	}
	return id, nil
}

// LogSuccess marks the execution successful.
func LogSuccess(ctx context.Context, db shared.Database, id string, outputs interface{}) error {
	return finish(ctx, db, id, types.ExecutionStatusSuccess, nil, outputs)
}

// LogFailure marks the execution failed with cause.
func LogFailure(ctx context.Context, db shared.Database, id string, cause error, outputs interface{}) error {
	return finish(ctx, db, id, types.ExecutionStatusFailed, cause, outputs)
}

func finish(ctx context.Context, db shared.Database, id string, status types.ExecutionStatus, cause error, outputs interface{}) error {
	data := map[string]interface{}{
		"status":   string(status),
		"end_time": time.Now().UTC(),
	}
	if cause != nil {
		data["error_message"] = cause.Error()
	}
	if outputs != nil {
		encoded, err := json.Marshal(outputs)
		if err != nil {
			return fmt.Errorf("marshal outputs: %w", err)
		}
		data["outputs_json"] = string(encoded)
	}
	if err := db.UpdateExecution(ctx, id, data); err != nil {
		return fmt.Errorf("update execution %s: %w", id, err)
	}
	return nil
}
