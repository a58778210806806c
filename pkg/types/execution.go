package types

import "time"

type ExecutionStatus string

const (
	ExecutionStatusStarted ExecutionStatus = "STATUS_STARTED"
	ExecutionStatusSuccess ExecutionStatus = "STATUS_SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "STATUS_FAILED"
)

// ExecutionRecord is one function invocation as stored in the executions collection.
type ExecutionRecord struct {
	ExecutionID string          `firestore:"execution_id" json:"execution_id"`
	Service     string          `firestore:"service" json:"service"`
	TriggerType string          `firestore:"trigger_type" json:"trigger_type"`
	UserID      string          `firestore:"user_id,omitempty" json:"user_id,omitempty"`
	Status      ExecutionStatus `firestore:"status" json:"status"`
	StartTime   time.Time       `firestore:"start_time" json:"start_time"`
	EndTime     *time.Time      `firestore:"end_time,omitempty" json:"end_time,omitempty"`
	ErrorText   string          `firestore:"error_message,omitempty" json:"error_message,omitempty"`
	OutputsJSON string          `firestore:"outputs_json,omitempty" json:"outputs_json,omitempty"`
}
