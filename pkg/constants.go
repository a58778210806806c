package shared

import "time"

const (
	// ObjectPrefix is both the storage folder and the warehouse source name.
	ObjectPrefix = "polar"

	TableSuffix = "_training"

	CollectionExecutions = "executions"

	ContentTypeJSON = "application/json"
)

// Upload and pacing policy for the exercise batch.
const (
	UploadAttempts   = 3
	UploadRetryDelay = 5 * time.Second
	WarehousePacing  = 10 * time.Second
)

const (
	PolarDefaultBaseURL = "https://www.polaraccesslink.com/v3"
	PolarHTTPTimeout    = 30 * time.Second

	DefaultLocalPort = "8080"
)
