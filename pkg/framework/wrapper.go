package framework

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/execution"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/sentry"
	"github.com/fitglue/polar-ingest/pkg/types"
)

// FrameworkContext contains dependencies injected by the framework
type FrameworkContext struct {
	Service     *bootstrap.Service
	Logger      *slog.Logger
	ExecutionID string

	outputs map[string]interface{}
}

// SetOutput attaches a value to the execution record written when an HTTP
// handler returns. An "error" output becomes the failure reason of a 4xx or
// 5xx response.
func (c *FrameworkContext) SetOutput(key string, value interface{}) {
	if c.outputs == nil {
		c.outputs = make(map[string]interface{})
	}
	c.outputs[key] = value
}

// HandlerFunc is the signature for a CloudEvent function handler.
// Returning outputs with "status" set to FAILED or ABORTED records a failed
// execution without reporting an error to the runtime.
type HandlerFunc func(ctx context.Context, e event.Event, fwCtx *FrameworkContext) (interface{}, error)

// HTTPHandlerFunc is the signature for an HTTP function handler.
type HTTPHandlerFunc func(w http.ResponseWriter, r *http.Request, fwCtx *FrameworkContext)

// WrapCloudEvent wraps a handler with execution logging, panic recovery and
// error reporting.
func WrapCloudEvent(serviceName string, svc *bootstrap.Service, handler HandlerFunc) func(context.Context, event.Event) error {
	return func(ctx context.Context, e event.Event) error {
		userID := extractUserID(e)
		triggerType := "pubsub"
		if strings.HasPrefix(e.Type(), "google.cloud.storage.") {
			triggerType = "storage"
		}

		logger := baseLogger(svc, serviceName)
		if userID != "" {
			logger = logger.With("user_id", userID)
		}

		fwCtx := start(ctx, svc, serviceName, execution.ExecutionOptions{UserID: userID, TriggerType: triggerType}, logger)
		fwCtx.Logger = fwCtx.Logger.With("event_id", e.ID())
		fwCtx.Logger.Info("Function started", "event_type", e.Type())

		outputs, handlerErr := invoke(ctx, e, fwCtx, handler)

		if handlerErr != nil {
			fwCtx.Logger.Error("Function failed", "error", handlerErr)
			sentry.CaptureException(handlerErr, map[string]string{"service": serviceName, "execution_id": fwCtx.ExecutionID}, fwCtx.Logger)
			if logErr := execution.LogFailure(ctx, svc.DB, fwCtx.ExecutionID, handlerErr, outputs); logErr != nil {
				fwCtx.Logger.Warn("Failed to log execution failure", "error", logErr)
			}
			return handlerErr
		}

		if cause := failureStatus(outputs); cause != nil {
			fwCtx.Logger.Warn("Function completed with failure status", "error", cause)
			if logErr := execution.LogFailure(ctx, svc.DB, fwCtx.ExecutionID, cause, outputs); logErr != nil {
				fwCtx.Logger.Warn("Failed to log execution failure", "error", logErr)
			}
			return nil
		}

		fwCtx.Logger.Info("Function completed successfully")
		if logErr := execution.LogSuccess(ctx, svc.DB, fwCtx.ExecutionID, outputs); logErr != nil {
			fwCtx.Logger.Warn("Failed to log execution success", "error", logErr)
		}
		return nil
	}
}

// WrapHTTP wraps an HTTP handler with execution logging and panic recovery.
// Responses with a 4xx or 5xx status are recorded as failed executions.
func WrapHTTP(serviceName string, svc *bootstrap.Service, handler HTTPHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		fwCtx := start(ctx, svc, serviceName, execution.ExecutionOptions{TriggerType: "http"}, baseLogger(svc, serviceName))

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					err := sentry.RecoverToError(rec, fwCtx.Logger)
					fwCtx.Logger.Error("Handler panicked", "error", err)
					if !sw.wroteHeader {
						http.Error(sw, "Internal server error", http.StatusInternalServerError)
					}
				}
			}()
			handler(sw, r, fwCtx)
		}()

		outputs := map[string]interface{}{}
		for k, v := range fwCtx.outputs {
			outputs[k] = v
		}
		outputs["status_code"] = sw.status
		if sw.status >= http.StatusBadRequest {
			cause := fmt.Errorf("responded with status %d", sw.status)
			if reason, ok := outputs["error"].(string); ok && reason != "" {
				cause = fmt.Errorf("responded with status %d: %s", sw.status, reason)
			}
			if logErr := execution.LogFailure(ctx, svc.DB, fwCtx.ExecutionID, cause, outputs); logErr != nil {
				fwCtx.Logger.Warn("Failed to log execution failure", "error", logErr)
			}
			return
		}
		if logErr := execution.LogSuccess(ctx, svc.DB, fwCtx.ExecutionID, outputs); logErr != nil {
			fwCtx.Logger.Warn("Failed to log execution success", "error", logErr)
		}
	}
}

func start(ctx context.Context, svc *bootstrap.Service, serviceName string, opts execution.ExecutionOptions, logger *slog.Logger) *FrameworkContext {
	execID, err := execution.LogStart(ctx, svc.DB, serviceName, opts)
	if err != nil {
		// Continue anyway - the ledger is not worth failing the function for
		logger.Error("Failed to log execution start", "error", err)
	}
	return &FrameworkContext{
		Service:     svc,
		Logger:      logger.With("execution_id", execID),
		ExecutionID: execID,
	}
}

func invoke(ctx context.Context, e event.Event, fwCtx *FrameworkContext, handler HandlerFunc) (outputs interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outputs, err = nil, sentry.RecoverToError(rec, fwCtx.Logger)
		}
	}()
	return handler(ctx, e, fwCtx)
}

func baseLogger(svc *bootstrap.Service, serviceName string) *slog.Logger {
	if svc.Logger != nil {
		return svc.Logger
	}
	return bootstrap.NewLogger(serviceName, slog.LevelInfo)
}

// failureStatus returns a non-nil error when outputs carry a FAILED or ABORTED status.
func failureStatus(outputs interface{}) error {
	m, ok := outputs.(map[string]interface{})
	if !ok {
		return nil
	}
	status, _ := m["status"].(string)
	switch strings.ToUpper(status) {
	case "FAILED", "ABORTED":
	default:
		return nil
	}
	if msg, ok := m["error"].(string); ok && msg != "" {
		return errors.New(msg)
	}
	return fmt.Errorf("status %s", status)
}

// extractUserID reads user_id from a Pub/Sub message carrying a webhook payload.
func extractUserID(e event.Event) string {
	var msg types.PubSubMessage
	if err := e.DataAs(&msg); err != nil || len(msg.Message.Data) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(msg.Message.Data))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return ""
	}
	for _, key := range []string{"user_id", "userId"} {
		switch v := payload[key].(type) {
		case string:
			return v
		case json.Number:
			return v.String()
		}
	}
	return ""
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}
