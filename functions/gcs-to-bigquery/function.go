package gcstobigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/framework"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/sentry"
	"github.com/fitglue/polar-ingest/pkg/types"
	"github.com/fitglue/polar-ingest/pkg/warehouse"
)

const serviceName = "gcs-to-bigquery"

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("GCSToBigQuery", GCSToBigQuery)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx, serviceName,
			bootstrap.WithWarehouse(),
			bootstrap.Require(bootstrap.KeyProjectID, bootstrap.KeyDataset),
		)
		if svcErr != nil {
			slog.Error("Failed to initialize service", "error", svcErr)
		}
	})
	return svc, svcErr
}

// GCSToBigQuery is triggered when an object is finalized in the export bucket.
func GCSToBigQuery(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent(serviceName, svc, loadHandler)(ctx, e)
}

// loadHandler never returns an error: a failed load is logged and not retried.
func loadHandler(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
	var obj types.StorageObjectData
	if err := e.DataAs(&obj); err != nil {
		fwCtx.Logger.Error("Could not decode storage event", "error", err)
		return map[string]interface{}{"status": "FAILED", "error": err.Error()}, nil
	}

	cfg := fwCtx.Service.Config
	loader := &warehouse.Loader{
		Warehouse: fwCtx.Service.Warehouse,
		ProjectID: cfg.ProjectID,
		Dataset:   cfg.Dataset,
		Logger:    fwCtx.Logger,
	}

	res, err := loader.Load(ctx, obj)
	if errors.Is(err, warehouse.ErrNotJSON) {
		fwCtx.Logger.Info("Skipping object", "object", obj.Name)
		return map[string]interface{}{"status": "SKIPPED", "object": obj.Name}, nil
	}
	if err != nil {
		fwCtx.Logger.Error("Error while loading data to BigQuery", "uri", res.URI, "error", err)
		sentry.CaptureException(err, map[string]string{"service": serviceName, "table": res.Table}, fwCtx.Logger)
		return map[string]interface{}{"status": "FAILED", "error": err.Error(), "uri": res.URI, "table": res.Table}, nil
	}

	return map[string]interface{}{
		"status":      "SUCCESS",
		"uri":         res.URI,
		"table":       res.Table,
		"rows_before": res.RowsBefore,
		"rows_after":  res.RowsAfter,
		"rows_added":  res.RowsAdded,
	}, nil
}
