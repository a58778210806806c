package polartogcs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/framework"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/sentry"
	"github.com/fitglue/polar-ingest/pkg/ingest"
	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

const serviceName = "polar-to-gcs"

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.CloudEvent("PolarToGCS", PolarToGCS)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx, serviceName,
			bootstrap.WithStorage(),
			bootstrap.WithPolar(),
			bootstrap.Require(bootstrap.KeyBucket, bootstrap.KeyUserID, bootstrap.KeyAccessToken),
		)
		if svcErr != nil {
			slog.Error("Failed to initialize service", "error", svcErr)
		}
	})
	return svc, svcErr
}

// PolarToGCS is triggered by the exercise topic. The message only signals that
// new data exists; the transaction decides what is fetched.
func PolarToGCS(ctx context.Context, e cloudevents.Event) error {
	svc, err := initService(ctx)
	if err != nil {
		return fmt.Errorf("service init failed: %v", err)
	}
	return framework.WrapCloudEvent(serviceName, svc, syncHandler(defaultBatch))(ctx, e)
}

// batchFactory builds the batch for one invocation.
type batchFactory func(fwCtx *framework.FrameworkContext) *ingest.Batch

func defaultBatch(fwCtx *framework.FrameworkContext) *ingest.Batch {
	s := fwCtx.Service
	return ingest.NewBatch(
		polar.NewSessionManager(s.Polar),
		ingest.NewUploader(s.Store, s.Config.Bucket, fwCtx.Logger),
		ingest.NewPacer(),
		fwCtx.Logger,
	)
}

// syncHandler runs one batch. Aborted batches are reported through the
// outputs so the message is acknowledged; the open transaction is picked up
// again by the next run.
func syncHandler(newBatch batchFactory) framework.HandlerFunc {
	return func(ctx context.Context, e cloudevents.Event, fwCtx *framework.FrameworkContext) (interface{}, error) {
		cfg := fwCtx.Service.Config
		logPendingNotifications(ctx, fwCtx)

		outcome, err := newBatch(fwCtx).Run(ctx, cfg.UserID, cfg.AccessToken)

		outputs := map[string]interface{}{
			"status":         string(outcome.Status),
			"transaction_id": outcome.TransactionID,
			"records":        outcome.Records,
			"uploaded":       outcome.Uploaded,
			"committed":      outcome.Committed,
		}
		if err != nil {
			kind, _ := ingest.KindOf(err)
			outputs["error"] = err.Error()
			outputs["error_kind"] = string(kind)
			sentry.CaptureException(err, map[string]string{
				"service":    serviceName,
				"error_kind": string(kind),
			}, fwCtx.Logger)
			fwCtx.Logger.Error("Batch aborted, transaction left uncommitted", "error_kind", string(kind), "error", err)
			return outputs, nil
		}

		fwCtx.Logger.Info("Batch finished", "status", string(outcome.Status), "uploaded", len(outcome.Uploaded))
		return outputs, nil
	}
}

// logPendingNotifications logs how many exercise notifications the partner
// endpoint reports. It is informational only.
func logPendingNotifications(ctx context.Context, fwCtx *framework.FrameworkContext) {
	s := fwCtx.Service
	if s.Polar == nil || s.Config.ClientID == "" || s.Config.ClientSecret == "" {
		return
	}
	available, err := s.Polar.ListAvailableData(ctx)
	if err != nil {
		fwCtx.Logger.Warn("Could not list available data", "error", err)
		return
	}
	pending := 0
	for _, a := range available {
		if strings.EqualFold(a.DataType, "EXERCISE") && fmt.Sprint(a.UserID) == s.Config.UserID {
			pending++
		}
	}
	fwCtx.Logger.Info("Pending exercise notifications", "count", pending, "all_users", len(available))
}
