package polarwebhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/framework"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/sentry"
	"github.com/fitglue/polar-ingest/pkg/webhook"
)

const serviceName = "polar-webhook"

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
	router  http.Handler
)

func init() {
	functions.HTTP("PolarWebhook", PolarWebhook)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	svcOnce.Do(func() {
		svc, svcErr = bootstrap.NewService(ctx, serviceName,
			bootstrap.WithPublisher(),
			bootstrap.Require(bootstrap.KeyTopic, bootstrap.KeySignatureSecret),
		)
		if svcErr != nil {
			slog.Error("Failed to initialize service", "error", svcErr)
			return
		}
		router = NewRouter(svc)
	})
	return svc, svcErr
}

// PolarWebhook is the HTTP entry point for AccessLink webhook deliveries
func PolarWebhook(w http.ResponseWriter, r *http.Request) {
	if _, err := initService(r.Context()); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}

// NewRouter routes POST deliveries on any path to the dispatcher. Other
// methods reach the same handler so the dispatcher can reject them with 400.
func NewRouter(svc *bootstrap.Service) http.Handler {
	dispatcher := &webhook.Dispatcher{
		Publisher: svc.Pub,
		Topic:     svc.Config.Topic,
		Secret:    []byte(svc.Config.SignatureSecret),
	}
	h := framework.WrapHTTP(serviceName, svc, webhookHandler(dispatcher))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Post("/*", h)
	r.MethodNotAllowed(h)
	return r
}

func webhookHandler(d *webhook.Dispatcher) framework.HTTPHandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, fwCtx *framework.FrameworkContext) {
		logger := fwCtx.Logger.With("request_id", middleware.GetReqID(r.Context()))

		ev, err := webhook.EventFromRequest(r)
		if err != nil {
			logger.Error("Could not read webhook body", "error", err)
			respond(w, http.StatusBadRequest, "Bad request")
			return
		}

		scoped := *d
		scoped.Logger = logger
		res := scoped.Dispatch(r.Context(), ev)

		if res.Err != nil {
			fwCtx.SetOutput("error", res.Err.Error())
		}
		if res.MessageID != "" {
			fwCtx.SetOutput("message_id", res.MessageID)
		}

		if res.StatusCode >= http.StatusInternalServerError {
			sentry.CaptureException(res.Err, map[string]string{
				"service":    serviceName,
				"event_type": string(ev.Type),
			}, logger)
		} else if res.Err != nil {
			logger.Info("Webhook rejected", "status", res.StatusCode, "reason", res.Err.Error())
		}
		respond(w, res.StatusCode, res.Message)
	}
}

func respond(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}
