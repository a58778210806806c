package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"

	shared "github.com/fitglue/polar-ingest/pkg"
	infrabigquery "github.com/fitglue/polar-ingest/pkg/infrastructure/bigquery"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/database"
	infrapubsub "github.com/fitglue/polar-ingest/pkg/infrastructure/pubsub"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/sentry"
	infrastorage "github.com/fitglue/polar-ingest/pkg/infrastructure/storage"
	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

// Service holds initialized dependencies
type Service struct {
	DB        shared.Database
	Store     shared.BlobStore
	Pub       shared.Publisher
	Warehouse shared.Warehouse
	Polar     *polar.Client
	Config    *Config
	Logger    *slog.Logger
}

type options struct {
	storage   bool
	publisher bool
	warehouse bool
	polar     bool
	required  []string
}

// Option selects which clients NewService constructs.
type Option func(*options)

func WithStorage() Option { return func(o *options) { o.storage = true } }
func WithPublisher() Option { return func(o *options) { o.publisher = true } }
func WithWarehouse() Option { return func(o *options) { o.warehouse = true } }
func WithPolar() Option { return func(o *options) { o.polar = true } }

// Require fails NewService when any of keys is unset.
func Require(keys ...string) Option {
	return func(o *options) { o.required = append(o.required, keys...) }
}

// NewService initializes the dependencies of one function. Clients are built
// once per process and reused across invocations.
func NewService(ctx context.Context, serviceName string, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := LoadConfig()
	level := ParseLevel(cfg.LogLevel)
	InitLogger(level)
	logger := NewLogger(serviceName, level)

	if err := cfg.Require(o.required...); err != nil {
		logger.Error("Configuration invalid", "error", err)
		return nil, err
	}

	logger.Info("Initializing service", "project_id", cfg.ProjectID)

	if err := sentry.Init(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		ServerName:  serviceName,
	}, logger); err != nil {
		// Error tracking is optional; keep serving.
		logger.Warn("Continuing without Sentry", "error", err)
	}

	svc := &Service{Config: cfg, Logger: logger}

	// Execution ledger
	if cfg.EnableExecutionLog {
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("Firestore init failed", "error", err)
			return nil, fmt.Errorf("firestore init: %w", err)
		}
		svc.DB = database.NewFirestoreAdapter(fsClient)
	} else {
		svc.DB = &database.LogDatabase{Logger: logger}
	}

	// Pub/Sub
	if o.publisher {
		if cfg.EnablePublish {
			psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
			if err != nil {
				logger.Error("PubSub init failed", "error", err)
				return nil, fmt.Errorf("pubsub init: %w", err)
			}
			svc.Pub = &infrapubsub.PubSubAdapter{Client: psClient}
			logger.Info("Pub/Sub: REAL (ENABLE_PUBLISH=true)")
		} else {
			svc.Pub = &infrapubsub.LogPublisher{Logger: logger}
			logger.Info("Pub/Sub: MOCK (LogPublisher)")
			warnIfPublishingDisabled(cfg, logger)
		}
	}

	// Storage
	if o.storage {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			logger.Error("Storage init failed", "error", err)
			return nil, fmt.Errorf("storage init: %w", err)
		}
		svc.Store = &infrastorage.StorageAdapter{Client: gcsClient}
	}

	// BigQuery
	if o.warehouse {
		bqClient, err := bigquery.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("BigQuery init failed", "error", err)
			return nil, fmt.Errorf("bigquery init: %w", err)
		}
		svc.Warehouse = &infrabigquery.Loader{Client: bqClient, Location: cfg.Zone}
	}

	// Polar AccessLink
	if o.polar {
		svc.Polar = polar.NewClient(polar.Config{
			BaseURL:      cfg.PolarBaseURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			HTTPClient:   &http.Client{Timeout: shared.PolarHTTPTimeout},
		})
	}

	return svc, nil
}

// warnIfPublishingDisabled flags a deployment that names a topic but will only
// log messages, since accepted webhooks would otherwise be dropped silently.
func warnIfPublishingDisabled(cfg *Config, logger *slog.Logger) {
	if cfg.EnablePublish || cfg.Topic == "" {
		return
	}
	logger.Warn("Publishing disabled: messages are logged, not sent",
		"topic", cfg.Topic,
		"hint", "set ENABLE_PUBLISH=true to publish")
}
