package sentry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	DSN              string
	Environment      string
	Release          string
	ServerName       string
	TracesSampleRate float64
	// Transport overrides the HTTP transport, nil for the default.
	Transport sentry.Transport
}

// FlushTimeout bounds how long a capture waits for delivery. Function
// instances may be frozen as soon as the handler returns.
const FlushTimeout = 2 * time.Second

// Init initializes Sentry for the Cloud Functions.
// A blank DSN disables error tracking without failing.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Warn("Sentry DSN not configured - error tracking disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		TracesSampleRate: cfg.TracesSampleRate,
		Transport:        cfg.Transport,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Webhook signatures and provider tokens must never leave the process
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
				delete(event.Request.Headers, "Polar-Webhook-Signature")
			}
			return event
		},
	})
	if err != nil {
		if logger != nil {
			logger.Error("Failed to initialize Sentry", "error", err)
		}
		return fmt.Errorf("sentry init: %w", err)
	}

	if logger != nil {
		logger.Info("Sentry initialized", "environment", cfg.Environment)
	}
	return nil
}

// CaptureException reports err with the given tags on an isolated scope and
// waits up to FlushTimeout for it to be delivered.
func CaptureException(err error, tags map[string]string, logger *slog.Logger) {
	if err == nil || sentry.CurrentHub().Client() == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
	if !sentry.Flush(FlushTimeout) && logger != nil {
		logger.Warn("Sentry flush timed out", "error", err.Error())
	}

	if logger != nil {
		logger.Debug("Exception captured in Sentry", "error", err.Error())
	}
}

// RecoverToError converts a recovered panic value into an error and reports it.
// Call as: defer func() { if r := recover(); r != nil { err = RecoverToError(r, logger) } }()
func RecoverToError(r interface{}, logger *slog.Logger) error {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	} else {
		err = fmt.Errorf("panic: %w", err)
	}
	CaptureException(err, map[string]string{"kind": "panic"}, logger)
	if logger != nil {
		logger.Error("Recovered from panic", "error", err)
	}
	return err
}
