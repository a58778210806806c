package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	shared "github.com/fitglue/polar-ingest/pkg"
	"github.com/fitglue/polar-ingest/pkg/infrastructure/storage"
)

// Uploader writes merged records to blob storage with a bounded, fixed-delay retry.
type Uploader struct {
	Store  shared.BlobStore
	Bucket string
	// Attempts is the total number of tries; Delay separates consecutive tries.
	Attempts int
	Delay    time.Duration
	Logger   *slog.Logger
}

// NewUploader returns an Uploader with the standard policy of three attempts five seconds apart.
func NewUploader(store shared.BlobStore, bucket string, logger *slog.Logger) *Uploader {
	return &Uploader{
		Store:    store,
		Bucket:   bucket,
		Attempts: shared.UploadAttempts,
		Delay:    shared.UploadRetryDelay,
		Logger:   logger,
	}
}

func (u *Uploader) backoff() retry.Backoff {
	attempts := u.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := u.Delay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))
}

// Upload stores rec under its object path and returns that path. After the last
// failed attempt it returns a *BatchError of kind KindUploadExhausted.
func (u *Uploader) Upload(ctx context.Context, rec *MergedRecord) (string, error) {
	path := rec.ObjectPath()
	body, err := encodeJSON(rec)
	if err != nil {
		return "", &BatchError{Kind: KindUploadExhausted, Err: fmt.Errorf("encode exercise %s: %w", rec.ID, err)}
	}
	logger := u.logger().With("exercise_id", rec.ID, "path", path, "has_track", rec.HasTrack())

	attempt := 0
	var lastErr error
	err = retry.Do(ctx, u.backoff(), func(ctx context.Context) error {
		attempt++
		if lastErr = u.Store.Write(ctx, u.Bucket, path, shared.ContentTypeJSON, body); lastErr != nil {
			logger.Error("Upload attempt failed", "attempt", attempt, "error", lastErr)
			return retry.RetryableError(lastErr)
		}
		return nil
	})
	if err == nil {
		logger.Info("Exercise uploaded", "uri", storage.URI(u.Bucket, path), "attempt", attempt)
		return path, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return "", &BatchError{Kind: KindInterrupted, Attempt: attempt, Err: err}
	}
	return "", &BatchError{
		Kind:    KindUploadExhausted,
		Attempt: attempt,
		Err:     fmt.Errorf("%w: %s: %w", ErrUploadExhausted, path, lastErr),
	}
}

func (u *Uploader) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}
