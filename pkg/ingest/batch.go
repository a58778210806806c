package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

// SessionManager is the provider transaction lifecycle used by a Batch.
type SessionManager interface {
	RecordSource
	Open(ctx context.Context, userID, accessToken string) (*polar.Session, error)
	ListRecords(ctx context.Context, s *polar.Session) ([]polar.RecordReference, error)
	Commit(ctx context.Context, s *polar.Session) error
}

type Status string

const (
	StatusNoData    Status = "NO_DATA"
	StatusCommitted Status = "COMMITTED"
	StatusAborted   Status = "ABORTED"
)

// Outcome summarizes one batch run.
type Outcome struct {
	Status        Status   `json:"status"`
	TransactionID int64    `json:"transaction_id,omitempty"`
	Records       int      `json:"records"`
	Uploaded      []string `json:"uploaded"`
	Committed     bool     `json:"committed"`
}

// Batch moves every exercise of one provider transaction into blob storage.
//
// Records are handled strictly in sequence: fetch, upload with retry, then a
// pacing wait unless the record was the last. The first fetch or upload failure
// stops the batch and the transaction stays open on the provider side, so the
// same exercises are offered again on the next run.
type Batch struct {
	Sessions SessionManager
	Fetcher  *Fetcher
	Uploader *Uploader
	Pacer    *Pacer
	Logger   *slog.Logger
}

func NewBatch(sessions SessionManager, uploader *Uploader, pacer *Pacer, logger *slog.Logger) *Batch {
	return &Batch{
		Sessions: sessions,
		Fetcher:  &Fetcher{Source: sessions},
		Uploader: uploader,
		Pacer:    pacer,
		Logger:   logger,
	}
}

// Run executes the batch for one user. A *BatchError is returned on abort;
// a missing transaction is reported as StatusNoData with a nil error.
func (b *Batch) Run(ctx context.Context, userID, accessToken string) (Outcome, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := Outcome{Status: StatusAborted, Uploaded: []string{}}

	logger.Info("Creating transaction")
	session, err := b.Sessions.Open(ctx, userID, accessToken)
	if err != nil {
		logger.Error("Could not create transaction", "error", err)
		return out, &BatchError{Kind: KindOpenFailed, Err: err}
	}
	if session == nil {
		logger.Info("No new data available, transaction not created")
		out.Status = StatusNoData
		return out, nil
	}
	out.TransactionID = session.TransactionID
	logger = logger.With("transaction_id", session.TransactionID)

	logger.Info("Fetching list of exercise URLs")
	refs, err := b.Sessions.ListRecords(ctx, session)
	if err != nil {
		logger.Error("Could not list exercises", "error", err)
		return out, &BatchError{Kind: KindListFailed, Err: err}
	}
	out.Records = len(refs)

	if len(refs) > 0 {
		logger.Info("Start uploading exercises", "count", len(refs))
	}
	for idx, ref := range refs {
		refLogger := logger.With("exercise_url", string(ref), "index", idx)

		rec, err := b.Fetcher.Fetch(ctx, session, ref)
		if err != nil {
			refLogger.Error("Error during processing of exercise", "error", err)
			return out, &BatchError{Kind: KindFetchFailed, Reference: ref, Err: err}
		}

		path, err := b.Uploader.Upload(ctx, rec)
		if err != nil {
			be := withReference(err, ref)
			refLogger.Error("Error during processing of exercise", "attempt", be.Attempt, "error", be.Err)
			return out, be
		}
		out.Uploaded = append(out.Uploaded, path)

		if err := b.Pacer.After(ctx, idx, len(refs)); err != nil {
			refLogger.Error("Interrupted while pacing uploads", "error", err)
			return out, &BatchError{Kind: KindInterrupted, Reference: ref, Err: err}
		}
	}

	logger.Info("Committing transaction")
	if err := b.Sessions.Commit(ctx, session); err != nil {
		logger.Error("Could not commit transaction", "error", err)
		return out, &BatchError{Kind: KindCommitFailed, Err: err}
	}
	out.Committed = true
	out.Status = StatusCommitted
	return out, nil
}

func withReference(err error, ref polar.RecordReference) *BatchError {
	var be *BatchError
	if errors.As(err, &be) {
		be.Reference = ref
		return be
	}
	return &BatchError{Kind: KindUploadExhausted, Reference: ref, Err: err}
}
