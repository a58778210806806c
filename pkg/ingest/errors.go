package ingest

import (
	"errors"
	"fmt"

	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

// Kind classifies why a batch stopped.
type Kind string

const (
	KindOpenFailed      Kind = "OpenFailed"
	KindListFailed      Kind = "ListFailed"
	KindFetchFailed     Kind = "FetchFailed"
	KindUploadExhausted Kind = "UploadExhausted"
	KindCommitFailed    Kind = "CommitFailed"
	KindInterrupted     Kind = "Interrupted"
)

var (
	ErrFetchFailed     = errors.New("fetch failed")
	ErrUploadExhausted = errors.New("upload retries exhausted")
)

// BatchError aborts a batch. The session it belongs to is left uncommitted.
type BatchError struct {
	Kind      Kind
	Reference polar.RecordReference
	// Attempt is the upload attempt that failed last, zero for other kinds.
	Attempt int
	Err     error
}

func (e *BatchError) Error() string {
	switch {
	case e.Reference != "" && e.Attempt > 0:
		return fmt.Sprintf("%s: %s (attempt %d): %v", e.Kind, e.Reference, e.Attempt, e.Err)
	case e.Reference != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reference, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *BatchError anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var be *BatchError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}
