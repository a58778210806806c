package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fitglue/polar-ingest/pkg/domain/gpx"
	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

// RecordSource retrieves the representations of one exercise.
type RecordSource interface {
	Summary(ctx context.Context, s *polar.Session, ref polar.RecordReference) (map[string]interface{}, error)
	Track(ctx context.Context, s *polar.Session, ref polar.RecordReference) ([]byte, error)
}

// Fetcher builds merged records from a RecordSource.
type Fetcher struct {
	Source RecordSource
}

// Fetch retrieves the summary and the optional GPX track of ref and merges them.
// Every failure wraps ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, s *polar.Session, ref polar.RecordReference) (*MergedRecord, error) {
	summary, err := f.Source.Summary(ctx, s, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: summary: %w", ErrFetchFailed, err)
	}

	raw, err := f.Source.Track(ctx, s, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: gpx: %w", ErrFetchFailed, err)
	}

	var track map[string]interface{}
	if len(bytes.TrimSpace(raw)) > 0 {
		track, err = gpx.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
	}

	rec, err := NewMergedRecord(summary, track)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return rec, nil
}
