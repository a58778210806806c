package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/fitglue/polar-ingest/pkg/types"
)

// Loader runs newline-delimited JSON load jobs against BigQuery
type Loader struct {
	Client *bigquery.Client
	// Location is the processing zone the load jobs run in.
	Location string
}

func (l *Loader) table(ref types.TableRef) *bigquery.Table {
	return l.Client.DatasetInProject(ref.ProjectID, ref.DatasetID).Table(ref.TableID)
}

func (l *Loader) RowCount(ctx context.Context, ref types.TableRef) (uint64, error) {
	md, err := l.table(ref).Metadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("get table %s: %w", ref, err)
	}
	return md.NumRows, nil
}

// LoadFromURI appends the objects at uri to the table and blocks until the job finishes.
func (l *Loader) LoadFromURI(ctx context.Context, uri string, ref types.TableRef) error {
	gcsRef := bigquery.NewGCSReference(uri)
	gcsRef.SourceFormat = bigquery.JSON

	loader := l.table(ref).LoaderFrom(gcsRef)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.Location = l.Location

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("start load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job %s: %w", job.ID(), err)
	}
	return nil
}
