package database

import (
	"context"

	"cloud.google.com/go/firestore"

	shared "github.com/fitglue/polar-ingest/pkg"
	"github.com/fitglue/polar-ingest/pkg/types"
)

// FirestoreAdapter stores execution records in Firestore
type FirestoreAdapter struct {
	Client *firestore.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{Client: client}
}

func (a *FirestoreAdapter) executions() *firestore.CollectionRef {
	return a.Client.Collection(shared.CollectionExecutions)
}

func (a *FirestoreAdapter) SetExecution(ctx context.Context, record *types.ExecutionRecord) error {
	_, err := a.executions().Doc(record.ExecutionID).Set(ctx, record)
	return err
}

func (a *FirestoreAdapter) UpdateExecution(ctx context.Context, id string, data map[string]interface{}) error {
	_, err := a.executions().Doc(id).Set(ctx, data, firestore.MergeAll)
	return err
}
