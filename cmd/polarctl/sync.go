package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/ingest"
	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one exercise batch for USER_ID and print its outcome",
		Long:  "Opens a transaction, stores every exercise in BUCKET and commits. An aborted batch leaves the transaction open and exits non-zero.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap.NewService(ctx, "polarctl",
				bootstrap.WithStorage(),
				bootstrap.WithPolar(),
				bootstrap.Require(bootstrap.KeyBucket, bootstrap.KeyUserID, bootstrap.KeyAccessToken),
			)
			if err != nil {
				return err
			}

			batch := ingest.NewBatch(
				polar.NewSessionManager(svc.Polar),
				ingest.NewUploader(svc.Store, svc.Config.Bucket, svc.Logger),
				ingest.NewPacer(),
				svc.Logger,
			)
			outcome, runErr := batch.Run(ctx, svc.Config.UserID, svc.Config.AccessToken)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("batch aborted: %w", runErr)
			}
			return nil
		},
	}
}
