package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/types"
	"github.com/fitglue/polar-ingest/pkg/warehouse"
)

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load OBJECT...",
		Short: "Append stored exercise objects to their warehouse table",
		Long:  "Runs the same load as the storage-triggered function for each object name in BUCKET. Useful to backfill objects whose load failed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap.NewService(ctx, "polarctl",
				bootstrap.WithWarehouse(),
				bootstrap.Require(bootstrap.KeyProjectID, bootstrap.KeyDataset, bootstrap.KeyBucket),
			)
			if err != nil {
				return err
			}
			loader := &warehouse.Loader{
				Warehouse: svc.Warehouse,
				ProjectID: svc.Config.ProjectID,
				Dataset:   svc.Config.Dataset,
				Logger:    svc.Logger,
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, name := range args {
				res, err := loader.Load(ctx, types.StorageObjectData{Bucket: svc.Config.Bucket, Name: name})
				if err != nil {
					return err
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
