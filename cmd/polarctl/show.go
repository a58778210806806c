package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show OBJECT",
		Short: "Print a stored exercise object from BUCKET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap.NewService(ctx, "polarctl",
				bootstrap.WithStorage(),
				bootstrap.Require(bootstrap.KeyBucket),
			)
			if err != nil {
				return err
			}

			data, err := svc.Store.Read(ctx, svc.Config.Bucket, args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				return fmt.Errorf("object is not JSON: %w", err)
			}
			out.WriteByte('\n')
			_, err = cmd.OutOrStdout().Write(out.Bytes())
			return err
		},
	}
}
