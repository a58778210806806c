package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	shared "github.com/fitglue/polar-ingest/pkg"
	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/integrations/polar"
)

func newNotificationsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List users with pending AccessLink data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := bootstrap.LoadConfig()
			if err := cfg.Require(bootstrap.KeyClientID, bootstrap.KeyClientSecret); err != nil {
				return err
			}
			client := polar.NewClient(polar.Config{
				BaseURL:      cfg.PolarBaseURL,
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				HTTPClient:   &http.Client{Timeout: shared.PolarHTTPTimeout},
			})

			available, err := client.ListAvailableData(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if available == nil {
					available = []polar.AvailableData{}
				}
				return enc.Encode(available)
			}
			if len(available) == 0 {
				_, err = fmt.Fprintln(out, "no pending data")
				return err
			}
			for _, a := range available {
				if _, err := fmt.Fprintf(out, "%d\t%s\t%s\n", a.UserID, a.DataType, a.URL); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
