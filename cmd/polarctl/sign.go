package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitglue/polar-ingest/pkg/bootstrap"
	"github.com/fitglue/polar-ingest/pkg/webhook"
)

func newSignCmd() *cobra.Command {
	var (
		secret string
		file   string
		check  string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute or check the webhook signature of a payload",
		Long:  "Reads the payload from --file or stdin and prints its hex HMAC-SHA256. The secret defaults to SIGNATURE_SECRET_KEY.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = bootstrap.LoadConfig().SignatureSecret
			}
			if secret == "" {
				return fmt.Errorf("no secret: pass --secret or set %s", bootstrap.KeySignatureSecret)
			}

			var (
				payload []byte
				err     error
			)
			if file != "" {
				payload, err = os.ReadFile(file)
			} else {
				payload, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			if check != "" {
				if !webhook.VerifySignature(payload, []byte(secret), check) {
					return fmt.Errorf("signature does not match")
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(payload, []byte(secret)))
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "webhook signature secret")
	cmd.Flags().StringVarP(&file, "file", "f", "", "payload file, stdin when empty")
	cmd.Flags().StringVar(&check, "check", "", "verify this signature instead of printing one")
	return cmd
}
