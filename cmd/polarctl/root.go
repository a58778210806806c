package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "polarctl",
		Short:         "Operate the Polar ingest pipeline from a terminal",
		Long:          "polarctl works against the same environment configuration as the deployed functions. It can sign test webhook deliveries, list pending AccessLink notifications, run one exercise sync and reload stored objects into the warehouse.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newSignCmd(),
		newNotificationsCmd(),
		newSyncCmd(),
		newLoadCmd(),
		newShowCmd(),
	)
	return rootCmd
}
