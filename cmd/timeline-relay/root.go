package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "timeline-relay",
		Short:         "Realtime collaboration relay for the timeline editor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config", "Configuration file name (without extension)")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newTokenCommand(&configFlag))
	rootCmd.AddCommand(newStatsCommand())

	return rootCmd
}
