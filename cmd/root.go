package main

import (
	"github.com/spf13/cobra"

	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

func newRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "submerge",
		Short:         "Merge two subtitle tracks into one bilingual subtitle",
		Long:          "Merge two subtitle tracks into one bilingual subtitle.\nWithout a subcommand the merge server is started.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				log.InitLogger(log.ParseLevel(logLevel))
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOptions{logLevel: logLevel})
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMergeCommand())
	rootCmd.AddCommand(newPreviewCommand())
	rootCmd.AddCommand(newStreamsCommand())
	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newAutoCommand())

	return rootCmd
}
