package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "edp",
		Short: "edp - e-commerce data pipeline tasks",
		Long: `edp runs the stages of the e-commerce ETL pipeline: extract from the
source API into staging, transform staged files into flat CSV, load them
into warehouse tables, and rebuild the derived reporting tables.
Each subcommand is one orchestrator task; "run" executes the whole DAG.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newExtractCmd(),
		newTransformCmd(),
		newLoadCmd(),
		newAggregateCmd(),
		newRunCmd(),
	)

	return rootCmd
}
