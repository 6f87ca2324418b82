package cli

import (
	"github.com/spf13/cobra"
)

// TaskOptions carries the flags shared by every stage command.
type TaskOptions struct {
	Registry string
	Entity   string
	RunDate  string
}

func addCommonFlags(cmd *cobra.Command, opts *TaskOptions, needsEntity bool) {
	cmd.Flags().StringVarP(&opts.Registry, "entities", "e", "configs/entities.json", "Path to entity registry file")
	cmd.Flags().StringVarP(&opts.RunDate, "run-date", "d", "", "Logical run date (YYYY-MM-DD, default today UTC)")
	if needsEntity {
		cmd.Flags().StringVar(&opts.Entity, "entity", "", "Entity to process (users, products, carts)")
		cmd.MarkFlagRequired("entity")
	}
}

func newExtractCmd() *cobra.Command {
	opts := &TaskOptions{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Fetch an entity from the source API into raw staging",
		RunE: func(c *cobra.Command, args []string) error {
			return runExtract(c.Context(), opts)
		},
	}
	addCommonFlags(cmd, opts, true)
	return cmd
}

func newTransformCmd() *cobra.Command {
	opts := &TaskOptions{}
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Flatten an entity's raw staged file into CSV",
		RunE: func(c *cobra.Command, args []string) error {
			return runTransform(c.Context(), opts)
		},
	}
	addCommonFlags(cmd, opts, true)
	return cmd
}

func newLoadCmd() *cobra.Command {
	opts := &TaskOptions{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load an entity's flattened staged file into its warehouse table",
		RunE: func(c *cobra.Command, args []string) error {
			return runLoad(c.Context(), opts)
		},
	}
	addCommonFlags(cmd, opts, true)
	return cmd
}

func newAggregateCmd() *cobra.Command {
	opts := &TaskOptions{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Rebuild the derived reporting tables",
		RunE: func(c *cobra.Command, args []string) error {
			return runAggregate(c.Context(), opts)
		},
	}
	addCommonFlags(cmd, opts, false)
	return cmd
}

func newRunCmd() *cobra.Command {
	opts := &TaskOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline DAG for one logical date",
		RunE: func(c *cobra.Command, args []string) error {
			return runPipeline(c.Context(), opts)
		},
	}
	addCommonFlags(cmd, opts, false)
	return cmd
}
