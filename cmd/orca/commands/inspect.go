package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/orca/internal/core/domain"
)

func (c *CLI) newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [pipeline.yaml]",
		Short: "Print the digests of a pipeline and its pods",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := domain.DefaultPipelineFile
			if len(args) == 1 {
				path = args[0]
			}
			return c.app.Hash(cmd.Context(), path)
		},
	}
}

func (c *CLI) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <digest|name@version>",
		Short: "Print the blob stored under a digest or an indexed label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Show(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the named pipelines and pods in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.List(cmd.Context())
		},
	}
}
