package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/orca/internal/app"
	"go.trai.ch/orca/internal/core/domain"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [pipeline.yaml]",
		Short: "Run a pipeline, reusing every result already in the store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := domain.DefaultPipelineFile
			if len(args) == 1 {
				path = args[0]
			}
			noCache, _ := cmd.Flags().GetBool("no-cache")
			parallelism, _ := cmd.Flags().GetInt("parallelism")
			asJSON, _ := cmd.Flags().GetBool("json")
			progress, _ := cmd.Flags().GetString("progress")

			_, err := c.app.Run(cmd.Context(), path, app.RunOptions{
				NoCache:     noCache,
				Parallelism: parallelism,
				JSON:        asJSON,
				Progress:    progress,
			})
			return err
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Re-execute every pod and verify it reproduces the stored record")
	cmd.Flags().IntP("parallelism", "j", c.settings.Scheduler.Parallelism, "Maximum number of pods in flight")
	cmd.Flags().Bool("json", false, "Print the run report as JSON")
	cmd.Flags().String("progress", app.ProgressLinear, "Progress output: linear or progrock")
	return cmd
}
