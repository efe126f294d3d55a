package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/jobs"
)

func newQueueCmd(open Opener) *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the background job queue",
	}
	queue.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print counters of the default queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				stats, err := jobs.InspectQueue(rt.Inspector)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	})
	return queue
}
