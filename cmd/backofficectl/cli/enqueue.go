package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newEnqueueCmd(open Opener) *cobra.Command {
	enqueue := &cobra.Command{
		Use:   "enqueue",
		Short: "Hand work to the background worker",
	}
	var batch int
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Enqueue an immediate expiry sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				info, err := rt.Queue.EnqueueExpirySweep(ctx, batch)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
				return err
			})
		},
	}
	sweep.Flags().IntVar(&batch, "batch", 0, "candidates per document type (0 uses SWEEP_BATCH_SIZE)")
	enqueue.AddCommand(sweep)
	return enqueue
}
