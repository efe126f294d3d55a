package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd(open Opener) *cobra.Command {
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Expiry reconciliation sweep",
	}
	var batch int
	now := &cobra.Command{
		Use:   "now",
		Short: "Run the sweep in this process and print the report",
		Example: `  backofficectl sweep now
  backofficectl sweep now --batch 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if rt.Sweep == nil {
					return errors.New("sweep runner not configured")
				}
				report, err := rt.Sweep.RunBatch(ctx, batch)
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
				if err != nil {
					return err
				}
				if len(report.Errors) > 0 {
					return fmt.Errorf("sweep finished with %d failed documents", len(report.Errors))
				}
				return nil
			})
		},
	}
	now.Flags().IntVar(&batch, "batch", 0, "candidates per document type (0 uses SWEEP_BATCH_SIZE)")
	sweep.AddCommand(now)
	return sweep
}
