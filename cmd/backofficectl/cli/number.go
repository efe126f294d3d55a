package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/internal/numbering"
)

func newNumberCmd(open Opener) *cobra.Command {
	number := &cobra.Command{
		Use:   "number",
		Short: "Document numbering",
	}
	number.AddCommand(&cobra.Command{
		Use:       "next <kind>",
		Short:     "Issue the next number of a kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"customer", "quote", "invoice", "project", "expense"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				n, err := rt.Numbers.Next(ctx, numbering.Kind(args[0]))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	})
	return number
}
