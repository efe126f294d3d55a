// Package cli holds the operator commands of backofficectl.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/backoffice/internal/numbering"
	"github.com/odyssey-erp/backoffice/jobs"
)

// NumberIssuer issues document numbers.
type NumberIssuer interface {
	Next(ctx context.Context, kind numbering.Kind) (string, error)
}

// SweepRunner runs the reconciliation sweep in-process.
type SweepRunner interface {
	RunBatch(ctx context.Context, batchSize int) (jobs.SweepReport, error)
}

// Enqueuer hands the sweep to the worker fleet.
type Enqueuer interface {
	EnqueueExpirySweep(ctx context.Context, batchSize int) (*asynq.TaskInfo, error)
}

// Runtime carries the dependencies a command needs.
type Runtime struct {
	Numbers   NumberIssuer
	Sweep     SweepRunner
	Queue     Enqueuer
	Inspector jobs.QueueInspector
	Close     func() error
}

// Opener builds a Runtime on first use so --help works without backends.
type Opener func(ctx context.Context) (*Runtime, error)

// NewRootCmd assembles the command tree.
func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "backofficectl",
		Short:         "Operate the back-office document core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSweepCmd(open), newNumberCmd(open), newEnqueueCmd(open), newQueueCmd(open))
	return root
}

func withRuntime(cmd *cobra.Command, open Opener, fn func(context.Context, *Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer func() { _ = rt.Close() }()
	}
	return fn(ctx, rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
