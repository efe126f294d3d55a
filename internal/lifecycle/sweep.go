package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Candidate identifies a document picked up by a reconciliation scan.
type Candidate struct {
	ID     int64
	Number string
}

// SweepFailure records one document the sweep could not transition.
type SweepFailure struct {
	Document string `json:"document"`
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	Error    string `json:"error"`
}

// SweepResult summarises one reconciliation pass.
type SweepResult struct {
	Document     string         `json:"document"`
	Scanned      int            `json:"scanned"`
	Transitioned int            `json:"transitioned"`
	Skipped      int            `json:"skipped"`
	Failures     []SweepFailure `json:"failures,omitempty"`
	Interrupted  bool           `json:"interrupted"`
}

// Sweep applies fn to every candidate, isolating failures. A candidate whose
// transition is refused or raced by a concurrent writer is skipped. The loop
// stops when ctx is done; transitions already applied stay applied.
func Sweep(ctx context.Context, document string, candidates []Candidate, logger *slog.Logger, fn func(context.Context, int64) error) SweepResult {
	if logger == nil {
		logger = slog.Default()
	}
	res := SweepResult{Document: document, Scanned: len(candidates)}
	for _, c := range candidates {
		if ctx.Err() != nil {
			res.Interrupted = true
			logger.Warn("sweep interrupted", slog.String("document", document), slog.Any("error", ctx.Err()))
			break
		}
		err := fn(ctx, c.ID)
		switch {
		case err == nil:
			res.Transitioned++
		case errors.Is(err, shared.ErrTransitionNotAllowed), errors.Is(err, shared.ErrConcurrentModification), errors.Is(err, shared.ErrNotFound):
			res.Skipped++
			logger.Info("sweep skipped document",
				slog.String("document", document),
				slog.Int64("document_id", c.ID),
				slog.String("number", c.Number),
				slog.Any("reason", err),
			)
		default:
			res.Failures = append(res.Failures, SweepFailure{Document: document, ID: c.ID, Number: c.Number, Error: err.Error()})
			logger.Error("sweep failed for document",
				slog.String("document", document),
				slog.Int64("document_id", c.ID),
				slog.String("number", c.Number),
				slog.Any("error", err),
			)
		}
	}
	return res
}

// DefaultSweepBatch bounds one scan when the caller passes no limit.
const DefaultSweepBatch = 500

// ScanFunc loads up to limit candidates with an id above afterID, ordered by id.
type ScanFunc func(ctx context.Context, afterID int64, limit int) ([]Candidate, error)

// SweepBatches pages through every candidate with scan and applies fn through
// Sweep, batch by batch, until a scan returns fewer than limit rows or ctx is
// done. Paging is keyed on the last id seen, so skipped and failed candidates
// are never rescanned. A scan error stops the run and returns the counts so far.
func SweepBatches(ctx context.Context, document string, limit int, logger *slog.Logger, scan ScanFunc, fn func(context.Context, int64) error) (SweepResult, error) {
	if limit <= 0 {
		limit = DefaultSweepBatch
	}
	total := SweepResult{Document: document}
	var after int64
	for {
		if ctx.Err() != nil {
			total.Interrupted = true
			return total, nil
		}
		batch, err := scan(ctx, after, limit)
		if err != nil {
			return total, err
		}
		res := Sweep(ctx, document, batch, logger, fn)
		total.Scanned += res.Scanned
		total.Transitioned += res.Transitioned
		total.Skipped += res.Skipped
		total.Failures = append(total.Failures, res.Failures...)
		if res.Interrupted {
			total.Interrupted = true
			return total, nil
		}
		if len(batch) < limit {
			return total, nil
		}
		after = batch[len(batch)-1].ID
	}
}
