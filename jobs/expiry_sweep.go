package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/lifecycle"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SweepFunc scans up to limit candidates of one document type and moves them.
type SweepFunc func(ctx context.Context, limit int) (lifecycle.SweepResult, error)

// Sweeper binds a document type to its sweep routine.
type Sweeper struct {
	Document string
	Run      SweepFunc
}

// SweepConfig tunes ExpirySweepJob.
type SweepConfig struct {
	Timeout   time.Duration
	BatchSize int
	LockTTL   time.Duration
}

// SweepReport aggregates one run across all document types.
type SweepReport struct {
	RunID        string                   `json:"run_id"`
	Results      []lifecycle.SweepResult  `json:"results"`
	Transitioned int                      `json:"transitioned"`
	Skipped      int                      `json:"skipped"`
	Errors       []lifecycle.SweepFailure `json:"errors"`
	Interrupted  bool                     `json:"interrupted"`
}

// ExpirySweepJob runs the registered sweepers under a cluster-wide lock.
type ExpirySweepJob struct {
	sweepers []Sweeper
	locker   *shared.Locker
	cfg      SweepConfig
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewExpirySweepJob constructs the job. A nil locker disables cross-worker exclusion.
func NewExpirySweepJob(locker *shared.Locker, cfg SweepConfig, logger *slog.Logger, metrics *jobmetrics.Metrics, sweepers ...Sweeper) *ExpirySweepJob {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &ExpirySweepJob{sweepers: sweepers, locker: locker, cfg: cfg, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep for an Asynq task. A lock held by another worker
// is not an error; the other run covers the same documents.
func (j *ExpirySweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ExpirySweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.RunBatch(ctx, payload.BatchSize)
	if errors.Is(err, shared.ErrLockHeld) {
		return nil
	}
	return err
}

// Run sweeps every registered document type once with the configured batch size.
func (j *ExpirySweepJob) Run(ctx context.Context) (SweepReport, error) {
	return j.RunBatch(ctx, 0)
}

// RunBatch is Run with an explicit batch size; zero keeps the configured one.
func (j *ExpirySweepJob) RunBatch(ctx context.Context, batchSize int) (SweepReport, error) {
	if batchSize <= 0 {
		batchSize = j.cfg.BatchSize
	}
	report := SweepReport{RunID: uuid.NewString()}
	logger := j.log().With(slog.String("run_id", report.RunID))

	release, err := j.locker.Acquire(ctx, shared.SweepLockKey("expiry"), j.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, shared.ErrLockHeld) {
			logger.Info("expiry sweep already running elsewhere")
		}
		return report, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release sweep lock", slog.Any("error", err))
		}
	}()

	tracker := j.metrics().Track(TaskExpirySweep)
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	results := make([]lifecycle.SweepResult, len(j.sweepers))
	var g errgroup.Group
	for i, s := range j.sweepers {
		g.Go(func() error {
			res, err := s.Run(ctx, batchSize)
			res.Document = s.Document
			results[i] = res
			if err != nil {
				return fmt.Errorf("sweep %s: %w", s.Document, err)
			}
			return nil
		})
	}
	err = g.Wait()

	for _, res := range results {
		report.Results = append(report.Results, res)
		report.Transitioned += res.Transitioned
		report.Skipped += res.Skipped
		report.Errors = append(report.Errors, res.Failures...)
		report.Interrupted = report.Interrupted || res.Interrupted
		j.metrics().ObserveSweep(res.Document, res.Transitioned, res.Skipped, len(res.Failures))
	}
	err = tracker.End(err)

	if err != nil {
		logger.Error("expiry sweep aborted", slog.Any("error", err))
		return report, err
	}
	logger.Info("expiry sweep finished",
		slog.Int("transitioned", report.Transitioned),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", len(report.Errors)),
		slog.Bool("interrupted", report.Interrupted),
	)
	return report, nil
}

func (j *ExpirySweepJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpirySweepJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpirySweep))
	}
	return slog.Default().With(slog.String("job", TaskExpirySweep))
}
