package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpirySweep reconciles time-dependent document states.
	TaskExpirySweep = "documents:expiry_sweep"
)

// ExpirySweepPayload overrides the configured batch size when positive.
type ExpirySweepPayload struct {
	BatchSize int `json:"batch_size,omitempty"`
}

// NewExpirySweepTask constructs an Asynq task for the reconciliation sweep.
func NewExpirySweepTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(ExpirySweepPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpirySweep, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
