package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeBatchProcess is the asynq task type for running one batch job.
	TypeBatchProcess = "batch:process"

	// QueueBatch is the dedicated queue for batch jobs.
	QueueBatch = "batch"
)

// BatchTaskPayload identifies the job a task should run.
type BatchTaskPayload struct {
	JobID string `json:"jobId"`
}

// NewBatchTask builds the asynq task for a job.
func NewBatchTask(jobID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BatchTaskPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch payload: %w", err)
	}
	return asynq.NewTask(TypeBatchProcess, payload), nil
}

// BatchWorker adapts the runner to asynq's handler interface.
type BatchWorker struct {
	runner *Runner
}

// NewBatchWorker creates a new batch worker
func NewBatchWorker(runner *Runner) *BatchWorker {
	return &BatchWorker{runner: runner}
}

// ProcessTask runs the job named in the task payload. Retries are
// disabled at enqueue time: a half-finished job is recovered by the
// interrupted-job path on restart, not by re-delivery.
func (w *BatchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload BatchTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid batch payload: %w", err)
	}
	return w.runner.Run(ctx, payload.JobID)
}
