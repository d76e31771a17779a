package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// SweepBlobsTask deletes objects that no document row references.
	SweepBlobsTask = "blob:sweep"
)

// SweepPayload is serialized into the task payload. A zero GraceSeconds
// means the worker's configured grace period applies.
type SweepPayload struct {
	GraceSeconds int64 `json:"grace_seconds,omitempty"`
	DryRun       bool  `json:"dry_run,omitempty"`
}

// Grace returns the payload's grace period or def when unset.
func (p SweepPayload) Grace(def time.Duration) time.Duration {
	if p.GraceSeconds <= 0 {
		return def
	}
	return time.Duration(p.GraceSeconds) * time.Second
}

// NewSweepTask builds a sweep task. Unique prevents overlapping sweeps from
// piling up when the scheduler and the CLI enqueue at the same time.
func NewSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(SweepBlobsTask, data, asynq.MaxRetry(3), asynq.Unique(10*time.Minute)), nil
}

// EnqueueSweep enqueues a sweep job.
func EnqueueSweep(ctx context.Context, client *asynq.Client, payload SweepPayload) error {
	task, err := NewSweepTask(payload)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue sweep task: %w", err)
	}
	return nil
}
