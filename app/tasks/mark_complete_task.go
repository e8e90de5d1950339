package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/video-comb/app/catalog"
)

// MarkCompleteTask re-checks a PENDING job until the search index has
// caught up with the job's active videos, then closes it out.
type MarkCompleteTask struct {
	Task
	JobID     int64
	scheduler *Scheduler

	missingRowChecks int
}

func NewMarkCompleteTask(jobID int64, scheduler *Scheduler) *MarkCompleteTask {
	task := NewTask(TaskTypeMarkComplete, fmt.Sprintf("import %d", jobID))
	task.MaxRetries = ReconcileMaxRetries

	return &MarkCompleteTask{
		Task:      task,
		JobID:     jobID,
		scheduler: scheduler,
	}
}

func (t *MarkCompleteTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.scheduler.reconciler.CheckPending(ctx, t.JobID)
	if err != nil {
		return err
	}

	switch result.State {
	case catalog.NotYetReady:
		if result.RowMissing {
			t.missingRowChecks++
			if t.missingRowChecks > ReconcileMaxRetries {
				// Surface the stuck job as failed where a row exists; the
				// recording itself fails when the row never appeared at all.
				if failErr := t.scheduler.reconciler.FailImport(t.JobID, "import job never settled", result.Reason); failErr != nil {
					slog.Warn("Failed to mark stuck import job failed", "import_id", t.JobID, "error", failErr)
				}
				return Permanent(fmt.Errorf("import job %d never settled: %s", t.JobID, result.Reason))
			}
		}
		return RetryAfter(result.RetryAfter, result.Reason)
	case catalog.Failed:
		slog.Warn("Import job cannot complete", "import_id", t.JobID, "reason", result.Reason)
		return nil
	}

	slog.Info("Task completed",
		"type", "MarkComplete",
		"import_id", t.JobID,
		"duration", t.GetDuration())

	return nil
}
