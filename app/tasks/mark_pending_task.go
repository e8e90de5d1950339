package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/video-comb/app/catalog"
	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/tenant"
)

// MarkPendingTask re-checks a STARTED job until every dispatched item has
// been accounted for, then fans out the indexing tasks and hands over to
// MarkCompleteTask. Waiting on convergence does not consume the retry
// budget; only a job row that never becomes visible does.
type MarkPendingTask struct {
	Task
	JobID        int64
	TenantConfig *tenant.Config
	scheduler    *Scheduler

	missingRowChecks int
}

func NewMarkPendingTask(jobID int64, tenantConfig *tenant.Config, scheduler *Scheduler) *MarkPendingTask {
	task := NewTask(TaskTypeMarkPending, fmt.Sprintf("import %d", jobID))
	task.MaxRetries = ReconcileMaxRetries

	return &MarkPendingTask{
		Task:         task,
		JobID:        jobID,
		TenantConfig: tenantConfig,
		scheduler:    scheduler,
	}
}

func (t *MarkPendingTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.scheduler.reconciler.CheckStarted(ctx, t.JobID, t.TenantConfig)
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
		slog.Warn("Import job cannot reach pending", "import_id", t.JobID, "reason", result.Reason)
		return nil
	}

	activeIDs, err := t.scheduler.videoRepo.GetImportVideoIDs(t.JobID, database.VideoActive)
	if err != nil {
		return fmt.Errorf("failed to list videos to index: %w", err)
	}

	for _, videoID := range activeIDs {
		if err := t.scheduler.EnqueueTask(NewIndexVideoTask(videoID, t.scheduler)); err != nil {
			slog.Warn("Failed to enqueue IndexVideoTask", "video_id", videoID, "error", err)
		}
	}

	if err = t.scheduler.EnqueueTask(NewMarkCompleteTask(t.JobID, t.scheduler)); err != nil {
		return fmt.Errorf("failed to enqueue MarkCompleteTask: %w", err)
	}

	slog.Info("Task completed",
		"type", "MarkPending",
		"import_id", t.JobID,
		"duration", t.GetDuration(),
		"to_index", len(activeIDs))

	return nil
}
