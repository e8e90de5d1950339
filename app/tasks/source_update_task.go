package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/video-comb/app/catalog"
	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/source"
	"github.com/lysyi3m/video-comb/app/tenant"
)

// SourceUpdateTask opens an import job for a source, loads the external
// feed or search results and fans the items out as ImportVideoTasks. The
// reconciliation chain it enqueues at the end drives the job to a terminal
// status.
type SourceUpdateTask struct {
	Task
	Source       *database.Source
	TenantConfig *tenant.Config
	scheduler    *Scheduler
}

func NewSourceUpdateTask(src *database.Source, tenantConfig *tenant.Config, scheduler *Scheduler) *SourceUpdateTask {
	return &SourceUpdateTask{
		Task:         NewTask(TaskTypeUpdateSource, fmt.Sprintf("source %d (%s)", src.ID, src.Name)),
		Source:       src,
		TenantConfig: tenantConfig,
		scheduler:    scheduler,
	}
}

func (t *SourceUpdateTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	src := t.Source
	if src.Kind == database.SourceKindFeed && src.Status == database.SourceRejected {
		slog.Debug("Source rejected, skipping", "source_id", src.ID)
		return nil
	}

	jobID, err := t.scheduler.importRepo.CreateImportJob(src.ID, src.AutoApprove)
	if err != nil {
		if errors.Is(err, database.ErrImportInProgress) {
			slog.Debug("Import already in progress, skipping", "source_id", src.ID)
			return nil
		}
		return fmt.Errorf("failed to create import job: %w", err)
	}

	provider, err := source.NewProvider(src, t.scheduler.httpClient, t.scheduler.userAgent)
	if err != nil {
		if failErr := t.scheduler.reconciler.FailImport(jobID, "unsupported source", err.Error()); failErr != nil {
			return failErr
		}
		return Permanent(err)
	}

	openCtx, cancel := context.WithTimeout(ctx, time.Duration(t.TenantConfig.Settings.Timeout)*time.Second)
	defer cancel()

	result, err := provider.Open(openCtx)
	if err != nil {
		if failErr := t.scheduler.reconciler.FailImport(jobID, "could not load source", err.Error()); failErr != nil {
			return failErr
		}
		return Permanent(fmt.Errorf("failed to open source %d: %w", src.ID, err))
	}

	// Partial suite failures do not fail the job; they are recorded so the
	// import history shows which suites were missing.
	for _, suiteErr := range result.SuiteErrors {
		if recErr := t.scheduler.importRepo.RecordError(jobID, "suite load failure: "+suiteErr.Suite, suiteErr.Err.Error(), false); recErr != nil {
			slog.Warn("Failed to record suite error", "import_id", jobID, "suite", suiteErr.Suite, "error", recErr)
		}
	}

	ic := catalog.ImportContext{
		TenantID:      src.TenantID,
		JobID:         jobID,
		SourceID:      src.ID,
		Kind:          src.Kind,
		InitialStatus: database.VideoUnapproved,
		Authors:    src.AutoAuthors,
		Categories: src.AutoCategories,
		// Rejected duplicates always give way to the fresh copy; the rejection
		// applied to the old record, not to whatever the source carries now.
		ClearRejected:      true,
		ForceLowercaseTags: t.TenantConfig.Settings.ForceLowercaseTags,
	}

	total := 0
	for _, seq := range result.Sequences {
		for {
			rec, ok := seq.Next()
			if !ok {
				break
			}
			rec.Position = total
			total++

			if err := t.scheduler.EnqueueTask(NewImportVideoTask(rec, ic, t.scheduler)); err != nil {
				slog.Warn("Failed to enqueue ImportVideoTask", "import_id", jobID, "position", rec.Position, "error", err)
				// The dropped item still has to be accounted for, otherwise
				// the job never settles.
				if skipErr := t.scheduler.normalizer.RecordSkip(jobID, catalog.SkipLoadFailure, "task queue full"); skipErr != nil {
					return skipErr
				}
			}
		}
	}

	// Recording the total marks the sequence as exhausted; reconciliation
	// waits for it before trusting the per-item counters.
	if err = t.scheduler.importRepo.SetTotalVideos(jobID, total); err != nil {
		return fmt.Errorf("failed to record total videos: %w", err)
	}

	etag := result.Etag
	if etag == "" {
		etag = src.Etag
	}
	if err = t.scheduler.sourceRepo.UpdateSourceFetchMetadata(src.ID, etag, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update source fetch metadata: %w", err)
	}

	if err = t.scheduler.EnqueueTask(NewMarkPendingTask(jobID, t.TenantConfig, t.scheduler)); err != nil {
		return fmt.Errorf("failed to enqueue MarkPendingTask: %w", err)
	}

	slog.Info("Task completed",
		"type", "UpdateSource",
		"source_id", src.ID,
		"import_id", jobID,
		"duration", t.GetDuration(),
		"dispatched", total,
		"suite_errors", len(result.SuiteErrors))

	return nil
}
