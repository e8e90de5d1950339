package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/video-comb/app/catalog"
	"github.com/lysyi3m/video-comb/app/source"
)

// ImportVideoTask maps one scraped record onto the catalog. Unexpected
// failures are not retried; a record that failed to import once is presumed
// permanently malformed, so it is recorded as a skip right away and the job
// can still settle. The failure itself is surfaced in the log.
type ImportVideoTask struct {
	Task
	Record        *source.Record
	ImportContext catalog.ImportContext
	scheduler     *Scheduler
}

func NewImportVideoTask(rec *source.Record, ic catalog.ImportContext, scheduler *Scheduler) *ImportVideoTask {
	task := NewTask(TaskTypeImportVideo, fmt.Sprintf("import %d item %d", ic.JobID, rec.Position))
	task.MaxRetries = 0

	return &ImportVideoTask{
		Task:          task,
		Record:        rec,
		ImportContext: ic,
		scheduler:     scheduler,
	}
}

func (t *ImportVideoTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rec := t.Record

	// Feeds often carry bare links with no usable metadata. Scraping the
	// item's page fills the gaps; failures here are not fatal since the
	// record may still be importable as-is.
	if rec.Title == "" || rec.Description == "" {
		if err := t.scheduler.enricher.Run(ctx, rec); err != nil {
			slog.Debug("Page enrichment failed", "link", rec.Link, "error", err)
		}
	}

	outcome, err := t.scheduler.normalizer.Import(ctx, rec, t.ImportContext)
	if err != nil {
		if skipErr := t.scheduler.normalizer.RecordSkip(t.ImportContext.JobID, catalog.SkipLoadFailure, err.Error()); skipErr != nil {
			return skipErr
		}
		return Permanent(err)
	}

	if err = t.scheduler.importRepo.TouchImportJob(t.ImportContext.JobID); err != nil {
		slog.Warn("Failed to touch import job", "import_id", t.ImportContext.JobID, "error", err)
	}

	// Deleted duplicates may still be present in the search index.
	for _, videoID := range outcome.RemovedVideoIDs {
		if err := t.scheduler.EnqueueTask(NewIndexVideoTask(videoID, t.scheduler)); err != nil {
			slog.Warn("Failed to enqueue IndexVideoTask for removed duplicate", "video_id", videoID, "error", err)
		}
	}

	if outcome.Skipped {
		slog.Debug("Record skipped", "import_id", t.ImportContext.JobID, "position", rec.Position, "reason", outcome.SkipReason)
	} else {
		slog.Debug("Record imported", "import_id", t.ImportContext.JobID, "position", rec.Position, "video_id", outcome.VideoID)
	}

	return nil
}
