package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/search"
	"github.com/lysyi3m/video-comb/app/tenant"
)

const (
	// convergenceRetryDelay spaces out re-checks while counters or the
	// search index catch up with the primary datastore.
	convergenceRetryDelay = 30 * time.Second
	// missingRowRetryDelay spaces out re-checks while a job row written by
	// another worker becomes visible.
	missingRowRetryDelay = 5 * time.Second
)

// Reconciler drives import jobs through their terminal transitions. Both
// checks are idempotent observations: they re-derive state from the
// datastore and either apply the transition or report what to wait for.
type Reconciler struct {
	sources database.SourceRepository
	imports database.ImportRepository
	videos  database.VideoRepository
	index   *search.Index
}

func NewReconciler(sources database.SourceRepository, imports database.ImportRepository,
	videos database.VideoRepository, index *search.Index) *Reconciler {
	return &Reconciler{
		sources: sources,
		imports: imports,
		videos:  videos,
		index:   index,
	}
}

// CheckStarted moves a STARTED job to PENDING once every dispatched item
// has been accounted for. Counters are re-derived from the index entry and
// skip records rather than trusted, since per-item increments may race.
// The auto-approval pass over the job's videos happens here, under the
// tenant settings passed in.
func (r *Reconciler) CheckStarted(ctx context.Context, jobID int64, tc *tenant.Config) (Result, error) {
	job, err := r.imports.GetImportJobWithStatus(jobID, database.ImportStarted)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load import job %d: %w", jobID, err)
	}
	if job == nil {
		return r.resolveMissing(jobID, database.ImportStarted)
	}

	imported, err := r.imports.CountIndexEntries(jobID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count index entries: %w", err)
	}
	skipped, err := r.imports.CountSkipErrors(jobID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count skips: %w", err)
	}
	if err = r.imports.SetImportCounts(jobID, imported, skipped); err != nil {
		return Result{}, fmt.Errorf("failed to store recounted totals: %w", err)
	}

	if job.TotalVideos == nil {
		return notYetReady(convergenceRetryDelay, "source sequence not exhausted yet"), nil
	}
	if imported+skipped < *job.TotalVideos {
		return notYetReady(convergenceRetryDelay,
			fmt.Sprintf("%d of %d videos accounted for", imported+skipped, *job.TotalVideos)), nil
	}

	if job.AutoApprove {
		if err = r.approveImportVideos(job, tc); err != nil {
			return Result{}, err
		}
	}

	if err = r.imports.SetImportJobStatus(jobID, database.ImportPending); err != nil {
		return Result{}, fmt.Errorf("failed to move job to pending: %w", err)
	}

	slog.Debug("Import job pending", "import_id", jobID, "imported", imported, "skipped", skipped)
	return ready(), nil
}

// CheckPending moves a PENDING job to COMPLETE once the search index holds
// every active video of the job. Completing a feed source's first import
// also activates the source.
func (r *Reconciler) CheckPending(ctx context.Context, jobID int64) (Result, error) {
	job, err := r.imports.GetImportJobWithStatus(jobID, database.ImportPending)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load import job %d: %w", jobID, err)
	}
	if job == nil {
		return r.resolveMissing(jobID, database.ImportPending)
	}

	activeIDs, err := r.videos.GetImportVideoIDs(jobID, database.VideoActive)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list active videos: %w", err)
	}

	indexed, err := r.index.CountByVideoIDs(ctx, activeIDs)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count indexed videos: %w", err)
	}
	if indexed < len(activeIDs) {
		return notYetReady(convergenceRetryDelay,
			fmt.Sprintf("%d of %d videos indexed", indexed, len(activeIDs))), nil
	}

	if err = r.imports.SetImportJobStatus(jobID, database.ImportComplete); err != nil {
		return Result{}, fmt.Errorf("failed to move job to complete: %w", err)
	}

	src, err := r.sources.GetSource(job.SourceID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load source %d: %w", job.SourceID, err)
	}
	if src.Kind == database.SourceKindFeed && src.Status == database.SourceUnapproved {
		if err = r.sources.SetSourceStatus(src.ID, database.SourceActive); err != nil {
			return Result{}, fmt.Errorf("failed to activate source %d: %w", src.ID, err)
		}
		slog.Info("Feed source activated after first import", "source_id", src.ID, "name", src.Name)
	}

	slog.Debug("Import job complete", "import_id", jobID, "indexed", indexed)
	return ready(), nil
}

// resolveMissing classifies a job row that is not visible in the status a
// check expected. The row may not be visible yet, may have been advanced
// past the expected status by another worker, or may have been failed.
func (r *Reconciler) resolveMissing(jobID int64, expected string) (Result, error) {
	job, err := r.imports.GetImportJob(jobID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load import job %d: %w", jobID, err)
	}
	if job == nil {
		return rowMissing(missingRowRetryDelay,
			fmt.Sprintf("import job not visible in %s state", expected)), nil
	}

	switch job.Status {
	case database.ImportFailed:
		return failed("import job already failed"), nil
	case database.ImportComplete:
		// Another worker finished the job; nothing left to do.
		return ready(), nil
	case database.ImportPending:
		if expected == database.ImportStarted {
			return ready(), nil
		}
	}

	return rowMissing(missingRowRetryDelay,
		fmt.Sprintf("import job still %s, expected %s", job.Status, expected)), nil
}

// FailImport marks a job failed and records the cause. Used when a
// reconciliation check exhausts its retry budget or the source cannot be
// loaded at all.
func (r *Reconciler) FailImport(jobID int64, message, detail string) error {
	if err := r.imports.RecordError(jobID, message, detail, false); err != nil {
		return fmt.Errorf("failed to record import error: %w", err)
	}
	if err := r.imports.SetImportJobStatus(jobID, database.ImportFailed); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	slog.Warn("Import job failed", "import_id", jobID, "reason", message)
	return nil
}

// approveImportVideos activates the job's unapproved videos, honoring the
// tenant video limit when tier enforcement is on. When the limit leaves
// room for only part of the job, the oldest submissions win.
func (r *Reconciler) approveImportVideos(job *database.ImportJob, tc *tenant.Config) error {
	videos, err := r.videos.GetImportVideos(job.ID, database.VideoUnapproved)
	if err != nil {
		return fmt.Errorf("failed to list unapproved videos: %w", err)
	}
	if len(videos) == 0 {
		return nil
	}

	approvable := len(videos)
	if tc != nil && tc.Settings.EnforceTiers {
		active, err := r.videos.CountActiveVideos(tc.ID)
		if err != nil {
			return fmt.Errorf("failed to count active videos: %w", err)
		}
		remaining := tc.Settings.VideoLimit - active
		if remaining < 0 {
			remaining = 0
		}
		if remaining < approvable {
			approvable = remaining
		}
	}
	if approvable == 0 {
		return nil
	}

	ids := make([]int64, 0, approvable)
	for _, v := range videos[:approvable] {
		ids = append(ids, v.ID)
	}
	if err = r.videos.SetVideoStatuses(ids, database.VideoActive); err != nil {
		return fmt.Errorf("failed to approve videos: %w", err)
	}

	return nil
}
