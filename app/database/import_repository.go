package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrImportInProgress is returned when a non-terminal import job already
// exists for the source. The partial unique index on import_jobs enforces
// this at the storage layer, so concurrent starts cannot slip through.
var ErrImportInProgress = errors.New("an import is already in progress for this source")

type importRepository struct {
	db *DB
}

func NewImportRepository(db *DB) ImportRepository {
	return &importRepository{db: db}
}

const importJobColumns = `id, source_id, status, auto_approve, total_videos,
	videos_imported, videos_skipped, started_at, last_activity`

func (r *importRepository) CreateImportJob(sourceID int64, autoApprove bool) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO import_jobs (source_id, status, auto_approve, started_at)
		VALUES (?, ?, ?, ?)
	`, sourceID, ImportStarted, autoApprove, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrImportInProgress
		}
		return 0, fmt.Errorf("failed to create import job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import job id: %w", err)
	}
	return id, nil
}

func (r *importRepository) GetImportJob(id int64) (*ImportJob, error) {
	row := r.db.QueryRow(`SELECT `+importJobColumns+` FROM import_jobs WHERE id = ?`, id)
	return scanImportJob(row)
}

func (r *importRepository) GetImportJobWithStatus(id int64, status string) (*ImportJob, error) {
	row := r.db.QueryRow(`
		SELECT `+importJobColumns+` FROM import_jobs WHERE id = ? AND status = ?
	`, id, status)
	return scanImportJob(row)
}

func (r *importRepository) GetActiveImportJob(sourceID int64) (*ImportJob, error) {
	row := r.db.QueryRow(`
		SELECT `+importJobColumns+` FROM import_jobs
		WHERE source_id = ? AND status IN (?, ?)
	`, sourceID, ImportStarted, ImportPending)
	return scanImportJob(row)
}

func (r *importRepository) ListImportJobs(sourceID int64) ([]ImportJob, error) {
	rows, err := r.db.Query(`
		SELECT `+importJobColumns+` FROM import_jobs
		WHERE source_id = ?
		ORDER BY started_at DESC
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import job rows: %w", err)
	}
	return jobs, nil
}

func (r *importRepository) SetImportJobStatus(id int64, status string) error {
	_, err := r.db.Exec(`
		UPDATE import_jobs SET status = ?, last_activity = ? WHERE id = ?
	`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set import job status: %w", err)
	}
	return nil
}

func (r *importRepository) SetTotalVideos(id int64, total int) error {
	_, err := r.db.Exec(`
		UPDATE import_jobs SET total_videos = ?, last_activity = ? WHERE id = ?
	`, total, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set total videos: %w", err)
	}
	return nil
}

func (r *importRepository) SetImportCounts(id int64, imported, skipped int) error {
	_, err := r.db.Exec(`
		UPDATE import_jobs SET videos_imported = ?, videos_skipped = ? WHERE id = ?
	`, imported, skipped, id)
	if err != nil {
		return fmt.Errorf("failed to set import counts: %w", err)
	}
	return nil
}

// IncrementImported bumps the counter at the store level so concurrent
// per-item workers never read-modify-write it in application code.
func (r *importRepository) IncrementImported(id int64) error {
	_, err := r.db.Exec(`
		UPDATE import_jobs SET videos_imported = videos_imported + 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment imported count: %w", err)
	}
	return nil
}

func (r *importRepository) IncrementSkipped(id int64) error {
	_, err := r.db.Exec(`
		UPDATE import_jobs SET videos_skipped = videos_skipped + 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment skipped count: %w", err)
	}
	return nil
}

func (r *importRepository) TouchImportJob(id int64) error {
	_, err := r.db.Exec(`
		UPDATE import_jobs SET last_activity = ? WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch import job: %w", err)
	}
	return nil
}

func (r *importRepository) CreateIndexEntry(e ImportIndexEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO import_indexes (import_id, video_id, position, suite)
		VALUES (?, ?, ?, ?)
	`, e.ImportID, e.VideoID, e.Position, e.Suite)
	if err != nil {
		return fmt.Errorf("failed to create import index entry: %w", err)
	}
	return nil
}

func (r *importRepository) CountIndexEntries(importID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM import_indexes WHERE import_id = ?
	`, importID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count import index entries: %w", err)
	}
	return count, nil
}

func (r *importRepository) RecordError(importID int64, message, detail string, isSkip bool) error {
	_, err := r.db.Exec(`
		INSERT INTO import_errors (import_id, message, detail, is_skip, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, importID, message, detail, isSkip, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record import error: %w", err)
	}
	return nil
}

func (r *importRepository) CountSkipErrors(importID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM import_errors WHERE import_id = ? AND is_skip = 1
	`, importID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count skip errors: %w", err)
	}
	return count, nil
}

func (r *importRepository) ListErrors(importID int64) ([]ImportError, error) {
	rows, err := r.db.Query(`
		SELECT id, import_id, message, detail, is_skip, created_at
		FROM import_errors
		WHERE import_id = ?
		ORDER BY created_at, id
	`, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import errors: %w", err)
	}
	defer rows.Close()

	var errors []ImportError
	for rows.Next() {
		var e ImportError
		if err := rows.Scan(&e.ID, &e.ImportID, &e.Message, &e.Detail, &e.IsSkip, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import error row: %w", err)
		}
		errors = append(errors, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import error rows: %w", err)
	}
	return errors, nil
}

func scanImportJob(row rowScanner) (*ImportJob, error) {
	var job ImportJob
	err := row.Scan(
		&job.ID, &job.SourceID, &job.Status, &job.AutoApprove, &job.TotalVideos,
		&job.VideosImported, &job.VideosSkipped, &job.StartedAt, &job.LastActivity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import job row: %w", err)
	}
	return &job, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
