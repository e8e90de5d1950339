package database

import (
	"time"
)

type SourceRepository interface {
	CreateSource(s *Source) (int64, error)
	GetSource(id int64) (*Source, error)
	ListSources(tenantID string) ([]Source, error)
	GetAutoUpdateSources() ([]Source, error)
	GetSourceCount() (int, error)

	SetSourceStatus(id int64, status string) error
	UpdateSourceFetchMetadata(id int64, etag string, lastUpdated time.Time) error
}

type ImportRepository interface {
	// CreateImportJob inserts a job in STARTED status with a snapshot of the
	// source's auto-approve setting. Returns ErrImportInProgress when a
	// non-terminal job already exists for the source.
	CreateImportJob(sourceID int64, autoApprove bool) (int64, error)
	GetImportJob(id int64) (*ImportJob, error)
	// GetImportJobWithStatus is a status-guarded fetch; returns nil without
	// error when no row matches.
	GetImportJobWithStatus(id int64, status string) (*ImportJob, error)
	GetActiveImportJob(sourceID int64) (*ImportJob, error)
	ListImportJobs(sourceID int64) ([]ImportJob, error)

	SetImportJobStatus(id int64, status string) error
	SetTotalVideos(id int64, total int) error
	SetImportCounts(id int64, imported, skipped int) error
	IncrementImported(id int64) error
	IncrementSkipped(id int64) error
	TouchImportJob(id int64) error

	CreateIndexEntry(e ImportIndexEntry) error
	CountIndexEntries(importID int64) (int, error)

	RecordError(importID int64, message, detail string, isSkip bool) error
	CountSkipErrors(importID int64) (int, error)
	ListErrors(importID int64) ([]ImportError, error)
}

type VideoRepository interface {
	CreateVideo(v *Video) (int64, error)
	GetVideo(id int64) (*Video, error)
	ListVideos(tenantID, status string, limit int) ([]Video, error)
	DeleteVideo(id int64) error

	FindByGUID(tenantID, guid string) ([]Video, error)
	FindByWebsiteURL(tenantID, websiteURL string) ([]Video, error)

	SetVideoStatus(id int64, status string) error
	SetVideoStatuses(ids []int64, status string) error

	// GetImportVideos returns the videos created by an import job with the
	// given status, oldest submission first.
	GetImportVideos(importID int64, status string) ([]Video, error)
	GetImportVideoIDs(importID int64, status string) ([]int64, error)
	CountActiveVideos(tenantID string) (int, error)
	GetVideoCount() (int, error)

	AttachTags(videoID int64, tags []string) error
	GetTags(videoID int64) ([]string, error)
}
