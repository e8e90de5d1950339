package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/video-comb/app/database"
	"github.com/lysyi3m/video-comb/app/source"
)

// Skip reasons recorded against an import job. Skips are expected outcomes
// and never fail the job; they only reduce the number of imported videos.
const (
	SkipLoadFailure   = "could not load video data"
	SkipNoBasicData   = "failed to scrape basic data"
	SkipNotPlayable   = "no file or embed code"
	SkipDuplicateGUID = "duplicate guid"
	SkipDuplicateLink = "duplicate link"
)

var ErrDuplicateVideo = errors.New("a video with this link already exists")

// ImportContext carries the per-job settings an item import needs. It is
// built once per job from the source row and the tenant config, so items
// of one job never observe a mid-flight settings change.
type ImportContext struct {
	TenantID string
	JobID    int64
	SourceID int64
	Kind     string // source kind, feed or search

	// InitialStatus is the status new videos are created with. Approval is
	// a separate, later step over the whole job.
	InitialStatus string

	Authors    []string
	Categories []string

	// ClearRejected makes previously rejected duplicates give way: they are
	// deleted and the incoming record is imported in their place.
	ClearRejected bool

	ForceLowercaseTags bool
}

// ImportOutcome reports what a single record import did.
type ImportOutcome struct {
	VideoID    int64
	Skipped    bool
	SkipReason string
	// RemovedVideoIDs lists rejected duplicates deleted to make way for the
	// record. Their search index entries must be removed as well.
	RemovedVideoIDs []int64
}

// Normalizer turns scraped records into catalog videos. It owns
// deduplication, sanitization and the per-item bookkeeping on the
// import job (counters, index entries, skip records).
type Normalizer struct {
	videos    database.VideoRepository
	imports   database.ImportRepository
	sanitizer *Sanitizer
}

func NewNormalizer(videos database.VideoRepository, imports database.ImportRepository) *Normalizer {
	return &Normalizer{
		videos:    videos,
		imports:   imports,
		sanitizer: NewSanitizer(),
	}
}

// Import maps one scraped record onto the catalog. Every call ends in
// exactly one of: a created video counted as imported, or a recorded skip
// counted as skipped. Infrastructure errors leave the job untouched so the
// caller can retry the item.
func (n *Normalizer) Import(ctx context.Context, rec *source.Record, ic ImportContext) (*ImportOutcome, error) {
	title := n.sanitizer.CleanTitle(rec.Title)
	if title == "" {
		return n.skip(ic, SkipNoBasicData, rec.Link)
	}
	if !rec.HasPlayableContent() {
		return n.skip(ic, SkipNotPlayable, rec.Link)
	}

	outcome := &ImportOutcome{}

	if rec.GUID != "" {
		dupes, err := n.videos.FindByGUID(ic.TenantID, rec.GUID)
		if err != nil {
			return nil, fmt.Errorf("failed to check guid duplicates: %w", err)
		}
		removed, remaining, err := n.clearRejected(dupes, ic.ClearRejected)
		if err != nil {
			return nil, err
		}
		outcome.RemovedVideoIDs = append(outcome.RemovedVideoIDs, removed...)
		if remaining > 0 {
			return n.skipWithRemoved(ic, SkipDuplicateGUID, rec.GUID, outcome.RemovedVideoIDs)
		}
	}

	if rec.Link != "" {
		dupes, err := n.videos.FindByWebsiteURL(ic.TenantID, rec.Link)
		if err != nil {
			return nil, fmt.Errorf("failed to check link duplicates: %w", err)
		}
		removed, remaining, err := n.clearRejected(dupes, ic.ClearRejected)
		if err != nil {
			return nil, err
		}
		outcome.RemovedVideoIDs = append(outcome.RemovedVideoIDs, removed...)
		if remaining > 0 {
			return n.skipWithRemoved(ic, SkipDuplicateLink, rec.Link, outcome.RemovedVideoIDs)
		}
	}

	video := &database.Video{
		TenantID:        ic.TenantID,
		SourceID:        &ic.SourceID,
		ImportID:        &ic.JobID,
		GUID:            rec.GUID,
		Name:            title,
		Description:     n.sanitizer.CleanDescription(rec.Description),
		WebsiteURL:      rec.Link,
		EmbedCode:       rec.EmbedCode,
		FileURL:         rec.FileURL,
		FileURLMimeType: rec.FileURLMimeType,
		ThumbnailURL:    rec.ThumbnailURL,
		UploaderName:    rec.UploaderName,
		UploaderURL:     rec.UploaderURL,
		Authors:         ic.Authors,
		Categories:      ic.Categories,
		Status:          ic.InitialStatus,
		WhenSubmitted:   time.Now(),
		WhenPublished:   rec.PublishedAt,
	}
	if rec.FileURLLength > 0 {
		length := rec.FileURLLength
		video.FileURLLength = &length
	}
	if video.Status == "" {
		video.Status = database.VideoUnapproved
	}

	videoID, err := n.videos.CreateVideo(video)
	if err != nil {
		return nil, fmt.Errorf("failed to create video: %w", err)
	}
	outcome.VideoID = videoID

	tags := n.sanitizer.NormalizeTags(rec.Tags, ic.ForceLowercaseTags)
	if err = n.videos.AttachTags(videoID, tags); err != nil {
		return nil, fmt.Errorf("failed to attach tags: %w", err)
	}

	err = n.imports.CreateIndexEntry(database.ImportIndexEntry{
		ImportID: ic.JobID,
		VideoID:  videoID,
		Position: rec.Position,
		Suite:    rec.Suite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index entry: %w", err)
	}

	if err = n.imports.IncrementImported(ic.JobID); err != nil {
		return nil, fmt.Errorf("failed to increment imported count: %w", err)
	}

	return outcome, nil
}

// RecordSkip records a skip for a record that never reached Import, such as
// an item whose data could not be loaded at all.
func (n *Normalizer) RecordSkip(jobID int64, reason, detail string) error {
	if err := n.imports.RecordError(jobID, reason, detail, true); err != nil {
		return fmt.Errorf("failed to record skip: %w", err)
	}
	if err := n.imports.IncrementSkipped(jobID); err != nil {
		return fmt.Errorf("failed to increment skipped count: %w", err)
	}
	return nil
}

// Submit creates a directly submitted video outside any import job. The
// link must not collide with an existing video of the tenant.
func (n *Normalizer) Submit(ctx context.Context, video *database.Video, tags []string) (int64, error) {
	video.Name = n.sanitizer.CleanTitle(video.Name)
	if video.Name == "" {
		return 0, errors.New("video name is required")
	}
	video.Description = n.sanitizer.CleanDescription(video.Description)

	if video.WebsiteURL != "" {
		dupes, err := n.videos.FindByWebsiteURL(video.TenantID, video.WebsiteURL)
		if err != nil {
			return 0, fmt.Errorf("failed to check link duplicates: %w", err)
		}
		if len(dupes) > 0 {
			return 0, ErrDuplicateVideo
		}
	}

	if video.Status == "" {
		video.Status = database.VideoUnapproved
	}
	video.WhenSubmitted = time.Now()

	videoID, err := n.videos.CreateVideo(video)
	if err != nil {
		return 0, fmt.Errorf("failed to create video: %w", err)
	}

	if err = n.videos.AttachTags(videoID, n.sanitizer.NormalizeTags(tags, false)); err != nil {
		return 0, fmt.Errorf("failed to attach tags: %w", err)
	}

	return videoID, nil
}

// clearRejected deletes rejected duplicates when allowed and reports how
// many blocking duplicates remain.
func (n *Normalizer) clearRejected(dupes []database.Video, clear bool) (removed []int64, remaining int, err error) {
	for _, dupe := range dupes {
		if clear && dupe.Status == database.VideoRejected {
			if err = n.videos.DeleteVideo(dupe.ID); err != nil {
				return nil, 0, fmt.Errorf("failed to delete rejected duplicate: %w", err)
			}
			removed = append(removed, dupe.ID)
			continue
		}
		remaining++
	}
	return removed, remaining, nil
}

func (n *Normalizer) skip(ic ImportContext, reason, detail string) (*ImportOutcome, error) {
	return n.skipWithRemoved(ic, reason, detail, nil)
}

func (n *Normalizer) skipWithRemoved(ic ImportContext, reason, detail string, removed []int64) (*ImportOutcome, error) {
	if err := n.RecordSkip(ic.JobID, reason, detail); err != nil {
		return nil, err
	}
	return &ImportOutcome{Skipped: true, SkipReason: reason, RemovedVideoIDs: removed}, nil
}
