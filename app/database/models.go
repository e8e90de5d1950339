package database

import (
	"time"
)

// Source kinds
const (
	SourceKindFeed   = "feed"
	SourceKindSearch = "search"
)

// Source statuses (feed sources only; search sources are always usable)
const (
	SourceUnapproved = "unapproved"
	SourceActive     = "active"
	SourceRejected   = "rejected"
)

// Import job statuses
const (
	ImportStarted  = "started"
	ImportPending  = "pending"
	ImportComplete = "complete"
	ImportFailed   = "failed"
)

// Video statuses
const (
	VideoUnapproved       = "unapproved"
	VideoActive           = "active"
	VideoRejected         = "rejected"
	VideoPendingThumbnail = "pending_thumbnail"
)

type Source struct {
	ID             int64
	TenantID       string
	Kind           string // feed or search
	Name           string
	FeedURL        string // feed sources
	QueryString    string // search sources
	Webpage        string
	Description    string
	Etag           string
	Status         string
	AutoApprove    bool
	AutoUpdate     bool
	CreatedBy      string
	AutoAuthors    []string
	AutoCategories []string
	WhenSubmitted  time.Time
	LastUpdated    *time.Time
}

type ImportJob struct {
	ID             int64
	SourceID       int64
	Status         string
	AutoApprove    bool // snapshot of the source setting at job start
	TotalVideos    *int // nil until the source sequence has been exhausted
	VideosImported int
	VideosSkipped  int
	StartedAt      time.Time
	LastActivity   *time.Time
}

type ImportIndexEntry struct {
	ID       int64
	ImportID int64
	VideoID  int64
	Position int    // original position in the source sequence
	Suite    string // search sources: provider suite that produced the item
}

type ImportError struct {
	ID        int64
	ImportID  int64
	Message   string
	Detail    string
	IsSkip    bool
	CreatedAt time.Time
}

type Video struct {
	ID              int64
	TenantID        string
	SourceID        *int64
	ImportID        *int64
	GUID            string
	Name            string
	Description     string
	WebsiteURL      string
	EmbedCode       string
	FileURL         string
	FileURLMimeType string
	FileURLLength   *int64
	ThumbnailURL    string
	UploaderName    string
	UploaderURL     string
	Authors         []string
	Categories      []string
	Status          string
	WhenSubmitted   time.Time
	WhenApproved    *time.Time
	WhenPublished   *time.Time
}
